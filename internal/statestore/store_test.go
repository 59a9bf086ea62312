package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), zerolog.Nop())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	state := NewPhaseState()
	now := time.Now()
	state.StartedAt = &now
	state.RecordCompleted(1, map[string]any{"project_name": "demo"})
	state.RecordCompleted(2, nil)
	state.RecordFailed(3, "no build worker configured")
	state.Success = false

	if err := store.Save(state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected state, got nil")
	}
	if len(loaded.PhasesCompleted) != 2 || loaded.PhasesCompleted[0] != 1 {
		t.Errorf("PhasesCompleted = %v, want [1 2]", loaded.PhasesCompleted)
	}
	if len(loaded.PhasesFailed) != 1 || loaded.PhasesFailed[0] != 3 {
		t.Errorf("PhasesFailed = %v, want [3]", loaded.PhasesFailed)
	}
	if loaded.Errors[3] != "no build worker configured" {
		t.Errorf("Errors[3] = %q", loaded.Errors[3])
	}
	if loaded.Success {
		t.Error("Success should survive the round trip as false")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	store := newTestStore(t)

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state != nil {
		t.Errorf("Expected nil state for missing file, got %+v", state)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, zerolog.Nop())

	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Corrupt file should not error, got: %v", err)
	}
	if state != nil {
		t.Errorf("Corrupt file should read as absent, got %+v", state)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ".forge")
	store := New(dir, zerolog.Nop())

	if err := store.Save(NewPhaseState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(store.Path()); err != nil {
		t.Errorf("State file missing: %v", err)
	}
}

func TestSave_WritesValidJSON(t *testing.T) {
	store := newTestStore(t)
	state := NewPhaseState()
	state.RecordCompleted(4, map[string]any{"state": "passed", "iterations": 1})

	if err := store.Save(state); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("State file is not valid JSON: %v", err)
	}
	if _, ok := decoded["phases_completed"]; !ok {
		t.Error("phases_completed key missing from state file")
	}
}
