package buildpool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/domain"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/worker"
)

// fakeWorker scripts a sequence of per-attempt results.
type fakeWorker struct {
	mu      sync.Mutex
	calls   int
	scripts []func() (*worker.Result, error)
	delay   time.Duration
}

func (f *fakeWorker) Build(ctx context.Context, order worker.Order) (*worker.Result, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if idx < len(f.scripts) {
		return f.scripts[idx]()
	}
	return &worker.Result{Success: true}, nil
}

func (f *fakeWorker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func succeed() (*worker.Result, error) {
	return &worker.Result{Success: true, TokensInput: 100, TokensOutput: 200}, nil
}

func reportFailure() (*worker.Result, error) {
	return &worker.Result{Success: false, Detail: "tests failed"}, nil
}

func errorOut() (*worker.Result, error) {
	return nil, errors.New("connection reset")
}

func testItem(id string) domain.WorkItem {
	return domain.WorkItem{
		ID:      id,
		Feature: domain.Feature{Name: "user login", Summary: "email and password login"},
	}
}

func TestRunner_SucceedsFirstAttempt(t *testing.T) {
	w := &fakeWorker{scripts: []func() (*worker.Result, error){succeed}}
	r := NewRunner(w, 2, time.Minute, zerolog.Nop())

	out := r.Run(context.Background(), testItem("item-01"))

	if !out.Succeeded {
		t.Fatalf("Expected success, got error %q", out.Error)
	}
	if out.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", out.Attempts)
	}
	if out.TokensInput != 100 || out.TokensOutput != 200 {
		t.Errorf("Token usage not carried through: %d/%d", out.TokensInput, out.TokensOutput)
	}
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	w := &fakeWorker{scripts: []func() (*worker.Result, error){errorOut, succeed}}
	r := NewRunner(w, 2, time.Minute, zerolog.Nop())

	out := r.Run(context.Background(), testItem("item-01"))

	if !out.Succeeded {
		t.Fatalf("Expected success after retry, got %q", out.Error)
	}
	if out.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", out.Attempts)
	}
	if w.callCount() != 2 {
		t.Errorf("Worker invoked %d times, want 2", w.callCount())
	}
}

func TestRunner_ExhaustsAttempts(t *testing.T) {
	w := &fakeWorker{scripts: []func() (*worker.Result, error){reportFailure, reportFailure, reportFailure}}
	r := NewRunner(w, 2, time.Minute, zerolog.Nop())

	out := r.Run(context.Background(), testItem("item-01"))

	if out.Succeeded {
		t.Fatal("Expected failure")
	}
	if out.Attempts != 2 {
		t.Errorf("Attempts = %d, want the configured cap of 2", out.Attempts)
	}
	if w.callCount() != 2 {
		t.Errorf("Worker invoked %d times, want exactly MaxAttempts", w.callCount())
	}
	if !strings.Contains(out.Error, "all 2 attempts failed") {
		t.Errorf("Error = %q, want attempt summary", out.Error)
	}
	if !strings.Contains(out.Error, "tests failed") {
		t.Errorf("Error = %q, want last failure reason", out.Error)
	}
}

func TestRunner_ReportedFailureCountsAsAttempt(t *testing.T) {
	// A worker that runs fine but reports Success=false consumes an attempt
	// the same way a transport error does.
	w := &fakeWorker{scripts: []func() (*worker.Result, error){reportFailure, succeed}}
	r := NewRunner(w, 2, time.Minute, zerolog.Nop())

	out := r.Run(context.Background(), testItem("item-01"))
	if !out.Succeeded || out.Attempts != 2 {
		t.Errorf("Outcome = %+v, want success on attempt 2", out)
	}
}

func TestRunner_AttemptTimeout(t *testing.T) {
	w := &fakeWorker{delay: 200 * time.Millisecond}
	r := NewRunner(w, 1, 20*time.Millisecond, zerolog.Nop())

	out := r.Run(context.Background(), testItem("item-01"))
	if out.Succeeded {
		t.Fatal("Expected timeout failure")
	}
	if w.callCount() != 1 {
		t.Errorf("Worker invoked %d times, want 1", w.callCount())
	}
}

func TestRunner_WritesOrderExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	w := &fakeWorker{scripts: []func() (*worker.Result, error){errorOut, errorOut}}
	r := NewRunner(w, 2, time.Minute, zerolog.Nop())
	r.OrdersDir = dir

	out := r.Run(context.Background(), testItem("item-01"))
	if out.Succeeded {
		t.Fatal("Expected failure")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one work order, found %d", len(entries))
	}
	if entries[0].Name() != "item-01.yaml" {
		t.Errorf("Order file = %s, want item-01.yaml", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "user login") {
		t.Error("Order file should carry the feature name")
	}
}

func TestRunner_ClampsPolicy(t *testing.T) {
	r := NewRunner(&fakeWorker{}, 0, 0, zerolog.Nop())
	if r.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", r.MaxAttempts, DefaultMaxAttempts)
	}
	if r.AttemptTimeout != DefaultAttemptTimeout {
		t.Errorf("AttemptTimeout = %v, want default %v", r.AttemptTimeout, DefaultAttemptTimeout)
	}
}

// recordingStore captures item run persistence calls.
type recordingStore struct {
	mu       sync.Mutex
	inserted []ItemRun
	updated  []domain.Outcome
}

func (s *recordingStore) InsertItemRun(rec ItemRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *recordingStore) UpdateItemRun(id string, out domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, out)
	return nil
}

func TestRunner_RecordsItemRuns(t *testing.T) {
	store := &recordingStore{}
	w := &fakeWorker{scripts: []func() (*worker.Result, error){succeed}}
	r := NewRunner(w, 2, time.Minute, zerolog.Nop())
	r.Store = store
	r.RunID = "run-1"

	r.Run(context.Background(), testItem("item-01"))

	if len(store.inserted) != 1 || store.inserted[0].RunID != "run-1" {
		t.Errorf("Inserted records = %+v", store.inserted)
	}
	if len(store.updated) != 1 || !store.updated[0].Succeeded {
		t.Errorf("Updated records = %+v", store.updated)
	}
}
