package observer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcher_DebouncesIntoOneCallback(t *testing.T) {
	dir := t.TempDir()
	reqPath := filepath.Join(dir, "requirements.md")
	if err := os.WriteFile(reqPath, []byte("# App\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var (
		mu    sync.Mutex
		calls [][]string
	)
	w, err := NewWatcher(func(files []string) {
		mu.Lock()
		calls = append(calls, files)
		mu.Unlock()
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SetDebounce(50 * time.Millisecond)
	if err := w.AddFile(reqPath); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// Rapid saves within one debounce window.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(reqPath, []byte("# App edited\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Callback never fired")
		case <-time.After(20 * time.Millisecond):
		}
	}

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Errorf("Callback fired %d times, want 1 for debounced writes", len(calls))
	}
	if len(calls[0]) != 1 || calls[0][0] != reqPath {
		t.Errorf("Changed files = %v, want [%s]", calls[0], reqPath)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	reqPath := filepath.Join(dir, "requirements.md")
	otherPath := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(reqPath, []byte("# App\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	w, err := NewWatcher(func([]string) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SetDebounce(30 * time.Millisecond)
	if err := w.AddFile(reqPath); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// A sibling file in the same directory must not trigger the callback.
	if err := os.WriteFile(otherPath, []byte("scratch\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
		t.Error("Callback fired for an unwatched file")
	case <-time.After(200 * time.Millisecond):
	}
}
