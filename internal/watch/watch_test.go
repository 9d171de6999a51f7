package watch

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newWatcher(t *testing.T, debounce time.Duration) *Watcher {
	t.Helper()
	w, err := New(debounce, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func waitEvent(t *testing.T, w *Watcher, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev := <-w.Events:
		return ev, true
	case <-time.After(timeout):
		return Event{}, false
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "timelock.db")
	w := newWatcher(t, 100*time.Millisecond)
	if err := w.WatchFile(db); err != nil {
		t.Fatalf("watch: %v", err)
	}
	w.Start()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(db, []byte{byte(i)}, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(db+"-journal", []byte("j"), 0o644); err != nil {
		t.Fatalf("write journal: %v", err)
	}

	ev, ok := waitEvent(t, w, 2*time.Second)
	if !ok {
		t.Fatal("expected an event")
	}
	if len(ev.Paths) != 2 || ev.Paths[0] != db || ev.Paths[1] != db+"-journal" {
		t.Fatalf("unexpected paths: %v", ev.Paths)
	}
	if extra, ok := waitEvent(t, w, 300*time.Millisecond); ok {
		t.Fatalf("burst should produce a single event, got extra %v", extra.Paths)
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, 50*time.Millisecond)
	if err := w.WatchFile(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("watch: %v", err)
	}
	w.Start()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev, ok := waitEvent(t, w, 300*time.Millisecond); ok {
		t.Fatalf("unexpected event for unrelated file: %v", ev.Paths)
	}
}

func TestStopClosesEvents(t *testing.T) {
	w := newWatcher(t, 50*time.Millisecond)
	w.Start()
	w.Stop()
	w.Stop()

	select {
	case _, ok := <-w.Events:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after stop")
	}
}
