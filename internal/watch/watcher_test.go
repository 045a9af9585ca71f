package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "recording.yaml")
	other := filepath.Join(dir, "other.yaml")
	os.WriteFile(target, []byte("clicks: []\n"), 0644)

	w, err := NewWatcher(100*time.Millisecond, target)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	for i := 0; i < 5; i++ {
		os.WriteFile(target, []byte("clicks: []\n# edit\n"), 0644)
		os.WriteFile(other, []byte("x"), 0644)
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case ev := <-w.Events:
		abs, _ := filepath.Abs(target)
		if ev.Path != abs {
			t.Errorf("event path = %s, want %s", ev.Path, abs)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change event")
	}

	select {
	case ev := <-w.Events:
		t.Errorf("burst should yield one event, got another for %s", ev.Path)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "recording.yaml")
	os.WriteFile(target, []byte("a"), 0644)

	w, err := NewWatcher(50*time.Millisecond, target)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	w.Start()

	os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("b"), 0644)

	select {
	case ev := <-w.Events:
		t.Errorf("unexpected event for %s", ev.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	if _, err := NewWatcher(0, filepath.Join(t.TempDir(), "missing", "rec.yaml")); err == nil {
		t.Error("Expected an error for a missing directory")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(0)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
