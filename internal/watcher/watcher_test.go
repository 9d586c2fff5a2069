package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type eventLog struct {
	mu       sync.Mutex
	ingested []string
	removed  []string
}

func (l *eventLog) ingest(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ingested = append(l.ingested, path)
}

func (l *eventLog) remove(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, path)
}

func (l *eventLog) waitFor(t *testing.T, want func(ingested, removed []string) bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		ok := want(l.ingested, l.removed)
		l.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t.Fatalf("condition not met; ingested=%v removed=%v", l.ingested, l.removed)
}

func startWatcher(t *testing.T, roots []string, exts []string) (*Watcher, *eventLog) {
	t.Helper()
	log := &eventLog{}
	w := New(roots, exts, true, log.ingest, log.remove, WithDebounce(30*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, log
}

func TestWatcher(t *testing.T) {
	t.Run("ingests created files with matching extension", func(t *testing.T) {
		dir := t.TempDir()
		_, log := startWatcher(t, []string{dir}, []string{".txt"})

		path := filepath.Join(dir, "a.txt")
		if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "b.bin"), []byte("skip"), 0644); err != nil {
			t.Fatal(err)
		}

		log.waitFor(t, func(ingested, _ []string) bool {
			return len(ingested) == 1 && ingested[0] == path
		})
	})

	t.Run("debounces rapid writes", func(t *testing.T) {
		dir := t.TempDir()
		_, log := startWatcher(t, []string{dir}, []string{".txt"})

		path := filepath.Join(dir, "burst.txt")
		for i := 0; i < 5; i++ {
			if err := os.WriteFile(path, []byte("v"), 0644); err != nil {
				t.Fatal(err)
			}
			time.Sleep(5 * time.Millisecond)
		}

		log.waitFor(t, func(ingested, _ []string) bool {
			return len(ingested) >= 1
		})
		time.Sleep(150 * time.Millisecond)
		log.mu.Lock()
		n := len(log.ingested)
		log.mu.Unlock()
		if n > 2 {
			t.Errorf("ingest fired %d times for a write burst", n)
		}
	})

	t.Run("removal triggers remove callback", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gone.txt")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		_, log := startWatcher(t, []string{dir}, []string{".txt"})

		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
		log.waitFor(t, func(_, removed []string) bool {
			return len(removed) == 1 && removed[0] == path
		})
	})

	t.Run("add and remove directories at runtime", func(t *testing.T) {
		first := t.TempDir()
		second := t.TempDir()
		w, log := startWatcher(t, []string{first}, []string{".txt"})

		if err := w.AddDirectory(second, false); err != nil {
			t.Fatalf("AddDirectory: %v", err)
		}
		if got := len(w.Directories()); got != 2 {
			t.Fatalf("Directories() = %d", got)
		}

		path := filepath.Join(second, "new.txt")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		log.waitFor(t, func(ingested, _ []string) bool {
			return len(ingested) >= 1
		})

		if err := w.RemoveDirectory(second); err != nil {
			t.Fatalf("RemoveDirectory: %v", err)
		}
		if got := len(w.Directories()); got != 1 {
			t.Errorf("Directories() = %d after removal", got)
		}
	})

	t.Run("sync existing files", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"one.txt", "two.txt"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		w, log := startWatcher(t, []string{dir}, []string{".txt"})
		w.SyncExistingFiles()

		log.waitFor(t, func(ingested, _ []string) bool {
			return len(ingested) >= 2
		})
	})
}
