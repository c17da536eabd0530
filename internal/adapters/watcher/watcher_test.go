package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsRasterFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/data/ortho.tif", true},
		{"/data/ortho.TIFF", true},
		{"/data/mosaic.vrt", true},
		{"/data/scan.img", true},
		{"/data/ortho.tif.aux.xml", false},
		{"/data/readme.txt", false},
		{"/data/cell.mbtiles", false},
	}
	for _, tt := range tests {
		if got := isRasterFile(tt.path); got != tt.want {
			t.Errorf("isRasterFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcherFiresOnceAfterSettle(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var handled []string
	handler := func(_ context.Context, path string) error {
		mu.Lock()
		handled = append(handled, path)
		mu.Unlock()
		return nil
	}

	w, err := New(Config{Paths: []string{dir}, Debounce: 200 * time.Millisecond}, handler, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Simulate a raster being copied in with several writes.
	path := filepath.Join(dir, "ortho.tif")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := len(handled)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("handler never fired")
		case <-time.After(50 * time.Millisecond):
		}
	}

	// Give the debouncer time to misfire if it is going to.
	time.Sleep(400 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 1 {
		t.Errorf("handler fired %d times, want 1", len(handled))
	}
	if handled[0] != path {
		t.Errorf("handled path = %q, want %q", handled[0], path)
	}
}

func TestWatcherSerializesRuns(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	active, handled := 0, 0
	overlapped := false
	handler := func(_ context.Context, _ string) error {
		mu.Lock()
		active++
		if active > 1 {
			overlapped = true
		}
		mu.Unlock()

		time.Sleep(150 * time.Millisecond)

		mu.Lock()
		active--
		handled++
		mu.Unlock()
		return nil
	}

	w, err := New(Config{Paths: []string{dir}, Debounce: 100 * time.Millisecond}, handler, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Two rasters dropped in together settle in the same window.
	for _, name := range []string{"north.tif", "south.tif"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		n := handled
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("handled %d rasters, want 2", n)
		case <-time.After(50 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if overlapped {
		t.Error("handler ran concurrently for overlapping settles")
	}
}

func TestWatcherIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	fired := false
	handler := func(_ context.Context, _ string) error {
		mu.Lock()
		fired = true
		mu.Unlock()
		return nil
	}

	w, err := New(Config{Paths: []string{dir}, Debounce: 100 * time.Millisecond}, handler, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("handler fired for a non-raster file")
	}
}
