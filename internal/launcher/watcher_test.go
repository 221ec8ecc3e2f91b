package launcher

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchConfigWarnsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launch.json")
	if err := os.WriteFile(path, []byte(`{"name":"a"}`), 0644); err != nil {
		t.Fatal(err)
	}

	var out syncBuffer
	l := &Launcher{logger: slog.New(slog.NewTextHandler(&out, nil))}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.watchConfig(ctx, path) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(watcherDebounce + 200*time.Millisecond)
	if strings.Contains(out.String(), "config changed") {
		t.Fatal("warned about an unrelated file")
	}

	if err := os.WriteFile(path, []byte(`{"name":"b"}`), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "config changed") {
		if time.Now().After(deadline) {
			t.Fatalf("no warning logged, output:\n%s", out.String())
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watchConfig: %v", err)
	}
}
