package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danmuck/hyperchat/internal/config"
	"github.com/danmuck/hyperchat/internal/testutil/testlog"
)

// exerciseLog runs the behaviour every backend shares.
func exerciseLog(t *testing.T, l Log) {
	t.Helper()
	ctx := context.Background()

	if l.ID() == "" {
		t.Fatalf("expected feed id")
	}
	n, err := l.Len(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected empty log, got %d, %v", n, err)
	}

	blocks := [][]byte{[]byte("first"), {}, []byte(`{"type":"status"}`)}
	for i, b := range blocks {
		seq, err := l.Append(ctx, b)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, seq)
		}
	}
	for i, want := range blocks {
		got, err := l.Get(ctx, uint64(i))
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("get %d: got %q want %q", i, got, want)
		}
	}
	if _, err := l.Get(ctx, uint64(len(blocks))); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n, err := l.Len(ctx); err != nil || n != uint64(len(blocks)) {
		t.Fatalf("unexpected len %d, %v", n, err)
	}
	if _, err := l.Append(ctx, make([]byte, MaxBlockSize+1)); !errors.Is(err, ErrBlockTooLarge) {
		t.Fatalf("expected ErrBlockTooLarge, got %v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := l.Append(ctx, []byte("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := l.Get(ctx, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryLog(t *testing.T) {
	testlog.Start(t)
	exerciseLog(t, NewMemory())
}

func TestMemoryCopiesBlocks(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	m := NewMemory()
	block := []byte("abc")
	if _, err := m.Append(ctx, block); err != nil {
		t.Fatalf("append: %v", err)
	}
	block[0] = 'x'
	got, _ := m.Get(ctx, 0)
	if string(got) != "abc" {
		t.Fatalf("stored block aliased caller buffer: %q", got)
	}
}

func TestMemoryCanceledContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemory().Append(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryConcurrentAppendsAreDense(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	seen := make([]bool, 64)
	var mu sync.Mutex
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seq, err := m.Append(ctx, []byte(fmt.Sprint(i)))
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	for i, ok := range seen {
		if !ok {
			t.Fatalf("missing seq %d", i)
		}
	}
}

func TestLocalFSLog(t *testing.T) {
	testlog.Start(t)
	l, err := OpenLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseLog(t, l)
}

func TestLocalFSReopenKeepsEntriesAndID(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	dir := t.TempDir()

	l, err := OpenLocalFS(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := l.ID()
	for _, b := range []string{"one", "two"} {
		if _, err := l.Append(ctx, []byte(b)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenLocalFS(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.ID() != id {
		t.Fatalf("id changed: %q != %q", reopened.ID(), id)
	}
	if n, _ := reopened.Len(ctx); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	seq, err := reopened.Append(ctx, []byte("three"))
	if err != nil || seq != 2 {
		t.Fatalf("append after reopen: %d, %v", seq, err)
	}
	got, err := reopened.Get(ctx, 1)
	if err != nil || string(got) != "two" {
		t.Fatalf("get 1: %q, %v", got, err)
	}
}

func TestLocalFSDropsTornTail(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	dir := t.TempDir()

	l, err := OpenLocalFS(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := l.Append(ctx, []byte("intact")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, localEntriesFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open entries: %v", err)
	}
	// Header claims 10 bytes but only 3 follow.
	if _, err := f.Write([]byte{0, 0, 0, 10, 'a', 'b', 'c'}); err != nil {
		t.Fatalf("write torn record: %v", err)
	}
	_ = f.Close()

	reopened, err := OpenLocalFS(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if n, _ := reopened.Len(ctx); n != 1 {
		t.Fatalf("expected torn record dropped, len=%d", n)
	}
	seq, err := reopened.Append(ctx, []byte("next"))
	if err != nil || seq != 1 {
		t.Fatalf("append: %d, %v", seq, err)
	}
	got, err := reopened.Get(ctx, 1)
	if err != nil || string(got) != "next" {
		t.Fatalf("get 1: %q, %v", got, err)
	}
}

func TestLocalFSRejectsBadID(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, localIDFile), []byte("not-a-uuid"), 0o644); err != nil {
		t.Fatalf("write id: %v", err)
	}
	if _, err := OpenLocalFS(dir); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestLocalFSRejectsOversizedRecord(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, localEntriesFile), []byte{0xff, 0xff, 0xff, 0xff}, 0o644); err != nil {
		t.Fatalf("write entries: %v", err)
	}
	if _, err := OpenLocalFS(dir); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	mem, err := Open(ctx, config.FeedConfig{Backend: config.BackendMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := mem.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", mem)
	}

	dir := filepath.Join(t.TempDir(), "feeds", "own")
	fs, err := Open(ctx, config.FeedConfig{Backend: config.BackendLocalFS, Dir: dir})
	if err != nil {
		t.Fatalf("open localfs: %v", err)
	}
	defer fs.Close()
	if local, ok := fs.(*LocalFS); !ok || local.Dir() != dir {
		t.Fatalf("expected *LocalFS at %s, got %T", dir, fs)
	}

	if _, err := Open(ctx, config.FeedConfig{Backend: "tape"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := Open(ctx, config.FeedConfig{Backend: config.BackendRedis}); err == nil {
		t.Fatalf("expected error for redis without address")
	}
}
