package feed

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	localIDFile      = "feed.id"
	localEntriesFile = "entries.log"
	recordHeaderSize = 4
)

// LocalFS is a directory-backed Log. Blocks are stored in entries.log as
// big-endian uint32 length prefixes followed by the block bytes.
type LocalFS struct {
	mu      sync.RWMutex
	dir     string
	id      string
	file    *os.File
	offsets []int64
	size    int64
	closed  bool
}

// OpenLocalFS opens or creates the feed in dir. A partially written trailing
// record is dropped and overwritten by the next append.
func OpenLocalFS(dir string) (*LocalFS, error) {
	if dir == "" {
		return nil, errors.New("feed: localfs directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("feed: create %s: %w", dir, err)
	}
	id, err := loadOrCreateID(filepath.Join(dir, localIDFile))
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, localEntriesFile)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("feed: open %s: %w", path, err)
	}
	offsets, size, err := scanRecords(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("feed: truncate %s: %w", path, err)
	}

	return &LocalFS{
		dir:     dir,
		id:      id,
		file:    f,
		offsets: offsets,
		size:    size,
	}, nil
}

func loadOrCreateID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, perr := uuid.Parse(id); perr != nil {
			return "", fmt.Errorf("%w: bad feed id in %s: %v", ErrCorrupt, path, perr)
		}
		return id, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("feed: read %s: %w", path, err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("feed: write %s: %w", path, err)
	}
	return id, nil
}

// scanRecords returns the offset of every complete record and the end of the
// last complete one.
func scanRecords(r io.ReaderAt) ([]int64, int64, error) {
	var (
		offsets []int64
		off     int64
		head    = make([]byte, recordHeaderSize)
	)
	for {
		n, err := r.ReadAt(head, off)
		if n < recordHeaderSize {
			if err == nil || errors.Is(err, io.EOF) {
				return offsets, off, nil
			}
			return nil, 0, fmt.Errorf("feed: scan: %w", err)
		}
		length := int64(binary.BigEndian.Uint32(head))
		if length > MaxBlockSize {
			return nil, 0, fmt.Errorf("%w: record at offset %d claims %d bytes", ErrCorrupt, off, length)
		}
		if length > 0 {
			// Probe the final byte to detect a torn tail.
			probe := make([]byte, 1)
			if _, err := r.ReadAt(probe, off+recordHeaderSize+length-1); err != nil {
				if errors.Is(err, io.EOF) {
					return offsets, off, nil
				}
				return nil, 0, fmt.Errorf("feed: scan: %w", err)
			}
		}
		offsets = append(offsets, off)
		off += recordHeaderSize + length
	}
}

func (l *LocalFS) ID() string { return l.id }

// Dir returns the feed directory.
func (l *LocalFS) Dir() string { return l.dir }

func (l *LocalFS) Append(ctx context.Context, block []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkBlock(block); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}

	buf := make([]byte, recordHeaderSize+len(block))
	binary.BigEndian.PutUint32(buf[:recordHeaderSize], uint32(len(block)))
	copy(buf[recordHeaderSize:], block)
	if _, err := l.file.WriteAt(buf, l.size); err != nil {
		return 0, fmt.Errorf("feed: append: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return 0, fmt.Errorf("feed: sync: %w", err)
	}

	l.offsets = append(l.offsets, l.size)
	l.size += int64(len(buf))
	return uint64(len(l.offsets) - 1), nil
}

func (l *LocalFS) Get(ctx context.Context, seq uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	if seq >= uint64(len(l.offsets)) {
		return nil, ErrNotFound
	}

	off := l.offsets[seq]
	head := make([]byte, recordHeaderSize)
	if _, err := l.file.ReadAt(head, off); err != nil {
		return nil, fmt.Errorf("feed: read header %d: %w", seq, err)
	}
	block := make([]byte, binary.BigEndian.Uint32(head))
	if len(block) == 0 {
		return block, nil
	}
	if _, err := l.file.ReadAt(block, off+recordHeaderSize); err != nil {
		return nil, fmt.Errorf("feed: read block %d: %w", seq, err)
	}
	return block, nil
}

func (l *LocalFS) Len(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, ErrClosed
	}
	return uint64(len(l.offsets)), nil
}

func (l *LocalFS) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
