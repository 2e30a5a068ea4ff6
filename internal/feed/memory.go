package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Log. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	id     string
	blocks [][]byte
	closed bool
}

func NewMemory() *Memory {
	return &Memory{id: uuid.NewString()}
}

func (m *Memory) ID() string { return m.id }

func (m *Memory) Append(ctx context.Context, block []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkBlock(block); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.blocks = append(m.blocks, cloneBlock(block))
	return uint64(len(m.blocks) - 1), nil
}

func (m *Memory) Get(ctx context.Context, seq uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if seq >= uint64(len(m.blocks)) {
		return nil, ErrNotFound
	}
	return cloneBlock(m.blocks[seq]), nil
}

func (m *Memory) Len(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return uint64(len(m.blocks)), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
