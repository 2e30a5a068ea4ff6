package feed

import (
	"context"
	"fmt"

	"github.com/danmuck/hyperchat/internal/config"
)

// MaxBlockSize bounds a single appended block.
const MaxBlockSize = 16 << 20

// Log is an append-only sequence of opaque blocks.
type Log interface {
	// ID is a stable identifier for the feed.
	ID() string
	// Append stores block and returns its sequence number.
	Append(ctx context.Context, block []byte) (uint64, error)
	// Get returns the block at seq or ErrNotFound.
	Get(ctx context.Context, seq uint64) ([]byte, error)
	// Len returns the number of stored blocks.
	Len(ctx context.Context) (uint64, error)
	Close() error
}

// Open builds the backend selected by cfg.
func Open(ctx context.Context, cfg config.FeedConfig) (Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendLocalFS:
		return OpenLocalFS(cfg.Dir)
	case config.BackendRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:   cfg.RedisAddr,
			DB:     cfg.RedisDB,
			Stream: cfg.RedisStream,
		})
	default:
		return nil, fmt.Errorf("feed: unknown backend %q", cfg.Backend)
	}
}

func checkBlock(block []byte) error {
	if len(block) > MaxBlockSize {
		return fmt.Errorf("%w: %d bytes", ErrBlockTooLarge, len(block))
	}
	return nil
}

func cloneBlock(block []byte) []byte {
	out := make([]byte, len(block))
	copy(out, block)
	return out
}
