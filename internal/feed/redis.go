package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisBlockField = "block"

// appendScript assigns the next sequence atomically: entry n gets stream id
// "<n+1>-0", so sequence numbers stay dense across concurrent writers.
var appendScript = redis.NewScript(`
local n = redis.call('XLEN', KEYS[1])
redis.call('XADD', KEYS[1], (n + 1) .. '-0', ARGV[1], ARGV[2])
return n
`)

type RedisOptions struct {
	Addr   string
	DB     int
	Stream string
}

// Redis is a Log stored in a single redis stream.
type Redis struct {
	client *redis.Client
	stream string
	id     string
	closed atomic.Bool
}

// OpenRedis connects and resolves the feed identity stored at
// "<stream>:id", creating it on first use.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" || opts.Stream == "" {
		return nil, errors.New("feed: redis address and stream are required")
	}
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("feed: redis ping %s: %w", opts.Addr, err)
	}

	idKey := opts.Stream + ":id"
	if err := client.SetNX(ctx, idKey, uuid.NewString(), 0).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("feed: redis init id: %w", err)
	}
	id, err := client.Get(ctx, idKey).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("feed: redis read id: %w", err)
	}

	return &Redis{client: client, stream: opts.Stream, id: id}, nil
}

func (r *Redis) ID() string { return r.id }

func (r *Redis) Append(ctx context.Context, block []byte) (uint64, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	if err := checkBlock(block); err != nil {
		return 0, err
	}
	n, err := appendScript.Run(ctx, r.client, []string{r.stream}, redisBlockField, block).Int64()
	if err != nil {
		return 0, fmt.Errorf("feed: redis append: %w", err)
	}
	return uint64(n), nil
}

func (r *Redis) Get(ctx context.Context, seq uint64) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	id := streamID(seq)
	msgs, err := r.client.XRange(ctx, r.stream, id, id).Result()
	if err != nil {
		return nil, fmt.Errorf("feed: redis get %d: %w", seq, err)
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return blockFromValues(msgs[0].Values)
}

func (r *Redis) Len(ctx context.Context) (uint64, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	n, err := r.client.XLen(ctx, r.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("feed: redis len: %w", err)
	}
	return uint64(n), nil
}

func (r *Redis) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.client.Close()
}

func streamID(seq uint64) string {
	return strconv.FormatUint(seq+1, 10) + "-0"
}

func blockFromValues(values map[string]interface{}) ([]byte, error) {
	raw, ok := values[redisBlockField]
	if !ok {
		return nil, fmt.Errorf("%w: stream entry missing %q", ErrCorrupt, redisBlockField)
	}
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return cloneBlock(v), nil
	default:
		return nil, fmt.Errorf("%w: stream entry %q has type %T", ErrCorrupt, redisBlockField, raw)
	}
}
