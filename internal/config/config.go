package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Feed backends.
const (
	BackendLocalFS = "localfs"
	BackendMemory  = "memory"
	BackendRedis   = "redis"
)

const (
	DefaultUsername    = "anonymous"
	DefaultStorage     = "./storage"
	DefaultRedisStream = "hyperchat:feed"
	DefaultReadLimit   = 100
)

// Config is the resolved hyperchat node configuration.
type Config struct {
	Username string
	Storage  string
	Feed     FeedConfig
	Read     ReadConfig
}

// FeedConfig selects and parameterizes the append-only log backend.
type FeedConfig struct {
	Backend     string
	Dir         string
	RedisAddr   string
	RedisStream string
	RedisDB     int
}

type ReadConfig struct {
	Limit int
}

type fileConfig struct {
	Username string   `toml:"username"`
	Storage  string   `toml:"storage"`
	Feed     fileFeed `toml:"feed"`
	Read     fileRead `toml:"read"`
}

type fileFeed struct {
	Backend     string `toml:"backend"`
	RedisAddr   string `toml:"redis_addr"`
	RedisStream string `toml:"redis_stream"`
	RedisDB     int    `toml:"redis_db"`
}

type fileRead struct {
	Limit int `toml:"limit"`
}

func DefaultConfig() Config {
	cfg := Config{
		Username: DefaultUsername,
		Storage:  DefaultStorage,
		Feed: FeedConfig{
			Backend:     BackendLocalFS,
			RedisStream: DefaultRedisStream,
		},
		Read: ReadConfig{Limit: DefaultReadLimit},
	}
	cfg.Resolve()
	return cfg
}

// Load reads path over DefaultConfig. Keys absent from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("username") {
		if v := strings.TrimSpace(raw.Username); v != "" {
			cfg.Username = v
		}
	}
	if meta.IsDefined("storage") {
		cfg.Storage = strings.TrimSpace(raw.Storage)
	}
	if meta.IsDefined("feed", "backend") {
		cfg.Feed.Backend = strings.ToLower(strings.TrimSpace(raw.Feed.Backend))
	}
	if meta.IsDefined("feed", "redis_addr") {
		cfg.Feed.RedisAddr = strings.TrimSpace(raw.Feed.RedisAddr)
	}
	if meta.IsDefined("feed", "redis_stream") {
		cfg.Feed.RedisStream = strings.TrimSpace(raw.Feed.RedisStream)
	}
	if meta.IsDefined("feed", "redis_db") {
		cfg.Feed.RedisDB = raw.Feed.RedisDB
	}
	if meta.IsDefined("read", "limit") {
		cfg.Read.Limit = raw.Read.Limit
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Resolve derives dependent fields. Call it again after changing Storage.
func (c *Config) Resolve() {
	c.Feed.Dir = ""
	if strings.TrimSpace(c.Storage) != "" {
		c.Feed.Dir = filepath.Join(c.Storage, "feeds", "own")
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if c.Read.Limit <= 0 {
		return fmt.Errorf("read.limit must be positive, got %d", c.Read.Limit)
	}
	return c.Feed.Validate()
}

func (f FeedConfig) Validate() error {
	switch f.Backend {
	case BackendMemory:
		return nil
	case BackendLocalFS:
		if strings.TrimSpace(f.Dir) == "" {
			return fmt.Errorf("storage is required for the %s backend", BackendLocalFS)
		}
		return nil
	case BackendRedis:
		if f.RedisAddr == "" {
			return fmt.Errorf("feed.redis_addr is required for the %s backend", BackendRedis)
		}
		if f.RedisStream == "" {
			return fmt.Errorf("feed.redis_stream is required for the %s backend", BackendRedis)
		}
		if f.RedisDB < 0 {
			return fmt.Errorf("feed.redis_db must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("unknown feed backend %q", f.Backend)
	}
}
