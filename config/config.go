// Package config loads the TOML configuration shared by the dzialka commands.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/embedding"
	"github.com/MarcinSar/moja-dzialka-sub000/features"
	"github.com/MarcinSar/moja-dzialka-sub000/rebuild"
	"github.com/MarcinSar/moja-dzialka-sub000/search"
	"github.com/MarcinSar/moja-dzialka-sub000/similarity"
)

// Config holds all user-facing configuration.
type Config struct {
	Log        LogConfig         `toml:"log"`
	Storage    StorageConfig     `toml:"storage"`
	Features   features.Config   `toml:"features"`
	Embedding  embedding.Params  `toml:"embedding"`
	Similarity similarity.Config `toml:"similarity"`
	Query      search.Config     `toml:"query"`
	Ingestion  IngestionConfig   `toml:"ingestion"`
	Rebuild    rebuild.Config    `toml:"rebuild"`
	Server     ServerConfig      `toml:"server"`
	Labels     LabelsConfig      `toml:"labels"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type StorageConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

type IngestionConfig struct {
	BatchSize int `toml:"batch_size"`
	PoolSize  int `toml:"pool_size"`
}

type ServerConfig struct {
	Listen         string        `toml:"listen"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	RetryAfter     time.Duration `toml:"retry_after"`
}

// LabelsConfig points at the optional Neo4j label graph. An empty URI
// disables label lookup.
type LabelsConfig struct {
	URI       string `toml:"uri"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
	BatchSize int    `toml:"batch_size"`
}

// Enabled reports whether a label source is configured.
func (c LabelsConfig) Enabled() bool {
	return c.URI != ""
}

// Defaults returns a Config populated with built-in default values.
func Defaults() *Config {
	return &Config{
		Log:        LogConfig{Level: "info"},
		Storage:    StorageConfig{Path: "data/parcels"},
		Features:   features.DefaultConfig(),
		Embedding:  embedding.DefaultParams(),
		Similarity: similarity.DefaultConfig(),
		Query:      search.DefaultConfig(),
		Ingestion:  IngestionConfig{BatchSize: 500},
		Rebuild:    *rebuild.DefaultConfig(),
		Server: ServerConfig{
			Listen:         "localhost:8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 5 * time.Second,
			RetryAfter:     5 * time.Second,
		},
		Labels: LabelsConfig{BatchSize: 1000},
	}
}

// Load reads a TOML config file. If the file does not exist, built-in
// defaults are returned without error. Keys the file does not set keep
// their defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrConfiguration, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s: unknown keys %s", core.ErrConfiguration, path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage path required", core.ErrConfiguration)
	}
	if err := c.Features.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Similarity.Validate(); err != nil {
		return err
	}
	if err := c.Query.Validate(); err != nil {
		return err
	}
	if c.Rebuild.MaxRetries < 1 {
		return fmt.Errorf("%w: rebuild max_retries must be positive", core.ErrConfiguration)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("%w: server listen address required", core.ErrConfiguration)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", core.ErrConfiguration, s)
	}
	return level, nil
}
