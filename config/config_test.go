package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dzialka.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"

[storage]
path = "/var/lib/dzialka"

[features]
max_distance_m = 8000

[features.quietness]
base = 90

[query]
default_limit = 10
coverage_margin_m = 500.0

[similarity]
ef_search = 64

[rebuild]
artifact_path = "/var/lib/dzialka/generation.msgpack"
retry_delay = "2s"

[server]
listen = ":9090"
request_timeout = "750ms"

[labels]
uri = "neo4j://graph:7687"
username = "reader"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/dzialka", cfg.Storage.Path)
	assert.Equal(t, 8000.0, cfg.Features.MaxDistanceM)
	assert.Equal(t, 90.0, cfg.Features.Quietness.Base)
	assert.NotEmpty(t, cfg.Features.Quietness.Industrial.Steps, "unset tables keep defaults")
	assert.Equal(t, 10, cfg.Query.DefaultLimit)
	assert.Equal(t, 50, cfg.Query.MaxLimit)
	assert.Equal(t, 500.0, cfg.Query.CoverageMarginM)
	assert.Equal(t, 64, cfg.Similarity.EfSearch)
	assert.Equal(t, 16, cfg.Similarity.M)
	assert.Equal(t, "/var/lib/dzialka/generation.msgpack", cfg.Rebuild.ArtifactPath)
	assert.Equal(t, 2*time.Second, cfg.Rebuild.RetryDelay)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 750*time.Millisecond, cfg.Server.RequestTimeout)
	assert.True(t, cfg.Labels.Enabled())
	assert.Equal(t, 1000, cfg.Labels.BatchSize)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "[storage\npath = 1"},
		{"unknown key", "[storage]\nbogus = true"},
		{"invalid limit", "[query]\ndefault_limit = 80"},
		{"invalid level", "[log]\nlevel = \"chatty\""},
		{"invalid hnsw", "[similarity]\nm = 1"},
		{"descending steps", "[features.nature]\nforest = { steps = [{ below = 500, points = 10 }, { below = 100, points = 30 }] }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, core.ErrConfiguration)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}
