package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/memcached"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":11211", cfg.Addr)
	assert.Equal(t, 100, cfg.Capacity)
	assert.Equal(t, 250, cfg.MaxKeyLength)
	assert.Equal(t, 30*24*time.Hour, cfg.MaxTTL)
	assert.Equal(t, 10*24*time.Hour, cfg.PurgeInterval)
	assert.Equal(t, 1<<20+512, cfg.MaxFrameSize)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memcached.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: 127.0.0.1:22122
capacity: 5000
max_ttl: 1h
purge_interval: 30s
cas_tokens: uuid
close_on_error: true
log_format: json
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:22122", cfg.Addr)
	assert.Equal(t, 5000, cfg.Capacity)
	assert.Equal(t, time.Hour, cfg.MaxTTL)
	assert.Equal(t, 30*time.Second, cfg.PurgeInterval)
	assert.Equal(t, memcached.VersionsUUID, cfg.CASTokens)
	assert.True(t, cfg.CloseOnError)
	assert.Equal(t, "json", cfg.LogFormat)

	assert.Equal(t, 250, cfg.MaxKeyLength, "unset keys keep their default")
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capacity: [1, 2]\n"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MEMCACHED_ADDR", ":9999")
	t.Setenv("MEMCACHED_CAPACITY", "42")
	t.Setenv("MEMCACHED_MAX_TTL", "90s")
	t.Setenv("MEMCACHED_CLOSE_ON_ERROR", "true")
	t.Setenv("MEMCACHED_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg))

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 42, cfg.Capacity)
	assert.Equal(t, 90*time.Second, cfg.MaxTTL)
	assert.True(t, cfg.CloseOnError)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Setenv("MEMCACHED_CAPACITY", "lots")
	t.Setenv("MEMCACHED_PURGE_INTERVAL", "often")

	cfg := Default()
	err := ApplyEnv(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEMCACHED_CAPACITY")
	assert.Contains(t, err.Error(), "MEMCACHED_PURGE_INTERVAL")
	assert.Equal(t, 100, cfg.Capacity)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Capacity = 0
	cfg.MaxTTL = -time.Second
	cfg.CASTokens = "random"
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capacity must be positive")
	assert.Contains(t, err.Error(), "max_ttl must be positive")
	assert.Contains(t, err.Error(), `unknown cas token generator "random"`)
	assert.Contains(t, err.Error(), `unknown log format "xml"`)
}

func TestComponentConfigs(t *testing.T) {
	cfg := Default()
	cfg.MaxKeyLength = 10
	cfg.ReadTimeout = time.Minute

	assert.Equal(t, 100, cfg.CacheConfig().Capacity)
	assert.Equal(t, time.Minute, cfg.ServerConfig().ReadTimeout)

	pc, err := cfg.ProcessorConfig()
	require.NoError(t, err)
	_, err = pc.Parser.Parse([]byte("get abcdefghijk\r\n"))
	assert.Error(t, err)
	assert.IsType(t, &memcached.CounterVersions{}, pc.Versions)
}
