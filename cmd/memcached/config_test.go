package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pior/memcached/config"
)

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memcached.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":1\"\ncapacity: 10\nlog_level: debug\n"), 0o600))

	t.Setenv("MEMCACHED_CAPACITY", "20")
	t.Setenv("MEMCACHED_MAX_TTL", "1h")

	cmd := serveCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--max-ttl", "2h", "--cas-tokens", "uuid"}))

	configPath, err := cmd.Flags().GetString("config")
	require.NoError(t, err)

	flagCfg := config.Default()
	flagCfg.MaxTTL = 2 * time.Hour
	flagCfg.CASTokens = "uuid"

	cfg, err := loadConfig(configPath, cmd.Flags(), flagCfg)
	require.NoError(t, err)

	assert.Equal(t, ":1", cfg.Addr, "file")
	assert.Equal(t, "debug", cfg.LogLevel, "file")
	assert.Equal(t, 20, cfg.Capacity, "env over file")
	assert.Equal(t, 2*time.Hour, cfg.MaxTTL, "flag over env")
	assert.Equal(t, "uuid", cfg.CASTokens, "flag")
	assert.Equal(t, config.Default().PurgeInterval, cfg.PurgeInterval, "default")
}

func TestLoadConfig_Invalid(t *testing.T) {
	cmd := serveCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--capacity", "0"}))

	flagCfg := config.Default()
	flagCfg.Capacity = 0

	_, err := loadConfig("", cmd.Flags(), flagCfg)
	require.ErrorContains(t, err, "capacity must be positive")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), serveCmd().Flags(), config.Default())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigCmd(t *testing.T) {
	cmd := configCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--addr", "127.0.0.1:22122", "--log-format", "json"})

	require.NoError(t, cmd.Execute())

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	assert.Equal(t, "127.0.0.1:22122", cfg.Addr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, config.Default().Capacity, cfg.Capacity)
}
