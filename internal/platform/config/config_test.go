package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "one_hop", cfg.Resolution.Mode)
	assert.Empty(t, cfg.Database.URL, "no database selects the memory store")
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.RateLimit.Disabled)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identify.yaml")
	yaml := `
server:
  addr: ":8080"
  request_timeout: 2s
database:
  url: postgres://file
  max_open_conns: 10
resolution:
  mode: transitive
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("IDENTIFY_DATABASE_URL", "postgres://env")
	t.Setenv("IDENTIFY_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("IDENTIFY_LOG_LEVEL", "debug")
	t.Setenv("IDENTIFY_RATELIMIT_REQUESTS_PER_WINDOW", "30")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "postgres://env", cfg.Database.URL, "env overrides file")
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "transitive", cfg.Resolution.Mode)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerWindow)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"bad resolution mode", func(c *Config) { c.Resolution.Mode = "deep" }, "invalid resolution mode"},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 100 }, "exceeds max_open_conns"},
		{"brokers without topic", func(c *Config) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.Kafka.Topic = ""
		}, "kafka topic is required"},
		{"negative rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = -1 }, "ratelimit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			applyDefaults(&cfg)
			require.NoError(t, cfg.Validate())

			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", envKey("IDENTIFY_SERVER_ADDR"))
	assert.Equal(t, "database.max_open_conns", envKey("IDENTIFY_DATABASE_MAX_OPEN_CONNS"))
	assert.Equal(t, "debug", envKey("IDENTIFY_DEBUG"))
}
