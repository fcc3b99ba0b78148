package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the process configuration. Empty connection settings select the
// in-process fallback for that concern: memory store, local locker, log-only
// event publisher.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	Resolution ResolutionConfig `koanf:"resolution"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DatabaseConfig selects PostgreSQL when URL is set.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	TxTimeout       time.Duration `koanf:"tx_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// RedisConfig selects the Redis identity locker when URL is set.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	LockTTL      time.Duration `koanf:"lock_ttl"`
}

// KafkaConfig selects the Kafka event publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers           []string      `koanf:"brokers"`
	Topic             string        `koanf:"topic"`
	ClientID          string        `koanf:"client_id"`
	Partitions        int32         `koanf:"partitions"`
	ReplicationFactor int16         `koanf:"replication_factor"`
	DeliveryTimeout   time.Duration `koanf:"delivery_timeout"`
	EnsureTopic       bool          `koanf:"ensure_topic"`
}

// ResolutionConfig picks how far consolidation walks from the submitted
// identifiers: "one_hop" or "transitive".
type ResolutionConfig struct {
	Mode string `koanf:"mode"`
}

// RateLimitConfig bounds requests per client IP on the identify route. Counters
// live in Redis when it is configured and in process memory otherwise.
type RateLimitConfig struct {
	Disabled          bool          `koanf:"disabled"`
	RequestsPerWindow int           `koanf:"requests_per_window"`
	Window            time.Duration `koanf:"window"`
	SweepInterval     time.Duration `koanf:"sweep_interval"`
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3000"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.TxTimeout == 0 {
		cfg.Database.TxTimeout = 5 * time.Second
	}

	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 10 * time.Second
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "identify.contacts"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "identify"
	}
	if cfg.Kafka.Partitions == 0 {
		cfg.Kafka.Partitions = 3
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}
	if cfg.Kafka.DeliveryTimeout == 0 {
		cfg.Kafka.DeliveryTimeout = 10 * time.Second
	}

	if cfg.Resolution.Mode == "" {
		cfg.Resolution.Mode = "one_hop"
	}

	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit.RequestsPerWindow = 120
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.SweepInterval == 0 {
		cfg.RateLimit.SweepInterval = 5 * time.Minute
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (want debug, info, warn or error)", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q (want json or text)", c.Log.Format)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database max_idle_conns (%d) exceeds max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Redis.LockTTL <= 0 {
		return errors.New("redis lock_ttl must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka topic is required when brokers are set")
	}
	switch c.Resolution.Mode {
	case "one_hop", "transitive":
	default:
		return fmt.Errorf("invalid resolution mode %q (want one_hop or transitive)", c.Resolution.Mode)
	}
	if !c.RateLimit.Disabled && (c.RateLimit.RequestsPerWindow < 0 || c.RateLimit.Window < 0) {
		return errors.New("ratelimit requests_per_window and window must not be negative")
	}
	if c.RateLimit.SweepInterval <= 0 {
		return errors.New("ratelimit sweep_interval must be positive")
	}
	return nil
}
