// Package config provides configuration management for easylock.
// It handles loading and validating configuration from YAML/JSON files and environment variables.
package config

import "time"

// AppConfig represents the complete application configuration
type AppConfig struct {
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Lock    LockConfig    `koanf:"lock"`
	Store   StoreConfig   `koanf:"store"`
	Worker  WorkerConfig  `koanf:"worker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Mode controls how lock resource names are logged: production, development or debug
	Mode string `koanf:"mode"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// LockConfig holds lock service policy
type LockConfig struct {
	DefaultTTL        time.Duration `koanf:"default_ttl"`
	FatalOnDisconnect bool          `koanf:"fatal_on_disconnect"`
}

// StoreConfig selects and configures the persisting lock store
type StoreConfig struct {
	Type           string        `koanf:"type"` // "memory", "redis", "postgres" or "sqlite"
	RedisAddr      string        `koanf:"redis_addr"`
	RedisPassword  string        `koanf:"redis_password"`
	RedisDB        int           `koanf:"redis_db"`
	RedisKeyPrefix string        `koanf:"redis_key_prefix"`
	PostgresDSN    string        `koanf:"postgres_dsn"`
	SQLitePath     string        `koanf:"sqlite_path"`
	PruneInterval  time.Duration `koanf:"prune_interval"` // SQL stores only
}

// WorkerConfig holds supervised job settings
type WorkerConfig struct {
	Interval   time.Duration `koanf:"interval"`
	RetryDelay time.Duration `koanf:"retry_delay"`
	MaxRetries int           `koanf:"max_retries"`
}
