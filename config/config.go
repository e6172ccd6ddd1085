// Package config provides configuration management for dslockd.
// It handles loading and validating configuration from YAML files and environment variables.
package config

import "time"

// AppConfig represents the complete application configuration
type AppConfig struct {
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
	Backend  BackendConfig  `koanf:"backend"`
	Audit    AuditConfig    `koanf:"audit"`
	Sessions SessionsConfig `koanf:"sessions"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ListenAddr       string        `koanf:"listen_addr"`
	ReadTimeout      time.Duration `koanf:"read_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
	SessionRateLimit float64       `koanf:"session_rate_limit"` // session creations per second
	SessionRateBurst int           `koanf:"session_rate_burst"`
}

// AuthConfig holds authentication and authorization configuration
type AuthConfig struct {
	APIKeys      []string            `koanf:"api_keys"`
	Users        map[string]string   `koanf:"users"`         // API key -> username
	DatastoreACL map[string][]string `koanf:"datastore_acl"` // username -> allowed datastores
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// BackendConfig holds authoritative lock store configuration
type BackendConfig struct {
	Type          string        `koanf:"type"` // "memory", "redis" or "none"
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisLockTTL  time.Duration `koanf:"redis_lock_ttl"`
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	Type            string        `koanf:"type"` // "sqlite", "postgres" or "none"
	SQLitePath      string        `koanf:"sqlite_path"`
	DSN             string        `koanf:"dsn"`
	Retention       time.Duration `koanf:"retention"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// SessionsConfig holds session lifecycle configuration
type SessionsConfig struct {
	IdleTTL       time.Duration `koanf:"idle_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}
