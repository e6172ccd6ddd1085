package config

import "time"

// DefaultAppConfig returns an AppConfig struct with sensible default values
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:       ":8830",
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			ShutdownTimeout:  30 * time.Second,
			SessionRateLimit: 100,
			SessionRateBurst: 10,
		},
		Auth: AuthConfig{
			APIKeys:      []string{"default-api-key"},
			Users:        make(map[string]string),
			DatastoreACL: make(map[string][]string),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Backend: BackendConfig{
			Type:         "memory", // Default to the in-process store
			RedisAddr:    "localhost:6379",
			RedisLockTTL: 30 * time.Second,
		},
		Audit: AuditConfig{
			Type:            "sqlite",
			SQLitePath:      "./dslockd-audit.sqlite3",
			DSN:             "",
			Retention:       30 * 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Sessions: SessionsConfig{
			IdleTTL:       30 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}
