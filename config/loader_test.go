package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddr != ":8830" {
		t.Errorf("expected default listen addr :8830, got %s", cfg.Server.ListenAddr)
	}
	if cfg.Backend.Type != "memory" {
		t.Errorf("expected default backend memory, got %s", cfg.Backend.Type)
	}
	if cfg.Audit.Type != "sqlite" {
		t.Errorf("expected default audit store sqlite, got %s", cfg.Audit.Type)
	}
	if cfg.Sessions.IdleTTL != 30*time.Minute {
		t.Errorf("expected default idle TTL 30m, got %s", cfg.Sessions.IdleTTL)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  listen_addr: ":9000"
backend:
  type: redis
  redis_addr: "redis.internal:6379"
audit:
  type: none
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("expected listen addr :9000, got %s", cfg.Server.ListenAddr)
	}
	if cfg.Backend.Type != "redis" || cfg.Backend.RedisAddr != "redis.internal:6379" {
		t.Errorf("redis backend not loaded from file: %+v", cfg.Backend)
	}
	// Defaults still fill in what the file omits.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected default read timeout, got %s", cfg.Server.ReadTimeout)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfigFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("DSLOCKD_LOG_LEVEL", "debug")
	t.Setenv("DSLOCKD_BACKEND_TYPE", "none")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("env override not applied to log level: %s", cfg.Log.Level)
	}
	if cfg.Backend.Type != "none" {
		t.Errorf("env override not applied to backend type: %s", cfg.Backend.Type)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"defaults are valid", func(cfg *AppConfig) {}, false},
		{"missing listen addr", func(cfg *AppConfig) { cfg.Server.ListenAddr = "" }, true},
		{"no credentials", func(cfg *AppConfig) {
			cfg.Auth.APIKeys = nil
			cfg.Auth.Users = nil
		}, true},
		{"unknown backend type", func(cfg *AppConfig) { cfg.Backend.Type = "etcd" }, true},
		{"redis backend without addr", func(cfg *AppConfig) {
			cfg.Backend.Type = "redis"
			cfg.Backend.RedisAddr = ""
		}, true},
		{"postgres audit without dsn", func(cfg *AppConfig) {
			cfg.Audit.Type = "postgres"
			cfg.Audit.DSN = ""
		}, true},
		{"sqlite audit without path", func(cfg *AppConfig) {
			cfg.Audit.Type = "sqlite"
			cfg.Audit.SQLitePath = ""
		}, true},
		{"audit disabled", func(cfg *AppConfig) { cfg.Audit.Type = "none" }, false},
		{"zero idle ttl", func(cfg *AppConfig) { cfg.Sessions.IdleTTL = 0 }, true},
		{"zero sweep interval", func(cfg *AppConfig) { cfg.Sessions.SweepInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAppConfig()
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
