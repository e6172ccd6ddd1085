package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// LoadConfig loads configuration from multiple sources with strict priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig() (AppConfig, error) {
	return LoadConfigFromFile("")
}

// LoadConfigFromFile loads configuration from multiple sources with a specific config file:
// 1. Environment variables (highest priority)
// 2. Specified config file or default config files
// 3. Defaults (lowest priority)
func LoadConfigFromFile(configFilePath string) (AppConfig, error) {
	k := koanf.New(".")

	// Load default configuration first
	defaultCfg := DefaultAppConfig()
	if err := k.Load(structs.Provider(defaultCfg, "koanf"), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load default config: %w", err)
	}

	// Load from config file
	if configFilePath != "" {
		// Use specified config file
		if _, err := os.Stat(configFilePath); err != nil {
			return AppConfig{}, fmt.Errorf("specified config file %s not found: %w", configFilePath, err)
		}

		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return AppConfig{}, fmt.Errorf("failed to load config file %s: %w", configFilePath, err)
		}
	} else {
		// Load from default config files if they exist
		configFiles := []string{"config.yaml", "config.yml"}
		for _, configFile := range configFiles {
			if _, err := os.Stat(configFile); err == nil {
				if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
					return AppConfig{}, fmt.Errorf("failed to load config file %s: %w", configFile, err)
				}
				break
			}
		}
	}

	// Load environment variables with DSLOCKD_ prefix
	if err := k.Load(env.Provider("DSLOCKD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "DSLOCKD_")), "_", ".", -1)
	}), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal into config struct
	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if err := validateConfig(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates that required configuration fields are set
func validateConfig(cfg *AppConfig) error {
	if cfg.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if len(cfg.Auth.APIKeys) == 0 && len(cfg.Auth.Users) == 0 {
		return fmt.Errorf("auth.api_keys or auth.users must contain at least one key")
	}

	switch cfg.Backend.Type {
	case "memory", "none":
	case "redis":
		if cfg.Backend.RedisAddr == "" {
			return fmt.Errorf("backend.redis_addr is required when backend.type is redis")
		}
	default:
		return fmt.Errorf("backend.type must be one of: memory, redis, none")
	}

	switch cfg.Audit.Type {
	case "none":
	case "sqlite":
		if cfg.Audit.SQLitePath == "" {
			return fmt.Errorf("audit.sqlite_path is required when audit.type is sqlite")
		}
	case "postgres":
		if cfg.Audit.DSN == "" {
			return fmt.Errorf("audit.dsn is required when audit.type is postgres")
		}
	default:
		return fmt.Errorf("audit.type must be one of: sqlite, postgres, none")
	}

	if cfg.Sessions.IdleTTL <= 0 {
		return fmt.Errorf("sessions.idle_ttl must be positive")
	}
	if cfg.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be positive")
	}

	return nil
}
