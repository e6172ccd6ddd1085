package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/audit"
	auditPostgres "github.com/ebogdum/dslockd/audit/postgres"
	"github.com/ebogdum/dslockd/audit/schema"
	auditSqlite "github.com/ebogdum/dslockd/audit/sqlite"
	"github.com/ebogdum/dslockd/auth"
	"github.com/ebogdum/dslockd/backends"
	"github.com/ebogdum/dslockd/backends/memstore"
	"github.com/ebogdum/dslockd/backends/noop"
	"github.com/ebogdum/dslockd/backends/redisstore"
	"github.com/ebogdum/dslockd/config"
	"github.com/ebogdum/dslockd/core"
	"github.com/ebogdum/dslockd/locks"
	"github.com/ebogdum/dslockd/server"
	"github.com/ebogdum/dslockd/sessions"
)

var rootCmd = &cobra.Command{
	Use:   "dslockd",
	Short: "dslockd - configuration datastore lock daemon",
	Long: `dslockd arbitrates exclusive locks over the running, startup and
candidate configuration datastores on behalf of many client sessions,
reconciling every transition with an authoritative backend store.`,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the dslockd server",
	Long:  "Start the dslockd server with the configured backend store and API endpoints",
	RunE:  runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the dslockd configuration and display the loaded settings",
	RunE:  validateConfig,
}

var configFilePath string

func main() {
	// Add flags to server command
	serverCmd.Flags().StringVarP(&configFilePath, "config", "c", "", "Path to configuration file")

	// Add subcommands
	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serverCmd, configCmd)

	// If no command specified, default to server
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "server")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// runServer starts the dslockd server
func runServer(cmd *cobra.Command, args []string) error {
	// Create context for the entire server lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger, err := initializeLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			// Log to stderr since logger may not be working
			fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
		}
	}()

	logger.Info("Starting dslockd server",
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("backend", cfg.Backend.Type),
		zap.String("audit", cfg.Audit.Type))

	// Initialize audit store
	logger.Info("Initializing audit store")
	auditStore, err := newAuditStore(cfg.Audit, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize audit store: %w", err)
	}
	defer auditStore.Close()

	if cfg.Audit.Type != "none" {
		audit.StartRetentionWorker(ctx, auditStore, cfg.Audit.CleanupInterval, cfg.Audit.Retention, logger)
	}

	// Initialize authoritative backend store
	logger.Info("Initializing backend lock store")
	backend, err := newBackendStore(cfg.Backend, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize backend store: %w", err)
	}
	defer backend.Close()

	// Initialize lock coordinator and session registry
	lockManager := locks.NewManager(logger)
	registry := sessions.NewRegistry(lockManager, backend, logger)
	sessions.StartExpiryWorker(ctx, registry, cfg.Sessions.SweepInterval, cfg.Sessions.IdleTTL, logger)

	// Initialize core engine
	logger.Info("Initializing core engine")
	engine := core.NewEngine(lockManager, backend, registry, auditStore, logger)

	// Initialize authentication and authorization
	logger.Info("Initializing authentication and authorization")
	authenticator := auth.NewAPIKeyAuthenticator(cfg.Auth.APIKeys, cfg.Auth.Users)
	authorizer := auth.NewACLAuthorizer(cfg.Auth.DatastoreACL)

	// Initialize HTTP router
	logger.Info("Initializing HTTP router")
	router := server.NewRouter(engine, authenticator, authorizer, &cfg.Server, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited gracefully")
	return nil
}

// newAuditStore builds the configured audit store, running schema migrations
// where the store needs them.
func newAuditStore(cfg config.AuditConfig, logger *zap.Logger) (audit.Store, error) {
	switch cfg.Type {
	case "sqlite":
		return auditSqlite.NewSQLiteStore(cfg.SQLitePath, logger)
	case "postgres":
		logger.Info("Running audit database migrations")
		if err := schema.RunMigrations(cfg.DSN); err != nil {
			return nil, fmt.Errorf("failed to run audit migrations: %w", err)
		}
		return auditPostgres.NewPostgresStore(cfg.DSN, logger)
	case "none":
		logger.Info("Audit trail disabled")
		return audit.NewNopStore(), nil
	default:
		return nil, fmt.Errorf("unknown audit store type %q", cfg.Type)
	}
}

// newBackendStore builds the configured authoritative lock store.
func newBackendStore(cfg config.BackendConfig, logger *zap.Logger) (backends.LockStore, error) {
	switch cfg.Type {
	case "memory":
		return memstore.NewMemStore(), nil
	case "redis":
		return redisstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisLockTTL, logger)
	case "none":
		logger.Warn("No backend store configured, all lock operations will be denied")
		return noop.NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown backend store type %q", cfg.Type)
	}
}

// validateConfig validates the dslockd configuration and displays settings
func validateConfig(cmd *cobra.Command, args []string) error {
	fmt.Println("Validating configuration...")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("Listen Address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("Backend Store: %s\n", cfg.Backend.Type)
	if cfg.Backend.Type == "redis" {
		fmt.Printf("Redis Address: %s\n", cfg.Backend.RedisAddr)
	}
	fmt.Printf("Audit Store: %s\n", cfg.Audit.Type)
	if cfg.Audit.Type == "postgres" {
		fmt.Printf("Audit DSN: %s\n", maskDSN(cfg.Audit.DSN))
	}
	fmt.Printf("Session Idle TTL: %s\n", cfg.Sessions.IdleTTL)

	return nil
}

// maskDSN masks sensitive parts of the database DSN for display
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if len(dsn) > 20 {
		return dsn[:10] + "***" + dsn[len(dsn)-7:]
	}
	return "***"
}

// initializeLogger creates a zap logger based on configuration
func initializeLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config

	if logCfg.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	// Set log level
	switch logCfg.Level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
