package main

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebogdum/easylock/config"
	logutil "github.com/ebogdum/easylock/core/log"
	"github.com/ebogdum/easylock/locker"
	"github.com/ebogdum/easylock/locks"
)

var rootCmd = &cobra.Command{
	Use:   "easylock",
	Short: "easylock - run work under a TTL bound distributed lock",
	Long: `easylock runs commands while holding a named, TTL bound lock kept in
Redis, PostgreSQL, SQLite or memory, and supervises recurring locked jobs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run --resource NAME [flags] -- command [args...]",
	Short: "Run a command while holding a lock",
	Long: `Run a command while holding the named lock. Exits 75 when the lock is
held elsewhere and --retry is set, 70 when the lock store is unusable.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLocked,
}

var workerCmd = &cobra.Command{
	Use:   "worker --resource NAME [flags] -- command [args...]",
	Short: "Run a command under a lock on a schedule",
	Long:  "Run a command under a lock every interval, serving /metrics and /healthz while it runs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWorker,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the easylock configuration and display the loaded settings",
	RunE:  validateConfig,
}

var (
	configFilePath string
	resource       string
	lockTTL        time.Duration
	retryOnHeld    bool
	workerInterval time.Duration
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "Path to configuration file")

	runCmd.Flags().StringVar(&resource, "resource", "", "Lock resource name")
	runCmd.Flags().DurationVar(&lockTTL, "ttl", 0, "Lock TTL (defaults to lock.default_ttl)")
	runCmd.Flags().BoolVar(&retryOnHeld, "retry", false, "Exit with a retry status instead of skipping when the lock is held")
	_ = runCmd.MarkFlagRequired("resource")

	workerCmd.Flags().StringVar(&resource, "resource", "", "Lock resource name")
	workerCmd.Flags().DurationVar(&lockTTL, "ttl", 0, "Lock TTL (defaults to lock.default_ttl)")
	workerCmd.Flags().DurationVar(&workerInterval, "interval", 0, "Interval between runs (defaults to worker.interval)")
	_ = workerCmd.MarkFlagRequired("resource")

	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd, workerCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.err)
			}
			os.Exit(exitErr.code)
		}
		log.Fatalf("Error: %v", err)
	}
}

// validateConfig validates the easylock configuration and displays settings
func validateConfig(cmd *cobra.Command, args []string) error {
	fmt.Println("Validating configuration...")

	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		fmt.Printf("❌ Configuration validation failed: %v\n", err)
		return err
	}

	fmt.Println("✅ Configuration is valid")
	fmt.Printf("Store Type: %s\n", cfg.Store.Type)
	switch cfg.Store.Type {
	case "redis":
		fmt.Printf("Redis Address: %s\n", cfg.Store.RedisAddr)
		fmt.Printf("Redis Key Prefix: %s\n", cfg.Store.RedisKeyPrefix)
	case "postgres":
		fmt.Printf("Postgres DSN: %s\n", maskDSN(cfg.Store.PostgresDSN))
	case "sqlite":
		fmt.Printf("SQLite Path: %s\n", cfg.Store.SQLitePath)
	}
	fmt.Printf("Default TTL: %s\n", cfg.Lock.DefaultTTL)
	fmt.Printf("Fatal On Disconnect: %t\n", cfg.Lock.FatalOnDisconnect)
	fmt.Printf("Metrics Address: %s\n", cfg.Metrics.ListenAddr)
	fmt.Printf("Worker Interval: %s (retry delay %s, max retries %d)\n",
		cfg.Worker.Interval, cfg.Worker.RetryDelay, cfg.Worker.MaxRetries)

	return nil
}

// maskDSN masks the password of a database DSN for display
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		if len(dsn) > 20 {
			return dsn[:10] + "***" + dsn[len(dsn)-7:]
		}
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// initializeLogger creates a zap logger based on configuration
func initializeLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config

	if logCfg.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(logCfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = level

	return cfg.Build()
}

// setup loads configuration, the logger and the lock store shared by run and worker
func setup() (config.AppConfig, *zap.Logger, locks.Store, error) {
	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return config.AppConfig{}, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg.Log)
	if err != nil {
		return config.AppConfig{}, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := buildStore(cfg.Store, logger)
	if err != nil {
		_ = logger.Sync()
		return config.AppConfig{}, nil, nil, err
	}

	return cfg, logger, store, nil
}

func syncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil {
		// stderr sync fails on some terminals
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}

func newService(cfg config.AppConfig, store locks.Store, logger *zap.Logger) *locker.Service {
	return locker.NewService(store,
		locker.WithLogger(logger),
		locker.WithDefaultTTL(cfg.Lock.DefaultTTL),
		locker.WithFatalOnDisconnect(cfg.Lock.FatalOnDisconnect),
		locker.WithSanitizationMode(logutil.ParseMode(cfg.Log.Mode)))
}
