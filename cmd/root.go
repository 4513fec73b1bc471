package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/gradectl/internal/classifier"
	cfgpkg "github.com/KaramelBytes/gradectl/internal/config"
	"github.com/KaramelBytes/gradectl/internal/store"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	dbPath   string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "gradectl",
	Short: "gradectl: grade-control sampling pipeline",
	Long: `gradectl validates drill/sampling datasets, stores the latest snapshot, filters by profile,
material and depth, classifies ore grade with a pre-trained model when one is available, and
exports per-material statistics as CSV and XLSX.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadConfig(cmd.Root())
		if err := cfgpkg.InitLogger(cfg.Log); err != nil {
			return err
		}
		zap.L().Debug("config loaded", zap.String("db_path", cfg.DBPath), zap.String("model_provider", cfg.ModelProvider))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.gradectl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "model HTTP timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max attempts for model requests on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

// loadConfig reads the config and applies the persistent flag overrides of root.
func loadConfig(root *cobra.Command) {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Default()
	}
	cfg = c

	// Apply CLI overrides if provided
	f := root.PersistentFlags()
	if f.Changed("log-level") && logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if f.Changed("db") && dbPath != "" {
		cfg.DBPath = dbPath
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

// openStore opens the configured SQLite database.
func openStore() (*store.SQLiteStore, error) {
	return store.Open(cfg.DBPath)
}

// openClassifier builds the adapter for the configured backend. A missing
// model yields an adapter without a model; a broken one is an error.
func openClassifier(_ context.Context) (*classifier.Adapter, error) {
	base, maxDelay := cfg.RetryDelays()
	m, err := classifier.Open(cfg.ModelProvider, classifier.BackendConfig{
		Features:    cfg.FeatureColumns,
		Path:        cfg.ModelPath,
		Host:        cfg.ModelHost,
		HTTPTimeout: cfg.HTTPTimeout(),
		RetryMax:    cfg.RetryMaxAttempts,
		BaseDelay:   base,
		MaxDelay:    maxDelay,
	})
	if err != nil {
		if errors.Is(err, classifier.ErrModelUnavailable) {
			zap.L().Info("no model available", zap.String("provider", cfg.ModelProvider), zap.String("path", cfg.ModelPath))
			return classifier.NewAdapter(nil, cfg.FeatureColumns), nil
		}
		return nil, err
	}
	return classifier.NewAdapter(m, cfg.FeatureColumns), nil
}
