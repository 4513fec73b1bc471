package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/gradectl/internal/classifier"
	cfgpkg "github.com/KaramelBytes/gradectl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set gradectl configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "db_path: %s\n", cfg.DBPath)
		fmt.Fprintf(out, "output_dir: %s\n", cfg.OutputDir)
		fmt.Fprintf(out, "model_provider: %s\n", cfg.ModelProvider)
		fmt.Fprintf(out, "model_path: %s\n", cfg.ModelPath)
		if cfg.ModelHost != "" {
			fmt.Fprintf(out, "model_host: %s\n", cfg.ModelHost)
		}
		fmt.Fprintf(out, "feature_columns: %s\n", strings.Join(cfg.FeatureColumns, ", "))
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		if cfg.MetricsTextfile != "" {
			fmt.Fprintf(out, "metrics_textfile: %s\n", cfg.MetricsTextfile)
		}
		fmt.Fprintf(out, "log.level: %s\n", cfg.Log.Level)
		fmt.Fprintf(out, "log.format: %s\n", cfg.Log.Format)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "db_path":
			cfg.DBPath = val
		case "output_dir":
			cfg.OutputDir = val
		case "model_provider":
			switch strings.ToLower(val) {
			case classifier.ProviderArtifact, "file":
				cfg.ModelProvider = classifier.ProviderArtifact
			case classifier.ProviderHTTP, "remote":
				cfg.ModelProvider = classifier.ProviderHTTP
			default:
				return fmt.Errorf("invalid model_provider: %s (use artifact or http)", val)
			}
		case "model_path":
			cfg.ModelPath = val
		case "model_host":
			cfg.ModelHost = val
		case "feature_columns":
			var cols []string
			for _, c := range strings.Split(val, ",") {
				if c = strings.TrimSpace(c); c != "" {
					cols = append(cols, c)
				}
			}
			if len(cols) == 0 {
				return fmt.Errorf("feature_columns cannot be empty")
			}
			cfg.FeatureColumns = cols
		case "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms":
			i, err := strconv.Atoi(val)
			if err != nil || i < 0 {
				return fmt.Errorf("invalid int for %s: %v", key, val)
			}
			switch key {
			case "http_timeout_sec":
				cfg.HTTPTimeoutSec = i
			case "retry_max_attempts":
				cfg.RetryMaxAttempts = i
			case "retry_base_delay_ms":
				cfg.RetryBaseDelayMs = i
			case "retry_max_delay_ms":
				cfg.RetryMaxDelayMs = i
			}
		case "metrics_textfile":
			cfg.MetricsTextfile = val
		case "log.level":
			switch val {
			case "debug", "info", "warn", "error":
				cfg.Log.Level = val
			default:
				return fmt.Errorf("invalid log.level: %s", val)
			}
		case "log.format":
			switch val {
			case "json", "console":
				cfg.Log.Format = val
			default:
				return fmt.Errorf("invalid log.format: %s (use json or console)", val)
			}
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
