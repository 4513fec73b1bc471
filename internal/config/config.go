package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/gradectl/internal/utils"
)

// Global configuration structure.
type Global struct {
	DBPath    string `mapstructure:"db_path" yaml:"db_path"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// Classifier backend
	ModelProvider  string   `mapstructure:"model_provider" yaml:"model_provider"`
	ModelPath      string   `mapstructure:"model_path" yaml:"model_path,omitempty"`
	ModelHost      string   `mapstructure:"model_host" yaml:"model_host,omitempty"`
	FeatureColumns []string `mapstructure:"feature_columns" yaml:"feature_columns"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	MetricsTextfile string `mapstructure:"metrics_textfile" yaml:"metrics_textfile,omitempty"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// LogConfig controls the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HTTPTimeout returns the model request timeout.
func (c *Global) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// RetryDelays returns the base and maximum backoff delays.
func (c *Global) RetryDelays() (time.Duration, time.Duration) {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond, time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// Dir returns ~/.gradectl.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "resolve home dir")
	}
	return filepath.Join(home, ".gradectl"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.gradectl/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "mkdir config dir")
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "marshal yaml")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrap(err, "write config")
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("GRADECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_path", "~/Documents/outputs/classifications.db")
	v.SetDefault("output_dir", "~/Documents/outputs")
	v.SetDefault("model_provider", "artifact")
	v.SetDefault("model_path", "")
	v.SetDefault("model_host", "")
	v.SetDefault("feature_columns", []string{"Ni (%)", "Fe (%)", "SiO2 (%)", "MgO (%)"})
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 200)
	v.SetDefault("retry_max_delay_ms", 2000)
	v.SetDefault("metrics_textfile", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "read config")
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, eris.Wrap(err, "unmarshal config")
	}
	c.DBPath = utils.ExpandHome(c.DBPath)
	c.OutputDir = utils.ExpandHome(c.OutputDir)
	c.ModelPath = utils.ExpandHome(c.ModelPath)
	c.MetricsTextfile = utils.ExpandHome(c.MetricsTextfile)
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join(c.OutputDir, "model_grade.yaml")
	}
	return &c, nil
}

// Default returns the configuration Load yields with no file and no env.
func Default() *Global {
	home, _ := os.UserHomeDir()
	out := filepath.Join(home, "Documents", "outputs")
	return &Global{
		DBPath:           filepath.Join(out, "classifications.db"),
		OutputDir:        out,
		ModelProvider:    "artifact",
		ModelPath:        filepath.Join(out, "model_grade.yaml"),
		FeatureColumns:   []string{"Ni (%)", "Fe (%)", "SiO2 (%)", "MgO (%)"},
		HTTPTimeoutSec:   30,
		RetryMaxAttempts: 3,
		RetryBaseDelayMs: 200,
		RetryMaxDelayMs:  2000,
		Log:              LogConfig{Level: "warn", Format: "console"},
	}
}

// InitLogger replaces the global zap logger according to cfg.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
