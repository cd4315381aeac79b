package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration
type Config struct {
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	BrowserBackend    string
	BrowserHeadless   bool
	BrowserSlowMo     time.Duration
	BrowserDriverPath string
	ChromeBinaryPath  string

	ProbeTimeout       time.Duration
	RevealTimeout      time.Duration
	NetworkIdleTimeout time.Duration
	NavigationTimeout  time.Duration
	MarkupExcerptLimit int
	InferenceEnabled   bool

	RecipesFile      string
	OutputDir        string
	ScriptDialect    string
	AllowRiskyClicks bool
	RecordingEnabled bool
	LogLevel         string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("BROWSER_BACKEND", "playwright")
	v.SetDefault("BROWSER_HEADLESS", false)
	v.SetDefault("BROWSER_SLOW_MO_MS", 500)
	v.SetDefault("PROBE_TIMEOUT", "2s")
	v.SetDefault("REVEAL_TIMEOUT", "3s")
	v.SetDefault("NETWORK_IDLE_TIMEOUT", "10s")
	v.SetDefault("NAVIGATION_TIMEOUT", "60s")
	v.SetDefault("MARKUP_EXCERPT_LIMIT", 8000)
	v.SetDefault("OUTPUT_DIR", "~/.shop_replay")
	v.SetDefault("SCRIPT_DIALECT", "go")
	v.SetDefault("ALLOW_RISKY_CLICKS", false)
	v.SetDefault("RECORDING_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads an optional .env file, then an optional config file, then the
// environment, which wins over both
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey:       v.GetString("OPENAI_API_KEY"),
		OpenAIModel:        v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL:      v.GetString("OPENAI_BASE_URL"),
		BrowserBackend:     strings.ToLower(v.GetString("BROWSER_BACKEND")),
		BrowserHeadless:    v.GetBool("BROWSER_HEADLESS"),
		BrowserSlowMo:      time.Duration(v.GetInt("BROWSER_SLOW_MO_MS")) * time.Millisecond,
		BrowserDriverPath:  v.GetString("BROWSER_DRIVER_PATH"),
		ChromeBinaryPath:   v.GetString("CHROME_BINARY_PATH"),
		ProbeTimeout:       v.GetDuration("PROBE_TIMEOUT"),
		RevealTimeout:      v.GetDuration("REVEAL_TIMEOUT"),
		NetworkIdleTimeout: v.GetDuration("NETWORK_IDLE_TIMEOUT"),
		NavigationTimeout:  v.GetDuration("NAVIGATION_TIMEOUT"),
		MarkupExcerptLimit: v.GetInt("MARKUP_EXCERPT_LIMIT"),
		RecipesFile:        v.GetString("RECIPES_FILE"),
		OutputDir:          v.GetString("OUTPUT_DIR"),
		ScriptDialect:      strings.ToLower(v.GetString("SCRIPT_DIALECT")),
		AllowRiskyClicks:   v.GetBool("ALLOW_RISKY_CLICKS"),
		RecordingEnabled:   v.GetBool("RECORDING_ENABLED"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}

	// Inference is on whenever a key is present unless explicitly disabled.
	cfg.InferenceEnabled = cfg.OpenAIAPIKey != ""
	if v.IsSet("INFERENCE_ENABLED") {
		cfg.InferenceEnabled = cfg.InferenceEnabled && v.GetBool("INFERENCE_ENABLED")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	switch c.BrowserBackend {
	case "playwright", "selenium":
	default:
		return fmt.Errorf("unknown BROWSER_BACKEND %q (want playwright or selenium)", c.BrowserBackend)
	}
	switch c.ScriptDialect {
	case "go", "golang", "python", "py":
	default:
		return fmt.Errorf("unknown SCRIPT_DIALECT %q (want go or python)", c.ScriptDialect)
	}
	if c.ProbeTimeout <= 0 || c.RevealTimeout <= 0 || c.NetworkIdleTimeout <= 0 || c.NavigationTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// NewLogger - creates the process logger at the configured level
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
