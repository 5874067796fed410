// Package config loads and validates paperfind configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Output   OutputConfig   `mapstructure:"output"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	AI       AIConfig       `mapstructure:"ai"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScanConfig governs channel enumeration and candidate extraction.
type ScanConfig struct {
	Limit          int      `mapstructure:"limit"`
	Concurrency    int      `mapstructure:"concurrency"`
	BatchSize      int      `mapstructure:"batch_size"`
	ChannelFilters []string `mapstructure:"channel_filters"`
	ProbeDepth     int      `mapstructure:"probe_depth"`
	Language       string   `mapstructure:"language"`
	AllowedExts    []string `mapstructure:"allowed_exts"`
	DeniedExts     []string `mapstructure:"denied_exts"`
	HintTokens     []string `mapstructure:"hint_tokens"`
}

// MatcherConfig parameterizes the deterministic filename matcher.
type MatcherConfig struct {
	Keywords        []string `mapstructure:"keywords"`
	SecondaryTokens []string `mapstructure:"secondary_tokens"`
}

// RetryConfig bounds the transient-failure backoff loop.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

// CacheConfig controls the on-disk decision cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// OutputConfig sets the result sink location.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// TelegramConfig identifies the message-source session.
type TelegramConfig struct {
	APIID   int    `mapstructure:"api_id"`
	APIHash string `mapstructure:"api_hash"`
	Session string `mapstructure:"session"`
}

// AIConfig configures the external classifier client.
type AIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	MaxInflight int    `mapstructure:"max_inflight"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAPERFIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("scan.limit", 500)
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.batch_size", 10)
	v.SetDefault("scan.channel_filters", []string{"newspapers", "newspaper", "epaper", "paper", "epapers"})
	v.SetDefault("scan.probe_depth", 20)
	v.SetDefault("scan.language", "eng")
	v.SetDefault("scan.allowed_exts", []string{".pdf", ".epub", ".mobi", ".zip", ".rar"})
	v.SetDefault("scan.denied_exts", []string{".apk", ".exe", ".dmg", ".ipa", ".msi"})
	v.SetDefault("scan.hint_tokens", []string{"magazine", "issue", "vol", "edition", "weekly", "monthly"})
	v.SetDefault("matcher.keywords", []string{"TOI", "TOIH"})
	v.SetDefault("matcher.secondary_tokens", []string{"hyderabad", "hyd"})
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_delay", time.Second)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", ".cache/decisions")
	v.SetDefault("output.dir", "outputs")
	v.SetDefault("telegram.api_id", 0)
	v.SetDefault("telegram.api_hash", "")
	v.SetDefault("telegram.session", "paperfind.session")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.max_inflight", 2)
}

// Validate enforces required values and reasonable limits. Credentials
// are checked at command time, where the matching mode is known.
func (c Config) Validate() error {
	if c.Scan.Limit < 0 {
		return fmt.Errorf("scan.limit must be >= 0")
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be > 0")
	}
	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("scan.batch_size must be > 0")
	}
	if c.Scan.ProbeDepth < 0 {
		return fmt.Errorf("scan.probe_depth must be >= 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("retry.initial_delay must be > 0")
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must be set when cache is enabled")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	return nil
}
