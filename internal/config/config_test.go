package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 500, cfg.Scan.Limit)
	require.Equal(t, 4, cfg.Scan.Concurrency)
	require.Equal(t, 10, cfg.Scan.BatchSize)
	require.Equal(t, 20, cfg.Scan.ProbeDepth)
	require.Equal(t, "eng", cfg.Scan.Language)
	require.Contains(t, cfg.Scan.ChannelFilters, "epaper")
	require.Contains(t, cfg.Scan.AllowedExts, ".pdf")
	require.Contains(t, cfg.Scan.DeniedExts, ".apk")

	require.Equal(t, []string{"TOI", "TOIH"}, cfg.Matcher.Keywords)
	require.Equal(t, []string{"hyderabad", "hyd"}, cfg.Matcher.SecondaryTokens)

	require.Equal(t, 5, cfg.Retry.MaxAttempts)
	require.Equal(t, time.Second, cfg.Retry.InitialDelay)

	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, ".cache/decisions", cfg.Cache.Dir)
	require.Equal(t, "outputs", cfg.Output.Dir)
	require.Equal(t, "paperfind.session", cfg.Telegram.Session)
	require.Equal(t, "gemini-1.5-flash", cfg.AI.Model)
	require.Equal(t, 2, cfg.AI.MaxInflight)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paperfind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  limit: 50
  concurrency: 2
matcher:
  keywords:
    - Hindu
  secondary_tokens:
    - delhi
retry:
  max_attempts: 3
  initial_delay: 250ms
cache:
  enabled: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 50, cfg.Scan.Limit)
	require.Equal(t, 2, cfg.Scan.Concurrency)
	require.Equal(t, []string{"Hindu"}, cfg.Matcher.Keywords)
	require.Equal(t, []string{"delhi"}, cfg.Matcher.SecondaryTokens)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	require.False(t, cfg.Cache.Enabled)

	// Keys absent from the file keep their defaults.
	require.Equal(t, 10, cfg.Scan.BatchSize)
	require.Equal(t, "outputs", cfg.Output.Dir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PAPERFIND_SCAN_LIMIT", "25")
	t.Setenv("PAPERFIND_AI_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 25, cfg.Scan.Limit)
	require.Equal(t, "env-key", cfg.AI.APIKey)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative limit", func(c *Config) { c.Scan.Limit = -1 }},
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }},
		{"zero batch size", func(c *Config) { c.Scan.BatchSize = 0 }},
		{"negative probe depth", func(c *Config) { c.Scan.ProbeDepth = -1 }},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"zero retry delay", func(c *Config) { c.Retry.InitialDelay = 0 }},
		{"cache enabled without dir", func(c *Config) { c.Cache.Dir = "" }},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, base.Validate())
}
