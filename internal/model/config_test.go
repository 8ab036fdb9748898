package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	require.Equal(t, "smtp.gmail.com", cfg.Account.Host)
	require.Equal(t, 465, cfg.Account.Port)
	require.True(t, cfg.Account.TLS)
	require.Equal(t, 10, cfg.Account.TimeoutSec)
	require.True(t, cfg.Defaults.DryRun)
	require.Equal(t, BodyFormatText, cfg.Defaults.BodyFormat)
	require.False(t, cfg.Account.Configured())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.Account.Host = "mail.example.com"
	cfg.Account.Port = 587
	cfg.Account.TLS = false
	cfg.Account.Username = "me@example.com"
	cfg.Defaults.DelaySec = 2.5
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Account, loaded.Account)
	require.Equal(t, 2.5, loaded.Defaults.DelaySec)
	require.True(t, loaded.Account.Configured())
	require.Equal(t, "me@example.com", loaded.Account.Sender())
}

func TestLoadConfig_ClampsInvalidValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  timeout_sec: 0
defaults:
  delay_sec: -3
  body_format: html
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Account.TimeoutSec)
	require.Equal(t, 0.0, cfg.Defaults.DelaySec)
	require.Equal(t, BodyFormatText, cfg.Defaults.BodyFormat)
}

func TestCredentialsFrom(t *testing.T) {
	t.Parallel()

	c := CredentialsFrom(AccountConfig{
		Host: "smtp.example.com", Port: 465, Username: "login", From: " news@example.com ", TimeoutSec: 7,
	}, "secret")
	require.Equal(t, "news@example.com", c.From)
	require.Equal(t, "secret", c.Password)
	require.Equal(t, 7*time.Second, c.Timeout)
}

func TestSplitPathsAndDelay(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a.pdf", "b.pdf"}, SplitPaths(" a.pdf ,\nb.pdf\na.pdf\n"))
	require.Equal(t, time.Duration(0), DelayFromSeconds(-1))
	require.Equal(t, 1500*time.Millisecond, DelayFromSeconds(1.5))
}
