package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
// (e.g., MAILMERGE_ACCOUNT_HOST).
const EnvPrefix = "MAILMERGE"

// AccountConfig holds the single outbound mail account. The password is
// never stored here; it lives in the system keyring.
type AccountConfig struct {
	// Host is the SMTP submission server hostname.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the SMTP submission port (465 for implicit TLS, 587 for STARTTLS).
	Port int `mapstructure:"port" yaml:"port"`

	// Username is the login for the SMTP server.
	Username string `mapstructure:"username" yaml:"username"`

	// From is the sender address. Falls back to Username when empty.
	From string `mapstructure:"from" yaml:"from"`

	// TLS selects implicit TLS; when false, STARTTLS is required.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// TimeoutSec bounds dialing and each SMTP command.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Sender returns the address messages are sent from.
func (a AccountConfig) Sender() string {
	if strings.TrimSpace(a.From) != "" {
		return strings.TrimSpace(a.From)
	}
	return a.Username
}

// Configured reports whether enough account details exist to dial.
func (a AccountConfig) Configured() bool {
	return a.Host != "" && a.Port > 0 && a.Username != ""
}

// DefaultsConfig holds the values pre-filled into a new compose form.
type DefaultsConfig struct {
	Sheet      string  `mapstructure:"sheet" yaml:"sheet"`
	DelaySec   float64 `mapstructure:"delay_sec" yaml:"delay_sec"`
	DryRun     bool    `mapstructure:"dry_run" yaml:"dry_run"`
	BodyFormat string  `mapstructure:"body_format" yaml:"body_format"`
	Subject    string  `mapstructure:"subject" yaml:"subject"`
	Body       string  `mapstructure:"body" yaml:"body"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account  AccountConfig  `mapstructure:"account" yaml:"account"`
	Defaults DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DefaultConfigDir returns ~/.config/mailmerge, or the working directory
// when the home directory cannot be resolved.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailmerge")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailmerge/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

const (
	defaultSubject = "Hello from {Name}"
	defaultBody    = "Hi {Name},\n\nPlease find the attached document.\n\nRegards,\n"
)

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{
			Host:       "smtp.gmail.com",
			Port:       465,
			TLS:        true,
			TimeoutSec: 10,
		},
		Defaults: DefaultsConfig{
			Sheet:      "Sheet1",
			DelaySec:   0.1,
			DryRun:     true,
			BodyFormat: BodyFormatText,
			Subject:    defaultSubject,
			Body:       defaultBody,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// NewViper returns a Viper instance with defaults and environment
// overrides registered. Callers may bind flags onto it before LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	d := defaultAppConfig()
	v.SetDefault("account.host", d.Account.Host)
	v.SetDefault("account.port", d.Account.Port)
	v.SetDefault("account.tls", d.Account.TLS)
	v.SetDefault("account.timeout_sec", d.Account.TimeoutSec)
	v.SetDefault("account.username", "")
	v.SetDefault("account.from", "")
	v.SetDefault("defaults.sheet", d.Defaults.Sheet)
	v.SetDefault("defaults.delay_sec", d.Defaults.DelaySec)
	v.SetDefault("defaults.dry_run", d.Defaults.DryRun)
	v.SetDefault("defaults.body_format", d.Defaults.BodyFormat)
	v.SetDefault("defaults.subject", d.Defaults.Subject)
	v.SetDefault("defaults.body", d.Defaults.Body)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus any env overrides) are used.
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigWith(NewViper(), path)
}

// LoadConfigWith is LoadConfig on a caller-prepared Viper instance, so
// command-line flags bound to v take precedence over the file.
func LoadConfigWith(v *viper.Viper, path string) (*AppConfig, error) {
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return unmarshalConfig(v, path)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return unmarshalConfig(v, path)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return unmarshalConfig(v, path)
}

func unmarshalConfig(v *viper.Viper, path string) (*AppConfig, error) {
	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Account.TimeoutSec <= 0 {
		cfg.Account.TimeoutSec = 10
	}
	if cfg.Defaults.DelaySec < 0 {
		cfg.Defaults.DelaySec = 0
	}
	if !ValidBodyFormat(cfg.Defaults.BodyFormat) {
		cfg.Defaults.BodyFormat = BodyFormatText
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("defaults", cfg.Defaults)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
