// Package config loads the application settings from a config file, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/HarshGadhecha/SpendWise/internal/common"
)

// EnvPrefix prefixes every environment variable the application reads.
const EnvPrefix = "SPENDWISE"

// Config is the resolved application configuration.
type Config struct {
	Remote   RemoteConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Database string
	// Passphrase unlocks the secret namespace. Empty leaves it locked.
	Passphrase string
	Sync       SyncConfig
}

// RemoteConfig selects the document store backend.
type RemoteConfig struct {
	Driver string
	Path   string
	DSN    string
	URL    string
	Token  string
	CAFile string
}

// SyncConfig tunes remote calls.
type SyncConfig struct {
	Timeout       time.Duration
	RetryAttempts int
}

// ServerConfig configures the document server.
type ServerConfig struct {
	Addr          string
	JWTSecret     string
	TokenTTL      time.Duration
	RatePerMinute int
	TLS           bool
	CertDir       string
	Hosts         []string
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers the default for every key and binds the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "$HOME/.local/share/spendwise/local.db")
	v.SetDefault("remote.driver", "sqlite")
	v.SetDefault("remote.path", "$HOME/.local/share/spendwise/remote.db")
	v.SetDefault("sync.timeout", "10s")
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.token_ttl", "720h")
	v.SetDefault("server.rate_per_minute", 120)
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", "$HOME/.local/share/spendwise/certs")
	v.SetDefault("server.hosts", []string{"localhost", "127.0.0.1"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load resolves the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Database:   ExpandPath(v.GetString("database.path")),
		Passphrase: v.GetString("secret.passphrase"),
		Remote: RemoteConfig{
			Driver: strings.ToLower(v.GetString("remote.driver")),
			Path:   ExpandPath(v.GetString("remote.path")),
			DSN:    v.GetString("remote.dsn"),
			URL:    v.GetString("remote.url"),
			Token:  v.GetString("remote.token"),
			CAFile: ExpandPath(v.GetString("remote.ca_file")),
		},
		Sync: SyncConfig{
			Timeout:       v.GetDuration("sync.timeout"),
			RetryAttempts: v.GetInt("sync.retry_attempts"),
		},
		Server: ServerConfig{
			Addr:          v.GetString("server.addr"),
			JWTSecret:     v.GetString("server.jwt_secret"),
			TokenTTL:      v.GetDuration("server.token_ttl"),
			RatePerMinute: v.GetInt("server.rate_per_minute"),
			TLS:           v.GetBool("server.tls"),
			CertDir:       ExpandPath(v.GetString("server.cert_dir")),
			Hosts:         v.GetStringSlice("server.hosts"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that have no usable fallback.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	switch c.Remote.Driver {
	case "sqlite", "postgres", "http":
	default:
		return fmt.Errorf("%w: remote.driver %q", common.ErrInvalidConfig, c.Remote.Driver)
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("%w: sync.timeout must be positive", common.ErrInvalidConfig)
	}
	if c.Sync.RetryAttempts < 1 {
		return fmt.Errorf("%w: sync.retry_attempts must be at least 1", common.ErrInvalidConfig)
	}
	if c.Server.RatePerMinute < 1 {
		return fmt.Errorf("%w: server.rate_per_minute must be at least 1", common.ErrInvalidConfig)
	}
	return nil
}

// Retry returns the retry options derived from the sync settings.
func (c Config) Retry() common.RetryOptions {
	opts := common.DefaultRetryOptions()
	opts.MaxAttempts = c.Sync.RetryAttempts
	return opts
}

// LoadDotEnv loads environment variables from a .env file. SPENDWISE_ENV_FILE
// names an explicit file, which must exist; otherwise ./.env is read when
// present. Variables already set are not overridden.
func LoadDotEnv() error {
	if file := os.Getenv(EnvPrefix + "_ENV_FILE"); file != "" {
		if err := godotenv.Load(ExpandPath(file)); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
