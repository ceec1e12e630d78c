package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
)

const (
	envPrefix              = "RESUMATE"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultRemoteDriver    = "sqlite"
	defaultRemoteDSN       = "resumate.db"
	defaultCacheDriver     = "sqlite"
	defaultCachePath       = "resumate-cache.db"
	defaultCacheTTLHours   = 168
	defaultQuietPeriodMS   = 2000
	defaultStatusResetMS   = 2000
	defaultManualMode      = string(editor.SaveModeUnified)
	defaultLogLevel        = "info"
	defaultIssuer          = "resumate"
	defaultCookieName      = "resumate_session"
	defaultTokenTTLMinutes = 720
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	AllowedOrigins []string

	RemoteDriver string
	RemoteDSN    string

	CacheDriver   string
	CachePath     string
	CacheRedisURL string
	CacheTTL      time.Duration

	AutoSaveEnabled  bool
	QuietPeriod      time.Duration
	StatusResetDelay time.Duration
	ManualSaveMode   editor.SaveMode

	SigningSecret string
	Issuer        string
	CookieName    string
	TokenTTL      time.Duration

	LogLevel string
}

// LoadDotEnv reads the given .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("remote.driver", defaultRemoteDriver)
	configViper.SetDefault("remote.dsn", defaultRemoteDSN)
	configViper.SetDefault("cache.driver", defaultCacheDriver)
	configViper.SetDefault("cache.path", defaultCachePath)
	configViper.SetDefault("cache.ttl_hours", defaultCacheTTLHours)
	configViper.SetDefault("autosave.enabled", true)
	configViper.SetDefault("autosave.quiet_period_ms", defaultQuietPeriodMS)
	configViper.SetDefault("autosave.status_reset_ms", defaultStatusResetMS)
	configViper.SetDefault("autosave.manual_mode", defaultManualMode)
	configViper.SetDefault("auth.issuer", defaultIssuer)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		AllowedOrigins:   splitList(configViper.GetStringSlice("http.allowed_origins")),
		RemoteDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("remote.driver"))),
		RemoteDSN:        configViper.GetString("remote.dsn"),
		CacheDriver:      strings.ToLower(strings.TrimSpace(configViper.GetString("cache.driver"))),
		CachePath:        configViper.GetString("cache.path"),
		CacheRedisURL:    configViper.GetString("cache.redis_url"),
		CacheTTL:         time.Duration(configViper.GetInt("cache.ttl_hours")) * time.Hour,
		AutoSaveEnabled:  configViper.GetBool("autosave.enabled"),
		QuietPeriod:      time.Duration(configViper.GetInt("autosave.quiet_period_ms")) * time.Millisecond,
		StatusResetDelay: time.Duration(configViper.GetInt("autosave.status_reset_ms")) * time.Millisecond,
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		Issuer:           configViper.GetString("auth.issuer"),
		CookieName:       configViper.GetString("auth.cookie_name"),
		TokenTTL:         time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		LogLevel:         configViper.GetString("log.level"),
	}

	mode, err := editor.ParseSaveMode(configViper.GetString("autosave.manual_mode"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("autosave.manual_mode: %w", err)
	}
	cfg.ManualSaveMode = mode

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.RemoteDSN) == "" {
		return fmt.Errorf("remote.dsn is required")
	}
	switch c.RemoteDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("remote.driver must be sqlite or postgres, got %q", c.RemoteDriver)
	}
	switch c.CacheDriver {
	case "sqlite":
		if strings.TrimSpace(c.CachePath) == "" {
			return fmt.Errorf("cache.path is required for the sqlite cache")
		}
	case "redis":
		if strings.TrimSpace(c.CacheRedisURL) == "" {
			return fmt.Errorf("cache.redis_url is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache.driver must be sqlite or redis, got %q", c.CacheDriver)
	}
	if c.QuietPeriod <= 0 {
		return fmt.Errorf("autosave.quiet_period_ms must be positive")
	}
	if c.StatusResetDelay <= 0 {
		return fmt.Errorf("autosave.status_reset_ms must be positive")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	return nil
}

// splitList accepts both repeated values and a single comma-separated env value.
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
