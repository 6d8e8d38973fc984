package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "CLIPSHARE"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = "sqlite"
	defaultDatabaseDSN        = "clipshare.db"
	defaultLogLevel           = "info"
	defaultCookieName         = "token"
	defaultTokenTTLMinutes    = 7 * 24 * 60
	defaultGoogleJWKSURL      = "https://www.googleapis.com/oauth2/v3/certs"
	defaultMediaBucket        = "clipshare-media"
	defaultTrendingTTLSeconds = 30
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	AllowedOrigins []string
	DatabaseDriver string
	DatabaseDSN    string
	LogLevel       string

	SigningSecret string
	CookieName    string
	CookieSecure  bool
	TokenTTL      time.Duration

	GoogleClientID string
	GoogleJWKSURL  string

	Media MediaConfig

	RedisURL    string
	TrendingTTL time.Duration
}

// MediaConfig describes the S3-compatible bucket used for uploads.
// Media storage is disabled when Endpoint is empty.
type MediaConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// Enabled reports whether an object store endpoint was configured.
func (m MediaConfig) Enabled() bool {
	return strings.TrimSpace(m.Endpoint) != ""
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
	configViper.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.cookie_secure", false)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("google.jwks_url", defaultGoogleJWKSURL)
	configViper.SetDefault("media.bucket", defaultMediaBucket)
	configViper.SetDefault("media.use_ssl", false)
	configViper.SetDefault("cache.trending_ttl_seconds", defaultTrendingTTLSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		AllowedOrigins: normalizeList(configViper.GetStringSlice("http.allowed_origins")),
		DatabaseDriver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:    configViper.GetString("database.dsn"),
		LogLevel:       configViper.GetString("log.level"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		CookieName:     configViper.GetString("auth.cookie_name"),
		CookieSecure:   configViper.GetBool("auth.cookie_secure"),
		TokenTTL:       time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		GoogleClientID: configViper.GetString("google.client_id"),
		GoogleJWKSURL:  configViper.GetString("google.jwks_url"),
		Media: MediaConfig{
			Endpoint:      strings.TrimSpace(configViper.GetString("media.endpoint")),
			AccessKey:     configViper.GetString("media.access_key"),
			SecretKey:     configViper.GetString("media.secret_key"),
			Bucket:        strings.TrimSpace(configViper.GetString("media.bucket")),
			UseSSL:        configViper.GetBool("media.use_ssl"),
			PublicBaseURL: strings.TrimRight(strings.TrimSpace(configViper.GetString("media.public_base_url")), "/"),
		},
		RedisURL:    strings.TrimSpace(configViper.GetString("cache.redis_url")),
		TrendingTTL: time.Duration(configViper.GetInt("cache.trending_ttl_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite or mysql, got %q", c.DatabaseDriver)
	}
	if c.Media.Enabled() {
		if c.Media.Bucket == "" {
			return fmt.Errorf("media.bucket is required when media.endpoint is set")
		}
		if strings.TrimSpace(c.Media.AccessKey) == "" || strings.TrimSpace(c.Media.SecretKey) == "" {
			return fmt.Errorf("media.access_key and media.secret_key are required when media.endpoint is set")
		}
	}
	return nil
}

func normalizeList(values []string) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				normalized = append(normalized, trimmed)
			}
		}
	}
	return normalized
}
