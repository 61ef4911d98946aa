// Package config loads client configuration from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends selectable with STORE_BACKEND.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

const defaultAPIBaseURL = "https://byzxpo-server.onrender.com/api"

// Config holds the session client configuration.
type Config struct {
	// AppName is shown in the CLI banner.
	AppName string `mapstructure:"APP_NAME"`
	// Env is the runtime environment ("DEV" enables pretty console logs).
	Env string `mapstructure:"ENV"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// APIBaseURL is the REST backend root, e.g. https://host/api.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// HTTPTimeoutRaw is the per-request timeout (e.g. "30s").
	HTTPTimeoutRaw string `mapstructure:"HTTP_TIMEOUT"`
	// AuthScheme is prefixed to the token in the Authorization header; empty sends the raw token.
	AuthScheme string `mapstructure:"AUTH_SCHEME"`

	// StoreBackend selects where credentials persist: file, memory or redis.
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// StorePath is the JSON file used by the file backend.
	StorePath string `mapstructure:"STORE_PATH"`
	// RedisAddr is host:port of the Redis server for the redis backend.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is optional.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the logical database number.
	RedisDB int `mapstructure:"REDIS_DB"`
	// RedisKeyPrefix namespaces the credential keys.
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	// TokenIssuer is the expected iss claim when TokenPublicKey is set; empty skips the issuer check.
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
	// TokenPublicKey is a PEM public key, or a path to one, used to verify issued access tokens.
	TokenPublicKey string `mapstructure:"TOKEN_PUBLIC_KEY"`

	// RegisterAutoLogin authenticates straight after a successful registration.
	RegisterAutoLogin bool `mapstructure:"REGISTER_AUTO_LOGIN"`

	// FakeBackendAddr is the listen address of cmd/fakebackend.
	FakeBackendAddr string `mapstructure:"FAKE_BACKEND_ADDR"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env

	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "Byzxpo Session")
	v.SetDefault("ENV", "DEV")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_BASE_URL", defaultAPIBaseURL)
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("AUTH_SCHEME", "")
	v.SetDefault("STORE_BACKEND", StoreFile)
	v.SetDefault("STORE_PATH", filepath.Join(".", "data", "session.json"))
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "byzxpo:session:")
	v.SetDefault("TOKEN_ISSUER", "")
	v.SetDefault("TOKEN_PUBLIC_KEY", "")
	v.SetDefault("REGISTER_AUTO_LOGIN", true)
	v.SetDefault("FAKE_BACKEND_ADDR", ":8080")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case StoreFile:
		if cfg.StorePath == "" {
			return nil, errors.New("config: STORE_PATH must be set for the file backend")
		}
	case StoreMemory:
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("config: REDIS_ADDR must be set for the redis backend")
		}
	default:
		return nil, errors.New("config: STORE_BACKEND must be one of file, memory, redis")
	}

	if cfg.RedisDB < 0 {
		return nil, errors.New("config: REDIS_DB must not be negative")
	}

	return &cfg, nil
}

// HTTPTimeout parses HTTPTimeoutRaw. Returns 30s if unset or invalid.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeoutRaw)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// IsDev reports whether the client runs in the development environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Env, "DEV")
}

// PublicKeyPEM returns TokenPublicKey, reading it from disk when it names a file.
// Returns "" when verification is not configured.
func (c *Config) PublicKeyPEM() (string, error) {
	key := strings.TrimSpace(c.TokenPublicKey)
	if key == "" || strings.HasPrefix(key, "-----BEGIN") {
		return key, nil
	}
	b, err := os.ReadFile(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
