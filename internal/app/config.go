package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/florianilch/finctl/internal/credstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TelemetryExporter selects where OpenTelemetry log records are exported.
type TelemetryExporter string

const (
	TelemetryExporterNone     TelemetryExporter = "none"
	TelemetryExporterStdout   TelemetryExporter = "stdout"
	TelemetryExporterOTLPHTTP TelemetryExporter = "otlp-http"
	TelemetryExporterOTLPGRPC TelemetryExporter = "otlp-grpc"
)

// CredentialStorageType represents the storage backends supported for credentials.
type CredentialStorageType string

const (
	CredentialStorageFile    CredentialStorageType = "file"
	CredentialStorageKeyring CredentialStorageType = "keyring"
	CredentialStorageEnv     CredentialStorageType = "env"
	CredentialStorageRedis   CredentialStorageType = "redis"
	CredentialStorageMemory  CredentialStorageType = "memory"
)

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigTelemetryExporter = TelemetryExporterNone
	DefaultConfigAPIBaseURL        = "http://localhost:8000/api"
	DefaultConfigAPITimeout        = 60 * time.Second
	DefaultConfigAuthStorage       = CredentialStorageFile
	DefaultConfigAuthEnvAccessKey  = "FINCTL_ACCESS_TOKEN"
	DefaultConfigAuthEnvRefreshKey = "FINCTL_REFRESH_TOKEN"
	DefaultConfigAuthRefreshTime   = 30 * time.Second
	DefaultConfigRedisAddr         = "127.0.0.1:6379"
	DefaultConfigRedisKey          = "finctl:credentials"
	DefaultConfigServerHost        = "127.0.0.1"
	DefaultConfigServerPort        = 4100
	DefaultConfigShutdownTimeout   = 5 * time.Second

	keyringService = "finctl-credentials"
)

// TelemetryConfig holds OpenTelemetry log export configuration.
type TelemetryConfig struct {
	Exporter TelemetryExporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	// Endpoint overrides the OTLP endpoint URL; OTEL_EXPORTER_OTLP_* variables apply otherwise.
	Endpoint string `json:"endpoint,omitempty" validate:"omitempty,url"`
}

// APIConfig holds the finance backend configuration.
type APIConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	// Timeout bounds a whole request including a refresh and replay.
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
}

// RedisConfig holds settings for the redis credential storage.
type RedisConfig struct {
	Addr     string        `json:"addr" validate:"required,hostname_port"`
	Password string        `json:"password,omitempty"`
	DB       int           `json:"db" validate:"gte=0"`
	Key      string        `json:"key" validate:"required"`
	TTL      time.Duration `json:"ttl" validate:"gte=0"`
}

// AuthConfig describes where credentials live and how refreshes behave.
type AuthConfig struct {
	Storage CredentialStorageType `json:"storage" validate:"required,oneof=file keyring env redis memory"`

	// Storage-specific settings (only the one matching Storage is used)
	File          string      `json:"file,omitempty"`
	KeyringUser   string      `json:"keyring_user,omitempty"`
	EnvAccessKey  string      `json:"env_access_key,omitempty"`
	EnvRefreshKey string      `json:"env_refresh_key,omitempty"`
	Redis         RedisConfig `json:"redis"`

	// RefreshTimeout bounds each refresh attempt so queued requests can't hang forever.
	RefreshTimeout time.Duration `json:"refresh_timeout" validate:"gt=0"`
}

// NewCredentialStore creates the configured credential storage backend.
// The returned close function releases backend connections.
func (a *AuthConfig) NewCredentialStore() (credstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch a.Storage {
	case CredentialStorageFile:
		store, err := credstore.NewFileStore(a.File)
		return store, noop, err
	case CredentialStorageKeyring:
		store, err := credstore.NewKeyringStore(keyringService, a.KeyringUser)
		return store, noop, err
	case CredentialStorageEnv:
		store, err := credstore.NewEnvStore(a.EnvAccessKey, a.EnvRefreshKey)
		return store, noop, err
	case CredentialStorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.Redis.Addr,
			Password: a.Redis.Password,
			DB:       a.Redis.DB,
		})
		store, err := credstore.NewRedisStore(rdb, a.Redis.Key, a.Redis.TTL)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return store, rdb.Close, nil
	case CredentialStorageMemory:
		return credstore.NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// ServerConfig holds settings for the local ambassador proxy.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Telemetry TelemetryConfig `json:"telemetry"`
	API       APIConfig       `json:"api"`
	Auth      AuthConfig      `json:"auth"`
	Server    ServerConfig    `json:"server"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigTelemetryExporter
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigAPITimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Auth.RefreshTimeout == 0 {
		c.Auth.RefreshTimeout = DefaultConfigAuthRefreshTime
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case CredentialStorageFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "finctl", "credentials.json")
		}
	case CredentialStorageKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case CredentialStorageEnv:
		if c.Auth.EnvAccessKey == "" {
			c.Auth.EnvAccessKey = DefaultConfigAuthEnvAccessKey
		}
		if c.Auth.EnvRefreshKey == "" {
			c.Auth.EnvRefreshKey = DefaultConfigAuthEnvRefreshKey
		}
	case CredentialStorageRedis:
		if c.Auth.Redis.Addr == "" {
			c.Auth.Redis.Addr = DefaultConfigRedisAddr
		}
		if c.Auth.Redis.Key == "" {
			c.Auth.Redis.Key = DefaultConfigRedisKey
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	// Redis settings are only validated when redis storage is selected
	v := validator.New()
	if err := v.StructExcept(c, "Auth.Redis"); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case CredentialStorageFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case CredentialStorageKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	case CredentialStorageEnv:
		if c.Auth.EnvAccessKey == "" {
			return errors.New("env_access_key required for env storage")
		}
	case CredentialStorageRedis:
		if err := v.Struct(c.Auth.Redis); err != nil {
			return fmt.Errorf("invalid redis storage settings: %w", err)
		}
	}

	if c.Telemetry.Exporter == TelemetryExporterStdout && c.Telemetry.Endpoint != "" {
		return errors.New("telemetry.endpoint only applies to otlp exporters")
	}

	return nil
}
