// Package config loads the service configuration from file and
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/skyvault/skyvault/internal/middleware"
	"github.com/skyvault/skyvault/internal/services"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig               `mapstructure:"server"`
	Log     LogConfig                  `mapstructure:"log"`
	Storage StoreConfig                `mapstructure:"storage"`
	Blob    services.StorageConfig     `mapstructure:"blob"`
	Redis   RedisConfig                `mapstructure:"redis"`
	JWT     JWTConfig                  `mapstructure:"jwt"`
	Email   EmailConfig                `mapstructure:"email"`
	Limits  middleware.RateLimitConfig `mapstructure:"rate_limit"`
	Cleanup CleanupConfig              `mapstructure:"cleanup"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects and configures the metadata store. Driver is
// either "mongo" or "badger".
type StoreConfig struct {
	Driver string       `mapstructure:"driver"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Badger BadgerConfig `mapstructure:"badger"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// BadgerConfig configures the embedded Badger backend.
type BadgerConfig struct {
	Dir string `mapstructure:"dir"`
}

// RedisConfig configures the Redis client used by rate limiting.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig configures token issuing.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

// EmailConfig wraps the SMTP settings with an on/off switch.
type EmailConfig struct {
	Enabled bool `mapstructure:"enabled"`

	services.EmailConfig `mapstructure:",squash"`
}

// CleanupConfig configures the trash retention sweep.
type CleanupConfig struct {
	Retention time.Duration `mapstructure:"retention"`
	Interval  time.Duration `mapstructure:"interval"`
}

// Load reads the configuration. path may be empty, in which case only
// defaults and SKYVAULT_* environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SKYVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("storage.driver", "badger")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "skyvault")
	v.SetDefault("storage.badger.dir", "./data")

	v.SetDefault("blob.provider", "local")
	v.SetDefault("blob.local_path", "./blobs")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("jwt.issuer", "skyvault")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.limit", 100)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("cleanup.retention", 30*24*time.Hour)
	v.SetDefault("cleanup.interval", time.Hour)
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "mongo", "badger":
	default:
		return fmt.Errorf("invalid storage driver %q, want mongo or badger", c.Storage.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Email.Enabled && c.Email.Host == "" {
		return fmt.Errorf("email.host is required when email is enabled")
	}
	return nil
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
