package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Assist    AssistConfig    `mapstructure:"assist"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	APIReadPerMinute  int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
}

// RedisConfig selects the shared rate limit store. An empty URL keeps the
// limiter in process memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type WebhooksConfig struct {
	WorkerCount int           `mapstructure:"worker_count"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Type            string `mapstructure:"type"` // s3, memory
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type AssistConfig struct {
	Bucket                 string        `mapstructure:"bucket"`
	UploadURLExpiration    time.Duration `mapstructure:"upload_url_expiration"`
	PresignedURLExpiration time.Duration `mapstructure:"presigned_url_expiration"`
	RetentionKey           string        `mapstructure:"retention_key"`
	RetentionLong          string        `mapstructure:"retention_long"`
	RetentionDefault       string        `mapstructure:"retention_default"`
}

// AuditConfig controls the background pruning done by cmd/worker. A zero
// retention keeps entries forever.
type AuditConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.url", "file:./data/replayhub.db")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)

	v.SetDefault("rate_limit.api_read_per_minute", 1000)
	v.SetDefault("rate_limit.api_write_per_minute", 100)

	v.SetDefault("webhooks.worker_count", 4)
	v.SetDefault("webhooks.timeout", 10*time.Second)

	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("assist.upload_url_expiration", 1800*time.Second)
	v.SetDefault("assist.presigned_url_expiration", 900*time.Second)
	v.SetDefault("assist.retention_key", "retention")
	v.SetDefault("assist.retention_long", "vault")
	v.SetDefault("assist.retention_default", "default")

	v.SetDefault("audit.retention", 90*24*time.Hour)
	v.SetDefault("audit.prune_interval", time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads the YAML file at path, overlays environment variables
// (server.port -> SERVER_PORT) and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Webhooks.WorkerCount < 1 {
		return fmt.Errorf("webhooks.worker_count must be at least 1, got %d", c.Webhooks.WorkerCount)
	}
	if c.Webhooks.Timeout < 0 {
		return errors.New("webhooks.timeout must not be negative")
	}
	switch c.Storage.Type {
	case "s3", "memory":
	default:
		return fmt.Errorf("storage.type must be 's3' or 'memory', got %q", c.Storage.Type)
	}
	if c.Assist.Bucket == "" {
		return errors.New("assist.bucket is required")
	}
	if c.Assist.UploadURLExpiration <= 0 || c.Assist.PresignedURLExpiration <= 0 {
		return errors.New("assist url expirations must be positive")
	}
	if c.Audit.Retention < 0 {
		return errors.New("audit.retention must not be negative")
	}
	if c.Audit.Retention > 0 && c.Audit.PruneInterval <= 0 {
		return errors.New("audit.prune_interval must be positive when retention is set")
	}
	return nil
}
