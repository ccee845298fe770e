package util

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AllowedOrigins          []string      `mapstructure:"ALLOWED_ORIGINS"`
	HTTPServerAddress       string        `mapstructure:"HTTP_SERVER_ADDRESS"`
	StoreDriver             string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	RedisServerAddress      string        `mapstructure:"REDIS_SERVER_ADDRESS"`
	RedisRelayEnabled       bool          `mapstructure:"REDIS_RELAY_ENABLED"`
	TokenSecretKey          string        `mapstructure:"TOKEN_SECRET_KEY"`
	AccessTokenDuration     time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	TickInterval            time.Duration `mapstructure:"TICK_INTERVAL"`
	TickResolution          time.Duration `mapstructure:"TICK_RESOLUTION"`
	ResyncInterval          time.Duration `mapstructure:"RESYNC_INTERVAL"`
	CloseRetryAttempts      int           `mapstructure:"CLOSE_RETRY_ATTEMPTS"`
	CloseRetryBackoff       time.Duration `mapstructure:"CLOSE_RETRY_BACKOFF"`
	PushMirrorEnabled       bool          `mapstructure:"PUSH_MIRROR_ENABLED"`
	FirebaseCredentialsFile string        `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	LogFormat               string        `mapstructure:"LOG_FORMAT"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; environment variables and defaults are used instead.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	// Set defaults for non-sensitive config
	v.SetDefault("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("HTTP_SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_SERVER_ADDRESS", "")
	v.SetDefault("REDIS_RELAY_ENABLED", false)
	v.SetDefault("TOKEN_SECRET_KEY", "")
	v.SetDefault("ACCESS_TOKEN_DURATION", "24h")
	v.SetDefault("TICK_INTERVAL", "60s")
	v.SetDefault("TICK_RESOLUTION", "1s")
	v.SetDefault("RESYNC_INTERVAL", "10m")
	v.SetDefault("CLOSE_RETRY_ATTEMPTS", 3)
	v.SetDefault("CLOSE_RETRY_BACKOFF", "200ms")
	v.SetDefault("PUSH_MIRROR_ENABLED", false)
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	// Prefer environment variables over config file
	v.AutomaticEnv()

	// Load config file
	v.SetConfigFile(path)
	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return
		}
		err = nil
	}

	// Unmarshal config into struct
	err = v.UnmarshalExact(&config)
	if err != nil {
		return
	}

	// Validate required configuration
	err = validateConfig(config)
	return
}

func validateConfig(config Config) error {
	switch config.StoreDriver {
	case StoreDriverPostgres:
		if config.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, config.StoreDriver)
	}
	if config.TokenSecretKey == "" {
		return fmt.Errorf("TOKEN_SECRET_KEY is required")
	}
	if (config.RedisRelayEnabled || config.PushMirrorEnabled) && config.RedisServerAddress == "" {
		return fmt.Errorf("REDIS_SERVER_ADDRESS is required when the redis relay or push mirror is enabled")
	}
	if config.PushMirrorEnabled && config.FirebaseCredentialsFile == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_FILE is required when the push mirror is enabled")
	}
	if config.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if config.TickResolution <= 0 || config.TickResolution > config.TickInterval {
		return fmt.Errorf("TICK_RESOLUTION must be positive and not greater than TICK_INTERVAL")
	}
	if config.CloseRetryAttempts < 1 {
		return fmt.Errorf("CLOSE_RETRY_ATTEMPTS must be at least 1")
	}

	return nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
