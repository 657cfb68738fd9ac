// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environement variables.
type Config struct {
	DBDriver                string        `mapstructure:"DB_DRIVER"`
	DBSource                string        `mapstructure:"DB_SOURCE"`
	ServerAddress           string        `mapstructure:"SERVER_ADDRESS"`
	RedisAddress            string        `mapstructure:"REDIS_ADDRESS"`
	TokenSymmetricKey       string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	AccessTokenDuration     time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	WebhookURL              string        `mapstructure:"WEBHOOK_URL"`
	WebhookTimeout          time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`
	RateLimitPerMinBalance  int           `mapstructure:"RATE_LIMIT_PER_MIN_BALANCE"`
	RateLimitPerMinTransfer int           `mapstructure:"RATE_LIMIT_PER_MIN_TRANSFER"`
	IdempotencyTTL          time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	AsyncFinalizeDelay      time.Duration `mapstructure:"ASYNC_FINALIZE_DELAY"`
	AsyncWorkers            int           `mapstructure:"ASYNC_WORKERS"`
	SyncNotify              bool          `mapstructure:"SYNC_NOTIFY"`
	Environement            string        `mapstructure:"GO_ENV"`
}

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
