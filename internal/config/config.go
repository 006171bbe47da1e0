/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                        string `mapstructure:"SERVER_PORT"`
	DatabaseURL                       string `mapstructure:"DATABASE_URL"`
	RedisURL                          string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix              string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                       string `mapstructure:"RABBITMQ_URL"`
	PaymentAPIBaseURL                 string `mapstructure:"PAYMENT_API_BASE_URL"`
	PaymentAPIKey                     string `mapstructure:"PAYMENT_API_KEY"`
	WebhookSigningSecret              string `mapstructure:"WEBHOOK_SIGNING_SECRET"`
	WebhookSignatureToleranceSeconds  int    `mapstructure:"WEBHOOK_SIGNATURE_TOLERANCE_SECONDS"`
	ChargeCorrelationWindowSeconds    int    `mapstructure:"CHARGE_CORRELATION_WINDOW_SECONDS"`
	AuthJWKSURL                       string `mapstructure:"AUTH_JWKS_URL"`
	CheckoutCreateRateLimitPerMinute  int    `mapstructure:"CHECKOUT_CREATE_RATE_LIMIT_PER_MINUTE"`
	CheckoutSuccessURL                string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL                 string `mapstructure:"CHECKOUT_CANCEL_URL"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "payment:rate_limit")
	viper.SetDefault("WEBHOOK_SIGNATURE_TOLERANCE_SECONDS", 300)
	viper.SetDefault("CHARGE_CORRELATION_WINDOW_SECONDS", 30)
	viper.SetDefault("CHECKOUT_CREATE_RATE_LIMIT_PER_MINUTE", 20)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYMENT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_API_BASE_URL")
	_ = viper.BindEnv("PAYMENT_API_KEY", "PAYMENT_API_KEY", "PAYMENT_API_SECRET_KEY")
	_ = viper.BindEnv("WEBHOOK_SIGNING_SECRET")
	_ = viper.BindEnv("WEBHOOK_SIGNATURE_TOLERANCE_SECONDS")
	_ = viper.BindEnv("CHARGE_CORRELATION_WINDOW_SECONDS")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("CHECKOUT_CREATE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("CHECKOUT_SUCCESS_URL")
	_ = viper.BindEnv("CHECKOUT_CANCEL_URL")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "payment:rate_limit"
	}

	if config.WebhookSignatureToleranceSeconds <= 0 {
		config.WebhookSignatureToleranceSeconds = 300
	}
	if config.ChargeCorrelationWindowSeconds <= 0 {
		config.ChargeCorrelationWindowSeconds = 30
	}
	if config.CheckoutCreateRateLimitPerMinute <= 0 {
		config.CheckoutCreateRateLimitPerMinute = 20
	}

	return
}
