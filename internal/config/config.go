/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables (with
 * an optional .env file), providing a centralized and straightforward way to
 * manage application settings.
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
	ServerPort               string  `mapstructure:"SERVER_PORT"`
	DatabaseURL              string  `mapstructure:"DATABASE_URL"`
	RabbitMQURL              string  `mapstructure:"RABBITMQ_URL"`
	RedisURL                 string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	FlutterwaveAPIBaseURL    string  `mapstructure:"FLUTTERWAVE_API_BASE_URL"`
	FlutterwaveSecretKey     string  `mapstructure:"FLUTTERWAVE_SECRET_KEY"`
	AuthJWKSURL              string  `mapstructure:"AUTH_JWKS_URL"`
	CORSOrigin               string  `mapstructure:"CORS_ORIGIN"`
	OperatingCurrency        string  `mapstructure:"OPERATING_CURRENCY"`
	AmountTolerance          float64 `mapstructure:"AMOUNT_TOLERANCE"`
	SubscriptionValidityDays int     `mapstructure:"SUBSCRIPTION_VALIDITY_DAYS"`
	VerifyRateLimitPerMinute int     `mapstructure:"VERIFY_RATE_LIMIT_PER_MINUTE"`
	GatewayTimeoutSeconds    int     `mapstructure:"GATEWAY_TIMEOUT_SECONDS"`
	PaymentEventExchange     string  `mapstructure:"PAYMENT_EVENT_EXCHANGE"`
}

// maxAmountTolerance caps the configurable under-payment allowance. Anything
// above five percent stops being rounding noise and becomes a discount.
const maxAmountTolerance = 0.05

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
	viper.SetDefault("FLUTTERWAVE_API_BASE_URL", "https://api.flutterwave.com")
	viper.SetDefault("OPERATING_CURRENCY", "NGN")
	viper.SetDefault("AMOUNT_TOLERANCE", 0.0)
	viper.SetDefault("SUBSCRIPTION_VALIDITY_DAYS", 30)
	viper.SetDefault("VERIFY_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("GATEWAY_TIMEOUT_SECONDS", 15)
	viper.SetDefault("PAYMENT_EVENT_EXCHANGE", "mcas.payment_events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "mcas:rate_limit")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("FLUTTERWAVE_API_BASE_URL")
	_ = viper.BindEnv("FLUTTERWAVE_SECRET_KEY")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("CORS_ORIGIN")
	_ = viper.BindEnv("OPERATING_CURRENCY")
	_ = viper.BindEnv("AMOUNT_TOLERANCE")
	_ = viper.BindEnv("SUBSCRIPTION_VALIDITY_DAYS")
	_ = viper.BindEnv("VERIFY_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("GATEWAY_TIMEOUT_SECONDS")
	_ = viper.BindEnv("PAYMENT_EVENT_EXCHANGE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
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

	config.OperatingCurrency = strings.ToUpper(strings.TrimSpace(config.OperatingCurrency))
	if config.OperatingCurrency == "" {
		config.OperatingCurrency = "NGN"
	}

	if config.AmountTolerance < 0 {
		log.Printf("level=warn component=config msg=\"negative amount tolerance configured; coercing to zero\" tolerance=%f", config.AmountTolerance)
		config.AmountTolerance = 0
	}
	if config.AmountTolerance > maxAmountTolerance {
		log.Printf("level=warn component=config msg=\"amount tolerance too high; capping\" tolerance=%f cap=%f", config.AmountTolerance, maxAmountTolerance)
		config.AmountTolerance = maxAmountTolerance
	}

	if config.SubscriptionValidityDays <= 0 {
		config.SubscriptionValidityDays = 30
	}
	if config.VerifyRateLimitPerMinute < 0 {
		config.VerifyRateLimitPerMinute = 0
	}
	if config.GatewayTimeoutSeconds <= 0 {
		config.GatewayTimeoutSeconds = 15
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "mcas:rate_limit"
	}

	return
}
