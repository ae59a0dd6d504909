package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	ThingSpeak  ThingSpeakConfig
	Alerting    AlertingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and change-feed settings
type RabbitMQConfig struct {
	URL            string
	ChangeExchange string
}

// ThingSpeakConfig holds upstream sensor API settings
type ThingSpeakConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// AlertingConfig holds the threshold rule set applied by the evaluator.
// FlameSentinel is the raw flag value that means "flame detected"; the
// sensor firmware transmits the flag with inverted polarity.
type AlertingConfig struct {
	GasMax         float64
	TemperatureMax float64
	FlameSentinel  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "fire-alert-service"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8090),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:            getEnv("RABBITMQ_URL", ""),
			ChangeExchange: getEnv("RABBITMQ_CHANGE_EXCHANGE", "fire-alert.changes.exchange"),
		},
		ThingSpeak: ThingSpeakConfig{
			BaseURL:        getEnv("THINGSPEAK_BASE_URL", "https://api.thingspeak.com"),
			TimeoutSeconds: getEnvAsInt("THINGSPEAK_TIMEOUT_SECONDS", 10),
		},
		Alerting: AlertingConfig{
			GasMax:         getEnvAsFloat("ALERT_GAS_MAX", 300.0),
			TemperatureMax: getEnvAsFloat("ALERT_TEMPERATURE_MAX", 25.0),
			FlameSentinel:  getEnv("ALERT_FLAME_SENTINEL", "0"),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
