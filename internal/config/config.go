// Package config loads the server configuration from environment variables
// and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig
	Mongo         MongoConfig
	MQTT          MQTTConfig
	Filing        FilingConfig
	Jurisdictions map[string]EndpointConfig
	LogLevel      log.Level
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Port              string
	RateLimitRequests int
	RateLimitWindow   int // seconds
}

// MongoConfig represents MongoDB configuration.
type MongoConfig struct {
	URI      string
	Database string
}

// MQTTConfig represents the event broker configuration. An empty Broker
// disables event publishing.
type MQTTConfig struct {
	Broker   string
	ClientID string
	QoS      int
}

// FilingConfig represents tax calculation and submission settings.
type FilingConfig struct {
	MPG            float64
	RatesFile      string
	CarrierID      string
	SubmitTimeout  time.Duration
	SubmitAttempts int
	SubmitBackoff  time.Duration
	Concurrency    int
}

// EndpointConfig represents one jurisdiction's filing endpoint.
type EndpointConfig struct {
	Endpoint string
	APIKey   string
}

// Load loads configuration from environment variables.
// A .env file in the current directory is read when present; a custom path
// may be given instead, in which case it must exist.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	mpg, err := parseFloatEnv("IFTA_MPG", 6.5)
	if err != nil {
		return nil, err
	}
	timeout, err := parseDurationEnv("IFTA_SUBMIT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	backoff, err := parseDurationEnv("IFTA_SUBMIT_BACKOFF", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	attempts, err := parseIntEnv("IFTA_SUBMIT_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	concurrency, err := parseIntEnv("IFTA_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	qos, err := parseIntEnv("MQTT_QOS", 1)
	if err != nil {
		return nil, err
	}
	rateRequests, err := parseIntEnv("RATE_LIMIT_REQUESTS", 100)
	if err != nil {
		return nil, err
	}
	rateWindow, err := parseIntEnv("RATE_LIMIT_WINDOW", 60)
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:              getEnvOrDefault("PORT", "8080"),
			RateLimitRequests: rateRequests,
			RateLimitWindow:   rateWindow,
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: getEnvOrDefault("MONGO_DB", "fleet_ifta"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			ClientID: getEnvOrDefault("MQTT_CLIENT_ID", "fleet-ifta"),
			QoS:      qos,
		},
		Filing: FilingConfig{
			MPG:            mpg,
			RatesFile:      os.Getenv("IFTA_RATES_FILE"),
			CarrierID:      os.Getenv("IFTA_CARRIER_ID"),
			SubmitTimeout:  timeout,
			SubmitAttempts: attempts,
			SubmitBackoff:  backoff,
			Concurrency:    concurrency,
		},
		Jurisdictions: map[string]EndpointConfig{
			"FL": {Endpoint: os.Getenv("IFTA_FL_ENDPOINT"), APIKey: os.Getenv("IFTA_FL_API_KEY")},
			"TX": {Endpoint: os.Getenv("IFTA_TX_ENDPOINT"), APIKey: os.Getenv("IFTA_TX_API_KEY")},
		},
		LogLevel: level,
	}, nil
}

// Validate checks that the settings the server cannot run without are set.
func (c *Config) Validate() error {
	var missing []string
	if c.Server.Port == "" {
		missing = append(missing, "PORT")
	}
	if c.Mongo.Database == "" {
		missing = append(missing, "MONGO_DB")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	if c.Filing.MPG <= 0 {
		return fmt.Errorf("IFTA_MPG must be positive, got %v", c.Filing.MPG)
	}
	if c.Filing.SubmitAttempts < 1 {
		return fmt.Errorf("IFTA_SUBMIT_ATTEMPTS must be at least 1, got %d", c.Filing.SubmitAttempts)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %s", key, value)
	}
	return parsed, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %s", key, value)
	}
	return parsed, nil
}
