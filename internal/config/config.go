// Package config provides environment configuration for the client and the
// simulator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Inbox backend
	ServerURL string
	PushURL   string
	AuthToken string

	// Push transport
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	HTTPTimeout       time.Duration

	// Simulator
	SimulatorPort      string
	SimulatorSecret    string
	SimulatorTraffic   bool
	SimulatorInterval  time.Duration
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS event mirror (simulator, optional)
	NATSURL   string
	NATSToken string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Backend
		ServerURL: getEnv("INBOX_SERVER_URL", "http://localhost:8080"),
		PushURL:   getEnv("INBOX_PUSH_URL", "ws://localhost:8080/ws"),
		AuthToken: getEnv("INBOX_TOKEN", ""),

		// Push transport
		ReconnectDelay:    getDurationEnv("INBOX_RECONNECT_DELAY", 3*time.Second),
		ReconnectMaxDelay: getDurationEnv("INBOX_RECONNECT_MAX_DELAY", 30*time.Second),
		HTTPTimeout:       getDurationEnv("INBOX_HTTP_TIMEOUT", 15*time.Second),

		// Simulator
		SimulatorPort:      getEnv("PORT", "8080"),
		SimulatorSecret:    getEnv("SIMULATOR_JWT_SECRET", "development-secret-change-in-production"),
		SimulatorTraffic:   getBoolEnv("SIMULATOR_TRAFFIC", true),
		SimulatorInterval:  getDurationEnv("SIMULATOR_TRAFFIC_INTERVAL", 20*time.Second),
		RateLimitRequests:  getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		NATSURL:   getEnv("NATS_URL", ""),
		NATSToken: getEnv("NATS_TOKEN", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
