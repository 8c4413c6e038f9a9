package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Server
	Host string
	Port string

	// Board
	MapFile string

	// Tickers
	BroadcastIntervalMs int
	PingIntervalMs      int
	PurgeIntervalMs     int

	// Grace periods
	ConnectionGraceMs int
	PlayerGraceMs     int

	// Movement broadcast mode: "periodic" or "immediate"
	MoveBroadcastMode string

	// Logging
	LogLevel string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Server
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "3000"),

		// Board
		MapFile: getEnv("MAP_FILE", ""),

		// Tickers
		BroadcastIntervalMs: getEnvInt("BROADCAST_INTERVAL_MS", 250),
		PingIntervalMs:      getEnvInt("PING_INTERVAL_MS", 30000),
		PurgeIntervalMs:     getEnvInt("PURGE_INTERVAL_MS", 30000),

		// Grace periods
		ConnectionGraceMs: getEnvInt("CONNECTION_GRACE_MS", 60000),
		PlayerGraceMs:     getEnvInt("PLAYER_GRACE_MS", 60000),

		// Movement broadcast mode
		MoveBroadcastMode: getEnv("MOVE_BROADCAST_MODE", "periodic"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// BroadcastInterval returns the state broadcast period.
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.BroadcastIntervalMs) * time.Millisecond
}

// PingInterval returns the transport keepalive period.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMs) * time.Millisecond
}

// PurgeInterval returns the period of the disconnected-registry sweep.
func (c *Config) PurgeInterval() time.Duration {
	return time.Duration(c.PurgeIntervalMs) * time.Millisecond
}

// ConnectionGrace returns how long a disconnected connection entry is kept.
func (c *Config) ConnectionGrace() time.Duration {
	return time.Duration(c.ConnectionGraceMs) * time.Millisecond
}

// PlayerGrace returns how long a disconnected player may still reconnect.
func (c *Config) PlayerGrace() time.Duration {
	return time.Duration(c.PlayerGraceMs) * time.Millisecond
}

// ImmediateMoveBroadcast reports whether a successful move triggers a state
// broadcast in addition to the periodic ticker.
func (c *Config) ImmediateMoveBroadcast() bool {
	return c.MoveBroadcastMode == "immediate"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
