package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Cave admission configuration
	DefaultSessionMinutes int // used when an event declares no time limit
	TicketCodeBytes       int

	// Stats configuration
	StatsCacheTTL        time.Duration
	StatsCollectInterval time.Duration

	// Rate limit configuration
	RateLimitWindow   time.Duration
	RateLimitRequests int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Cave admission
		DefaultSessionMinutes: getEnvAsInt("CAVE_DEFAULT_SESSION_MINUTES", 30),
		TicketCodeBytes:       getEnvAsInt("CAVE_TICKET_CODE_BYTES", 6),

		// Stats
		StatsCacheTTL:        getEnvAsDuration("STATS_CACHE_TTL", "30s"),
		StatsCollectInterval: getEnvAsDuration("STATS_COLLECT_INTERVAL", "1m"),

		// Rate limits
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value.
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
