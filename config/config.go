package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	AuthSecret     string

	// Presence entries with no heartbeat for this long are reaped.
	PresenceTTL time.Duration
	// Interval between keep-alive comment frames on push streams; also the
	// cadence of the reap/prune maintenance passes.
	KeepaliveInterval time.Duration
	// Signaling buffers idle for longer than this are dropped.
	SignalBufferAge time.Duration

	// Requests per window per client IP on mutation endpoints; 0 disables.
	RateLimit       int
	RateLimitWindow time.Duration

	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether a Redis host is configured. The room directory and
// rate limiter are skipped without one; the presence and signaling core never
// needs Redis.
func (rc RedisConfig) Enabled() bool {
	return rc.Host != ""
}

func (rc RedisConfig) Addr() string {
	return rc.Host + ":" + rc.Port
}

func Load() *Config {
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		AllowedOrigins:    origins,
		AuthSecret:        getEnv("AUTH_SECRET", "change-me-in-production"),
		PresenceTTL:       getDuration("PRESENCE_TTL", 30*time.Second),
		KeepaliveInterval: getDuration("KEEPALIVE_INTERVAL", 25*time.Second),
		SignalBufferAge:   getDuration("SIGNAL_BUFFER_AGE", 10*time.Minute),
		RateLimit:         getInt("RATE_LIMIT", 120),
		RateLimitWindow:   getDuration("RATE_LIMIT_WINDOW", time.Minute),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
