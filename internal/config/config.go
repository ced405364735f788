package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	AllowedOrigin  string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	AuthSecret     string
	LogLevel       string
	RequestTimeout time.Duration

	OrderLockTTL           time.Duration
	OrderLockWait          time.Duration
	OrderCacheTTL          time.Duration
	OrderAllowEmptyItems   bool
	OrderStrictTransitions bool

	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceSampleRate float64
}

func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getInt("REDIS_DB", 0, 0),
		AuthSecret:     strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getSeconds("REQUEST_TIMEOUT_SECONDS", 10),

		OrderLockTTL:           getSeconds("ORDER_LOCK_TTL_SECONDS", 15),
		OrderLockWait:          getSeconds("ORDER_LOCK_WAIT_SECONDS", 5),
		OrderCacheTTL:          getSeconds("ORDER_CACHE_TTL_SECONDS", 60),
		OrderAllowEmptyItems:   getBool("ORDER_ALLOW_EMPTY_ITEMS", true),
		OrderStrictTransitions: getBool("ORDER_STRICT_TRANSITIONS", false),

		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSampleRate: getRate("OTEL_TRACES_SAMPLE_RATE", 1),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}

func getSeconds(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback, 1)) * time.Second
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return val
}

// getRate reads a ratio in [0, 1].
func getRate(key string, fallback float64) float64 {
	val, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(fallback, 'f', -1, 64)), 64)
	if err != nil || val < 0 || val > 1 {
		return fallback
	}
	return val
}
