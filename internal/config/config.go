package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Marketplace backend
	ChefAPIBaseURL string
	ChefAPITimeout time.Duration

	// Catalog cache: "memory" or "redis"
	CatalogCache    string
	CatalogCacheTTL time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool

	// Bridge
	CORSAllowedOrigins  []string
	SessionTTL          time.Duration
	PinSubmitsPerMinute int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ChefAPIBaseURL: strings.TrimRight(getEnv("CHEF_API_BASE_URL", "http://localhost:8081/api/v1"), "/"),
		ChefAPITimeout: getEnvAsDuration("CHEF_API_TIMEOUT", 15*time.Second),

		CatalogCache:    strings.ToLower(strings.TrimSpace(getEnv("CATALOG_CACHE", "memory"))),
		CatalogCacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 10*time.Minute),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		PinSubmitsPerMinute: getEnvAsInt("PIN_SUBMITS_PER_MINUTE", 10),
	}
}

// UsesRedisCache reports whether the catalog cache should be backed by Redis.
func (c *Config) UsesRedisCache() bool {
	return c.CatalogCache == "redis"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
