package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "CHEF_API_BASE_URL", "CHEF_API_TIMEOUT", "CATALOG_CACHE", "CORS_ALLOWED_ORIGINS", "SESSION_TTL", "PIN_SUBMITS_PER_MINUTE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ChefAPITimeout != 15*time.Second {
		t.Fatalf("expected default api timeout, got %s", cfg.ChefAPITimeout)
	}
	if cfg.UsesRedisCache() {
		t.Fatalf("expected memory catalog cache by default")
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("expected default session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.PinSubmitsPerMinute != 10 {
		t.Fatalf("expected default pin submit rate, got %d", cfg.PinSubmitsPerMinute)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CHEF_API_BASE_URL", "https://api.example.com/v1/")
	t.Setenv("CHEF_API_TIMEOUT", "3s")
	t.Setenv("CATALOG_CACHE", " Redis ")
	t.Setenv("CATALOG_CACHE_TTL", "1m")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:19006, capacitor://localhost,")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.ChefAPIBaseURL != "https://api.example.com/v1" {
		t.Fatalf("expected trimmed base url, got %s", cfg.ChefAPIBaseURL)
	}
	if cfg.ChefAPITimeout != 3*time.Second {
		t.Fatalf("expected api timeout override, got %s", cfg.ChefAPITimeout)
	}
	if !cfg.UsesRedisCache() {
		t.Fatalf("expected redis catalog cache")
	}
	if cfg.CatalogCacheTTL != time.Minute {
		t.Fatalf("expected cache ttl override, got %s", cfg.CatalogCacheTTL)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "capacitor://localhost" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CHEF_API_TIMEOUT", "soon")
	t.Setenv("REDIS_TLS", "maybe")
	t.Setenv("PIN_SUBMITS_PER_MINUTE", "lots")
	cfg := Load()
	if cfg.PinSubmitsPerMinute != 10 {
		t.Fatalf("expected fallback pin submit rate, got %d", cfg.PinSubmitsPerMinute)
	}
	if cfg.ChefAPITimeout != 15*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.ChefAPITimeout)
	}
	if cfg.RedisTLS {
		t.Fatalf("expected fallback tls=false")
	}
	if getEnvAsInt("CHEF_API_TIMEOUT", 7) != 7 {
		t.Fatalf("expected int fallback")
	}
}
