package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.PresenceTTL != 30*time.Second {
		t.Errorf("PresenceTTL = %v, want 30s", cfg.PresenceTTL)
	}
	if cfg.KeepaliveInterval != 25*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 25s", cfg.KeepaliveInterval)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled without REDIS_HOST")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PRESENCE_TTL", "45s")
	t.Setenv("RATE_LIMIT", "10")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.PresenceTTL != 45*time.Second {
		t.Errorf("PresenceTTL = %v", cfg.PresenceTTL)
	}
	if cfg.RateLimit != 10 {
		t.Errorf("RateLimit = %d", cfg.RateLimit)
	}
	if !cfg.Redis.Enabled() {
		t.Error("Redis should be enabled")
	}
	if cfg.Redis.Addr() != "cache.internal:6379" {
		t.Errorf("Redis.Addr() = %q", cfg.Redis.Addr())
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadMalformedDurationFallsBack(t *testing.T) {
	t.Setenv("PRESENCE_TTL", "soon")

	cfg := Load()
	if cfg.PresenceTTL != 30*time.Second {
		t.Errorf("PresenceTTL = %v, want default 30s", cfg.PresenceTTL)
	}
}
