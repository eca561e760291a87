package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/giant-coach-panel-bfa/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load("")

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.SessionBackend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.SessionBackend)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m session ttl, got %v", cfg.SessionTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("expected wildcard origin, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHATKIT_API_URL", "https://chatkit.example.com/api")
	t.Setenv("CHATKIT_API_DOMAIN_KEY", "domain_pk_test")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg := config.Load("")

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.ChatKitAPIURL != "https://chatkit.example.com/api" {
		t.Errorf("unexpected chatkit url %q", cfg.ChatKitAPIURL)
	}
	if cfg.ChatKitDomainKey != "domain_pk_test" {
		t.Errorf("unexpected domain key %q", cfg.ChatKitDomainKey)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.HTTPTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_DotEnvDoesNotOverrideEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "SESSION_BACKEND=redis\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("LOG_LEVEL", "warn")

	cfg := config.Load(path)

	if cfg.SessionBackend != "redis" {
		t.Errorf("expected .env to set redis backend, got %q", cfg.SessionBackend)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected env to win over .env, got %q", cfg.LogLevel)
	}
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	cfg := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Port != 8080 {
		t.Errorf("expected defaults when .env is missing, got port %d", cfg.Port)
	}
}

func TestLoad_NonPositiveDurationsUseDefaults(t *testing.T) {
	t.Setenv("SESSION_TTL", "0s")
	t.Setenv("HTTP_TIMEOUT", "-1s")

	cfg := config.Load("")

	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m session ttl, got %v", cfg.SessionTTL)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected 10s http timeout, got %v", cfg.HTTPTimeout)
	}
}
