package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iho/agencyledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.LoadFiles()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.JWTSecret != "" {
		t.Fatalf("expected JWT secret default to be empty, got %q", cfg.JWTSecret)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.OutstandingPolicy != "nonzero" {
		t.Fatalf("expected nonzero outstanding policy, got %s", cfg.OutstandingPolicy)
	}

	if cfg.TawjeehDefaultAmount.String() != "150" || cfg.InsuranceDefaultAmount.String() != "126" {
		t.Fatalf("unexpected statutory defaults: %s %s", cfg.TawjeehDefaultAmount, cfg.InsuranceDefaultAmount)
	}

	if cfg.OutboxRetention != 7*24*time.Hour || cfg.CurrencyCacheTTL != time.Hour {
		t.Fatalf("unexpected outbox retention %v or cache ttl %v", cfg.OutboxRetention, cfg.CurrencyCacheTTL)
	}

	if cfg.PaymentMaxRetries != 3 || cfg.PaymentRetryMaxElapsed != 10*time.Second {
		t.Fatalf("unexpected payment retry settings: %d %v", cfg.PaymentMaxRetries, cfg.PaymentRetryMaxElapsed)
	}

	if cfg.DatabaseMaxConnLifetime != time.Hour || cfg.PaymentConcurrency != 0 {
		t.Fatalf("unexpected pool settings: lifetime %v payment concurrency %d", cfg.DatabaseMaxConnLifetime, cfg.PaymentConcurrency)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("OUTSTANDING_POLICY", "positive")
	t.Setenv("TAWJEEH_DEFAULT_AMOUNT", "175.50")

	cfg, err := config.LoadFiles()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if cfg.JWTSecret != "top-secret" || !cfg.AuthEnabled {
		t.Fatalf("expected auth settings to be set, got secret=%s enabled=%v", cfg.JWTSecret, cfg.AuthEnabled)
	}

	if cfg.OutstandingPolicy != "positive" || cfg.TawjeehDefaultAmount.String() != "175.5" {
		t.Fatalf("expected balance overrides, got %s %s", cfg.OutstandingPolicy, cfg.TawjeehDefaultAmount)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OUTBOX_STREAM=agency:test\nHTTP_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	// the environment wins over the file
	t.Setenv("HTTP_PORT", "6060")
	t.Setenv("OUTBOX_STREAM", "")
	os.Unsetenv("OUTBOX_STREAM")

	cfg, err := config.LoadFiles(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.OutboxStream != "agency:test" {
		t.Fatalf("expected stream from file, got %s", cfg.OutboxStream)
	}
	if cfg.HTTPPort != "6060" {
		t.Fatalf("expected environment to win, got %s", cfg.HTTPPort)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")

	if _, err := config.LoadFiles(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
