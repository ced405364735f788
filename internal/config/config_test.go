package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "AUTH_SECRET", "REDIS_DB", "ORDER_LOCK_TTL_SECONDS", "ORDER_LOCK_WAIT_SECONDS",
		"ORDER_CACHE_TTL_SECONDS", "ORDER_ALLOW_EMPTY_ITEMS", "ORDER_STRICT_TRANSITIONS", "REQUEST_TIMEOUT_SECONDS",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_TRACES_SAMPLE_RATE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Address())
	}
	if cfg.OrderLockTTL != 15*time.Second || cfg.OrderLockWait != 5*time.Second || cfg.OrderCacheTTL != time.Minute {
		t.Fatalf("unexpected lock/cache defaults: %+v", cfg)
	}
	if !cfg.OrderAllowEmptyItems || cfg.OrderStrictTransitions {
		t.Fatalf("unexpected order flags: allow_empty=%v strict=%v", cfg.OrderAllowEmptyItems, cfg.OrderStrictTransitions)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("expected 10s request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.OTLPEndpoint != "" || cfg.OTLPInsecure || cfg.TraceSampleRate != 1 {
		t.Fatalf("unexpected tracing defaults: endpoint=%q insecure=%v rate=%v", cfg.OTLPEndpoint, cfg.OTLPInsecure, cfg.TraceSampleRate)
	}
}

func TestLoadTracingSettings(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_TRACES_SAMPLE_RATE", "0.25")

	cfg := Load()
	if cfg.OTLPEndpoint != "collector:4317" || !cfg.OTLPInsecure || cfg.TraceSampleRate != 0.25 {
		t.Fatalf("unexpected tracing config: %+v", cfg)
	}

	t.Setenv("OTEL_TRACES_SAMPLE_RATE", "1.5")
	if rate := Load().TraceSampleRate; rate != 1 {
		t.Fatalf("expected out-of-range rate to fall back to 1, got %v", rate)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "-1")
	t.Setenv("ORDER_LOCK_TTL_SECONDS", "soon")
	t.Setenv("ORDER_CACHE_TTL_SECONDS", "0")
	t.Setenv("ORDER_ALLOW_EMPTY_ITEMS", "maybe")
	t.Setenv("ORDER_STRICT_TRANSITIONS", "true")

	cfg := Load()
	if cfg.RedisDB != 0 {
		t.Fatalf("expected redis db 0, got %d", cfg.RedisDB)
	}
	if cfg.OrderLockTTL != 15*time.Second {
		t.Fatalf("expected lock ttl fallback, got %s", cfg.OrderLockTTL)
	}
	if cfg.OrderCacheTTL != time.Minute {
		t.Fatalf("expected cache ttl fallback, got %s", cfg.OrderCacheTTL)
	}
	if !cfg.OrderAllowEmptyItems {
		t.Fatalf("expected allow-empty fallback true")
	}
	if !cfg.OrderStrictTransitions {
		t.Fatalf("expected strict transitions enabled")
	}
}
