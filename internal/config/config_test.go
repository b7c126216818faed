package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ETH_PROVIDER_URL", "RATE_LIMIT", "CLASSIFY_TIMEOUT",
		"HTTP_RETRIES", "HTTP_BACKOFF_BASE", "MAX_PROXY_HOPS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	if cfg.ProviderURL != "" {
		t.Errorf("ProviderURL default: got %q", cfg.ProviderURL)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit default: got %d", cfg.RateLimit)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout default: got %v", cfg.Timeout)
	}
	if cfg.HTTPRetries != 2 {
		t.Errorf("HTTPRetries default: got %d", cfg.HTTPRetries)
	}
	if cfg.HTTPBackoffBase != 100*time.Millisecond {
		t.Errorf("HTTPBackoffBase default: got %v", cfg.HTTPBackoffBase)
	}
	if cfg.MaxProxyHops != 16 {
		t.Errorf("MaxProxyHops default: got %d", cfg.MaxProxyHops)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ETH_PROVIDER_URL", "http://localhost:8545")
	t.Setenv("RATE_LIMIT", "25")
	t.Setenv("CLASSIFY_TIMEOUT", "5s")
	t.Setenv("HTTP_RETRIES", "4")
	t.Setenv("HTTP_BACKOFF_BASE", "250ms")
	t.Setenv("MAX_PROXY_HOPS", "4")
	cfg := Load()
	if cfg.ProviderURL != "http://localhost:8545" || cfg.RateLimit != 25 ||
		cfg.Timeout != 5*time.Second || cfg.HTTPRetries != 4 ||
		cfg.HTTPBackoffBase != 250*time.Millisecond || cfg.MaxProxyHops != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_Clamps(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT", "100000")
	t.Setenv("CLASSIFY_TIMEOUT", "1ms")
	t.Setenv("MAX_PROXY_HOPS", "0")
	cfg := Load()
	if cfg.RateLimit != maxRateLimit {
		t.Errorf("RateLimit clamp: got %d", cfg.RateLimit)
	}
	if cfg.Timeout != minProbeTimeout {
		t.Errorf("Timeout clamp: got %v", cfg.Timeout)
	}
	if cfg.MaxProxyHops != minProxyHops {
		t.Errorf("MaxProxyHops clamp: got %d", cfg.MaxProxyHops)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT", "lots")
	t.Setenv("CLASSIFY_TIMEOUT", "soon")
	t.Setenv("HTTP_RETRIES", "many")
	cfg := Load()
	if cfg.RateLimit != 0 || cfg.Timeout != 30*time.Second || cfg.HTTPRetries != 2 {
		t.Fatalf("unexpected fallback config: %+v", cfg)
	}
}

func TestClampHelpers(t *testing.T) {
	if clampInt(5, 0, 3) != 3 || clampInt(-1, 0, 3) != 0 || clampInt(2, 0, 3) != 2 {
		t.Fatal("clampInt misbehaves")
	}
	if clampDuration(time.Hour, 0, time.Minute) != time.Minute {
		t.Fatal("clampDuration misbehaves")
	}
}
