package config

import (
	"os"
	"strconv"
	"time"
)

const (
	maxRateLimit    = 200
	minRateLimit    = 0
	minProbeTimeout = 100 * time.Millisecond
	maxProbeTimeout = 5 * time.Minute
	minProxyHops    = 1
	maxProxyHops    = 64
)

// Config holds 12-factor environment configuration used across binaries.
type Config struct {
	ProviderURL     string
	RateLimit       int
	Timeout         time.Duration
	HTTPRetries     int
	HTTPBackoffBase time.Duration
	MaxProxyHops    int
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func parseDurEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampDuration(v, min, max time.Duration) time.Duration {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Load reads environment variables and returns a Config with defaults applied.
func Load() Config {
	rateLimit := clampInt(parseIntEnv("RATE_LIMIT", 0), minRateLimit, maxRateLimit)
	timeout := clampDuration(parseDurEnv("CLASSIFY_TIMEOUT", 30*time.Second), minProbeTimeout, maxProbeTimeout)
	hops := clampInt(parseIntEnv("MAX_PROXY_HOPS", 16), minProxyHops, maxProxyHops)
	return Config{
		ProviderURL:     env("ETH_PROVIDER_URL", ""),
		RateLimit:       rateLimit,
		Timeout:         timeout,
		HTTPRetries:     parseIntEnv("HTTP_RETRIES", 2),
		HTTPBackoffBase: parseDurEnv("HTTP_BACKOFF_BASE", 100*time.Millisecond),
		MaxProxyHops:    hops,
	}
}
