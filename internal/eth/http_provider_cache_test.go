package eth

import (
	"testing"
	"time"
)

func TestCodeCacheEvictsAndExpires(t *testing.T) {
	cache := newCodeCache(2, 10*time.Millisecond)
	now := time.Now()
	cache.add("0xa1", "0x6001", now)
	cache.add("0xb2", "0x6002", now)
	if v, ok := cache.get("0xa1", now); !ok || v != "0x6001" {
		t.Fatalf("expected cached code for 0xa1, got ok=%v value=%q", ok, v)
	}
	cache.add("0xc3", "0x6003", now)
	if _, ok := cache.get("0xb2", now); ok {
		t.Fatalf("expected 0xb2 to be evicted when capacity exceeded")
	}
	later := now.Add(20 * time.Millisecond)
	if _, ok := cache.get("0xc3", later); ok {
		t.Fatalf("expected 0xc3 to expire after ttl")
	}
}

func TestCodeCacheUpdateRefreshes(t *testing.T) {
	cache := newCodeCache(2, time.Minute)
	now := time.Now()
	cache.add("0xa1", "0x6001", now)
	cache.add("0xa1", "0x6002", now)
	if v, ok := cache.get("0xa1", now); !ok || v != "0x6002" {
		t.Fatalf("expected updated value, got ok=%v value=%q", ok, v)
	}
}
