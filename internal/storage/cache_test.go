package storage

import (
	"testing"
	"time"
)

func TestLatestCacheRoundTripAndFlush(t *testing.T) {
	cache := NewLatestCache(time.Minute)

	if _, ok := cache.Get(); ok {
		t.Fatalf("expected empty cache")
	}

	cache.Set([]byte(`{"prices":[]}`))
	payload, ok := cache.Get()
	if !ok {
		t.Fatalf("expected cached payload")
	}
	if string(payload) != `{"prices":[]}` {
		t.Fatalf("unexpected payload: %s", payload)
	}

	cache.Flush()
	if _, ok := cache.Get(); ok {
		t.Fatalf("expected cache to be empty after flush")
	}
}

func TestLatestCacheNilReceiverIsSafe(t *testing.T) {
	var cache *LatestCache
	if _, ok := cache.Get(); ok {
		t.Fatalf("nil cache should miss")
	}
	cache.Set([]byte("x"))
	cache.Flush()
}
