package storage

import (
	"testing"
	"time"
)

func TestPageCacheStoresAndExpiresPages(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenPageCache(dir+"/pages.db", 1*time.Second, 1*time.Second)
	if err != nil {
		t.Fatalf("OpenPageCache: %v", err)
	}
	defer cache.Close()

	content, found, err := cache.GetPage("https://example.com/bpc-157")
	if err != nil || found {
		t.Fatalf("expected cache miss, found=%v err=%v", found, err)
	}
	if content != "" {
		t.Fatalf("miss should return empty content, got %q", content)
	}

	if err := cache.PutPage("https://example.com/bpc-157", "# BPC-157 5mg\n$39.99"); err != nil {
		t.Fatalf("PutPage: %v", err)
	}

	content, found, err = cache.GetPage("https://example.com/bpc-157")
	if err != nil || !found {
		t.Fatalf("expected cache hit, found=%v err=%v", found, err)
	}
	if content != "# BPC-157 5mg\n$39.99" {
		t.Fatalf("unexpected cached content: %q", content)
	}

	// Fast-forward cleanup cadence and trigger expiry.
	cache.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	_, found, err = cache.GetPage("https://example.com/bpc-157")
	if err != nil {
		t.Fatalf("GetPage after expiry: %v", err)
	}
	if found {
		t.Fatalf("expected entry to expire and be removed")
	}
}

func TestPageCacheNilReceiverIsSafe(t *testing.T) {
	var cache *PageCache
	if _, found, err := cache.GetPage("x"); err != nil || found {
		t.Fatalf("nil cache GetPage: found=%v err=%v", found, err)
	}
	if err := cache.PutPage("x", "y"); err != nil {
		t.Fatalf("nil cache PutPage: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("nil cache Close: %v", err)
	}
}
