package storage

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const latestPricesKey = "latest-prices"

// LatestCache memoizes the rendered latest-prices payload served by the read
// endpoint. The refresh pipeline flushes it after every run so readers see
// new observations immediately, mirroring the page revalidation the UI host
// used to perform.
type LatestCache struct {
	c   *gocache.Cache
	ttl time.Duration
}

// NewLatestCache builds a cache whose entries expire after ttl even without
// an explicit flush.
func NewLatestCache(ttl time.Duration) *LatestCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LatestCache{
		c:   gocache.New(ttl, 2*ttl),
		ttl: ttl,
	}
}

// Get returns the cached payload, if present and unexpired.
func (l *LatestCache) Get() ([]byte, bool) {
	if l == nil {
		return nil, false
	}
	v, ok := l.c.Get(latestPricesKey)
	if !ok {
		return nil, false
	}
	payload, ok := v.([]byte)
	return payload, ok
}

// Set stores the rendered payload.
func (l *LatestCache) Set(payload []byte) {
	if l == nil {
		return
	}
	l.c.Set(latestPricesKey, payload, l.ttl)
}

// Flush drops all cached payloads. Called after every refresh run.
func (l *LatestCache) Flush() {
	if l == nil {
		return
	}
	l.c.Flush()
}
