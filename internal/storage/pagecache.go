package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	pageBucket       = "pages"
	expiryValueBytes = 8
)

// PageCache is an optional BoltDB-backed cache of scraped page content keyed
// by URL. A hit lets the fetcher skip the scrape backend entirely for pages
// revisited within the TTL. Values are stored as an 8-byte big-endian expiry
// prefix followed by the raw content.
type PageCache struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	pageTTL         time.Duration
	cleanupInterval time.Duration
}

const (
	defaultPageTTL         = 6 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// OpenPageCache initializes a BoltDB-backed page cache at path.
func OpenPageCache(path string, ttl, cleanupInterval time.Duration) (*PageCache, error) {
	if ttl <= 0 {
		ttl = defaultPageTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create page cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open page cache db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(pageBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init page bucket: %w", err)
	}

	cache := &PageCache{
		db:              db,
		pageTTL:         ttl,
		cleanupInterval: cleanupInterval,
	}
	cache.lastCleanup.Store(time.Now().Unix())
	return cache, nil
}

// Close closes the underlying database.
func (p *PageCache) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// GetPage returns cached content for the URL, if present and unexpired.
func (p *PageCache) GetPage(url string) (string, bool, error) {
	if p == nil || p.db == nil {
		return "", false, nil
	}

	if err := p.maybeCleanupExpired(time.Now()); err != nil {
		return "", false, err
	}

	var content string
	var found bool
	err := p.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pageBucket))
		if bucket == nil {
			return fmt.Errorf("page bucket missing")
		}

		key := []byte(url)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		expiry, body, ok := decodePageValue(value)
		if !ok || !expiry.After(time.Now()) {
			return bucket.Delete(key)
		}

		content = string(body)
		found = true
		return nil
	})
	return content, found, err
}

// PutPage stores page content for the URL with the configured TTL.
func (p *PageCache) PutPage(url, content string) error {
	if p == nil || p.db == nil {
		return nil
	}

	now := time.Now()
	if err := p.maybeCleanupExpired(now); err != nil {
		return err
	}

	return p.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pageBucket))
		if bucket == nil {
			return fmt.Errorf("page bucket missing")
		}
		value := make([]byte, expiryValueBytes+len(content))
		binary.BigEndian.PutUint64(value, uint64(now.Add(p.pageTTL).Unix()))
		copy(value[expiryValueBytes:], content)
		return bucket.Put([]byte(url), value)
	})
}

// maybeCleanupExpired removes expired pages on a fixed cadence to avoid
// unbounded growth.
func (p *PageCache) maybeCleanupExpired(now time.Time) error {
	if p == nil || p.db == nil {
		return nil
	}

	last := time.Unix(p.lastCleanup.Load(), 0)
	if now.Sub(last) < p.cleanupInterval {
		return nil
	}

	p.cleanupMu.Lock()
	defer p.cleanupMu.Unlock()

	last = time.Unix(p.lastCleanup.Load(), 0)
	if now.Sub(last) < p.cleanupInterval {
		return nil
	}

	err := p.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pageBucket))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, _, ok := decodePageValue(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		p.lastCleanup.Store(now.Unix())
	}
	return err
}

// decodePageValue splits a stored value into its expiry and content parts.
func decodePageValue(value []byte) (time.Time, []byte, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, nil, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, nil, false
	}
	return time.Unix(unix, 0), value[expiryValueBytes:], true
}
