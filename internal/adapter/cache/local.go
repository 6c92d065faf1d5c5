package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/ports"
)

// DefaultMaxEntries bounds the in-memory cache when no limit is configured.
const DefaultMaxEntries = 256

type localEntry struct {
	value     string
	expiresAt time.Time
}

func (e localEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// LocalCache is a size-bounded in-process LRU. The server uses it for
// synthesized speech when Redis is not configured or unreachable.
//
// The LRU expires every entry ttl after it was written; a shorter expiration
// passed to Set is checked on read.
type LocalCache struct {
	lru *expirable.LRU[string, localEntry]
	now func() time.Time
	log *zap.Logger
}

// NewLocalCache holds at most maxEntries values for at most ttl each. A zero
// ttl leaves expiry to the per-entry expiration.
func NewLocalCache(maxEntries int, ttl time.Duration, log *zap.Logger) ports.Cache {
	c := newLocalCache(maxEntries, ttl, log)

	log.Info("Local in-memory cache initialized",
		zap.Int("max_entries", maxEntries),
		zap.Duration("ttl", ttl),
	)
	return c
}

func newLocalCache(maxEntries int, ttl time.Duration, log *zap.Logger) *LocalCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	onEvict := func(key string, _ localEntry) {
		log.Debug("Evicting cache entry", zap.String("key", key))
	}
	return &LocalCache{
		lru: expirable.NewLRU[string, localEntry](maxEntries, onEvict, ttl),
		now: time.Now,
		log: log,
	}
}

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMiss, key)
	}
	if entry.expired(c.now()) {
		c.lru.Remove(key)
		return "", fmt.Errorf("%w: expired %s", ErrMiss, key)
	}
	return entry.value, nil
}

// Set stores strings and byte slices as-is and anything else as JSON. A
// zero expiration keeps the entry until it is evicted or the cache ttl runs
// out.
func (c *LocalCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	var encoded string
	switch v := value.(type) {
	case string:
		encoded = v
	case []byte:
		encoded = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		encoded = string(data)
	}

	entry := localEntry{value: encoded}
	if expiration > 0 {
		entry.expiresAt = c.now().Add(expiration)
	}
	c.lru.Add(key, entry)
	return nil
}

func (c *LocalCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of stored entries. Entries past a per-entry
// expiration count until they are read.
func (c *LocalCache) Len() int {
	return c.lru.Len()
}

func (c *LocalCache) Ping() error {
	return nil
}

// Close drops every entry.
func (c *LocalCache) Close() error {
	c.lru.Purge()
	return nil
}
