// Package cache memoizes file content for a short time. Records are keyed by
// resource identity, expire after a TTL and are evicted least-recently-used
// once the entry bound is exceeded. Cached content is never assumed durable.
package cache

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// DefaultTTL keeps records for a few minutes.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxEntries bounds the number of records.
	DefaultMaxEntries = 256
)

// Source describes where cached content came from.
type Source struct {
	Path     string
	Size     int64
	MimeType string
	ModTime  time.Time
}

// Record is an immutable cached read.
type Record struct {
	Content  string
	Source   Source
	CachedAt time.Time
}

func (r Record) valid() bool {
	return r.Content != "" && !r.CachedAt.IsZero()
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the default record lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the number of records.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock injects the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for evictions.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger
	records    *lru.Cache[string, Record]
}

// New constructs a Cache with defaults applied.
func New(options ...Option) *Cache {
	c := &Cache{
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}

	records, err := lru.NewWithEvict[string, Record](c.maxEntries, func(key string, _ Record) {
		c.logger.Debug("cache evicted", zap.String("key", key))
	})
	if err != nil {
		// maxEntries is always positive here.
		panic(err)
	}
	c.records = records
	return c
}

// TTL returns the default lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a fresh record using the default TTL.
func (c *Cache) Get(key string) (Record, bool) {
	return c.GetFresh(key, c.ttl)
}

// GetFresh returns the record when it is younger than ttl. A non-positive ttl
// falls back to the default. Expired, empty or invalid records are dropped and
// reported as a miss.
func (c *Cache) GetFresh(key string, ttl time.Duration) (Record, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Record{}, false
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	record, ok := c.records.Get(key)
	if !ok {
		return Record{}, false
	}
	if !record.valid() {
		c.records.Remove(key)
		return Record{}, false
	}
	if c.now().Sub(record.CachedAt) > ttl {
		c.records.Remove(key)
		return Record{}, false
	}
	return record, true
}

// Put stores content under key. Empty keys or content are not cached.
func (c *Cache) Put(key string, content []byte, source Source) bool {
	key = strings.TrimSpace(key)
	if key == "" || len(content) == 0 {
		return false
	}
	c.records.Add(key, Record{
		Content:  string(content),
		Source:   source,
		CachedAt: c.now(),
	})
	return true
}

// Remove drops a record.
func (c *Cache) Remove(key string) bool {
	return c.records.Remove(key)
}

// Clear drops every record.
func (c *Cache) Clear() {
	c.records.Purge()
}

// Len returns the number of stored records, including stale ones not yet
// observed.
func (c *Cache) Len() int {
	return c.records.Len()
}
