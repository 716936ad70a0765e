package streampager

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gorm.io/gorm/logger"
)

// QueryCache memoizes fetched pages by the exact parameterized statement text
// and its bound values. It is unbounded unless a capacity is set, in which case
// the oldest entry is evicted first. Cached records are shared between
// callers and must not be mutated.
type QueryCache struct {
	mu       sync.Mutex
	entries  map[string][]Record
	order    []string
	capacity int
}

func NewQueryCache() *QueryCache {
	return &QueryCache{
		entries: make(map[string][]Record),
	}
}

// WithCapacity limits the number of cached statements. Zero means unbounded.
func (c *QueryCache) WithCapacity(capacity int) *QueryCache {
	if c == nil {
		c = NewQueryCache()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = max(capacity, 0)
	c.evictLocked()

	return c
}

// Get returns the records cached under key.
func (c *QueryCache) Get(key string) ([]Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, ok := c.entries[key]

	return records, ok
}

// Put caches records under key.
func (c *QueryCache) Put(key string, records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = records
	c.evictLocked()
}

// Len returns the number of cached statements.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Purge drops every entry.
func (c *QueryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	c.order = nil
}

func (c *QueryCache) evictLocked() {
	if c.capacity == 0 {
		return
	}

	for len(c.order) > c.capacity {
		delete(c.entries, c.order[0])
		c.order = slices.Delete(c.order, 0, 1)
	}
}

// CacheKey renders the key a bounded fetch is cached under. Every bound value
// is written with its type, so 1 and "1" never share an entry.
func CacheKey(q Query, limit, offset int) string {
	statement, args := q.ToSQL(limit, offset)

	var key strings.Builder
	key.WriteString(statement)
	for _, arg := range args {
		fmt.Fprintf(&key, " %T(%#v)", arg, arg)
	}

	return key.String()
}

// CachingSource wraps a Source and serves repeated bounded fetches from a
// QueryCache. A connection to the wrapped source is acquired lazily, on the
// first fetch that misses the cache. Row streaming is never cached.
type CachingSource struct {
	source Source
	cache  *QueryCache
}

func NewCachingSource(source Source, cache *QueryCache) *CachingSource {
	if cache == nil {
		cache = NewQueryCache()
	}

	return &CachingSource{
		source: source,
		cache:  cache,
	}
}

// Cache returns the injected cache.
func (s *CachingSource) Cache() *QueryCache {
	return s.cache
}

// Logger returns the logger of the wrapped source.
func (s *CachingSource) Logger() logger.Interface {
	return sourceLogger(s.source)
}

// Connect implements Source.
func (s *CachingSource) Connect(context.Context) (Conn, error) {
	if s == nil || s.source == nil {
		return nil, fmt.Errorf("caching source is not initialized")
	}

	return &cachingConn{source: s.source, cache: s.cache}, nil
}

type cachingConn struct {
	source Source
	cache  *QueryCache
	conn   Conn
}

func (c *cachingConn) acquire(ctx context.Context) (Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	conn, err := c.source.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}
	c.conn = conn

	return conn, nil
}

// Rows implements Conn.
func (c *cachingConn) Rows(ctx context.Context, q Query) (Rows, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	return conn.Rows(ctx, q)
}

// Fetch implements Conn.
func (c *cachingConn) Fetch(ctx context.Context, q Query, limit, offset int) ([]Record, error) {
	key := CacheKey(q, limit, offset)
	if records, ok := c.cache.Get(key); ok {
		return records, nil
	}

	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	records, err := conn.Fetch(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, records)

	return records, nil
}

// Close implements Conn.
func (c *cachingConn) Close() error {
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil

	return conn.Close()
}

var (
	_ Source = (*CachingSource)(nil)
	_ Conn   = (*cachingConn)(nil)
)
