package stache

import (
	"io"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"
)

// ----------------------------- Template compilation cache ----------------

// Cache memoizes parsed templates in a bounded LRU. Keys digest the
// delimiters, the trimming mode and the source, so one cache can serve
// engines configured differently.
type Cache struct {
	templates *lru.Cache[cacheKey, *Template]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheKey [blake2b.Size256]byte

// CacheStats is a snapshot of cache activity.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Len       int
}

// NewCache creates a cache holding at most size templates.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c := &Cache{}
	// NewWithEvict only fails for non-positive sizes.
	c.templates, _ = lru.NewWithEvict(size, func(cacheKey, *Template) {
		c.evictions.Add(1)
	})
	return c
}

// Get returns the parsed template for src, parsing it on a miss.
// Only the delimiter and trimming options are consulted.
func (c *Cache) Get(src string, opts ...Option) (*Template, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return c.load(src, o.delims, o.standalone, nil)
}

func (c *Cache) load(src string, d Delims, standalone bool, logger *slog.Logger) (*Template, error) {
	key := newCacheKey(src, d, standalone)
	if t, ok := c.templates.Get(key); ok {
		c.hits.Add(1)
		return t, nil
	}
	c.misses.Add(1)
	if logger != nil {
		logger.Debug("template cache miss", "bytes", len(src))
	}

	p := parser{src: src, delims: d, standalone: standalone}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	// Concurrent misses on the same key store equivalent trees.
	c.templates.Add(key, t)
	return t, nil
}

// Stats reports hits, misses, evictions and the current size. Templates
// dropped by Purge count as evictions.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Len:       c.templates.Len(),
	}
}

// Len returns the number of cached templates.
func (c *Cache) Len() int { return c.templates.Len() }

// Purge drops every cached template.
func (c *Cache) Purge() { c.templates.Purge() }

func newCacheKey(src string, d Delims, standalone bool) cacheKey {
	h, _ := blake2b.New256(nil)
	mode := byte('0')
	if standalone {
		mode = '1'
	}
	_, _ = io.WriteString(h, d.Left)
	_, _ = h.Write([]byte{0, mode, 0})
	_, _ = io.WriteString(h, d.Right)
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, src)

	var key cacheKey
	h.Sum(key[:0])
	return key
}
