package stache

import (
	"log/slog"
)

// DefaultMaxDepth bounds nested lambda, partial and callable renders.
const DefaultMaxDepth = 100

// DefaultCacheSize is the template cache capacity used by New.
const DefaultCacheSize = 512

type Option func(*options)

type options struct {
	delims         Delims
	standalone     bool
	lenientFilters bool
	maxDepth       int
	cacheSize      int
	filters        FilterLookup
	partials       PartialLoader
	cache          *Cache
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		delims:    DefaultDelims,
		maxDepth:  DefaultMaxDepth,
		cacheSize: DefaultCacheSize,
	}
}

// WithFilters replaces the filter registry. Pass a clone of DefaultFilters
// to extend the built-ins.
func WithFilters(f FilterLookup) Option { return func(o *options) { o.filters = f } }

// WithPartials sets where {{>name}} tags are looked up.
func WithPartials(p PartialLoader) Option { return func(o *options) { o.partials = p } }

// WithDelims allows setting custom delimiters.
func WithDelims(left, right string) Option {
	return func(o *options) {
		o.delims = Delims{Left: left, Right: right}.orDefault()
	}
}

// WithStandaloneTrim removes lines that hold only a section or comment tag.
func WithStandaloneTrim(on bool) Option { return func(o *options) { o.standalone = on } }

// WithLenientFilters makes unknown filters pass values through with a
// warning instead of failing the render.
func WithLenientFilters(on bool) Option { return func(o *options) { o.lenientFilters = on } }

// WithMaxDepth bounds recursive lambda and partial rendering.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithCacheSize sets the capacity of the engine's own template cache.
// It has no effect together with WithCache.
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// WithCache shares an existing cache between engines.
func WithCache(c *Cache) Option { return func(o *options) { o.cache = c } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }
