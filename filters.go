package stache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ----------------------------- Filters --------------------------------------

// FilterFunc transforms a resolved value. Args are the literals written in
// the tag: string, int64, float64 or Ident.
type FilterFunc func(v any, args ...any) (any, error)

// FilterLookup is all the engine needs from a filter registry.
type FilterLookup interface {
	Lookup(name string) (FilterFunc, bool)
}

// Registry is a concurrency-safe set of named filters.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]FilterFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string]FilterFunc)}
}

// Register adds or replaces a filter.
func (r *Registry) Register(name string, fn FilterFunc) {
	r.mu.Lock()
	r.filters[name] = fn
	r.mu.Unlock()
}

// Lookup returns the filter registered under name.
func (r *Registry) Lookup(name string) (FilterFunc, bool) {
	r.mu.RLock()
	fn, ok := r.filters[name]
	r.mu.RUnlock()
	return fn, ok
}

// Names returns the registered filter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	r.mu.RLock()
	for name, fn := range r.filters {
		c.filters[name] = fn
	}
	r.mu.RUnlock()
	return c
}

// suggestFilter returns the registered name closest to name, if the lookup
// can list its names.
func suggestFilter(name string, filters FilterLookup) string {
	lister, ok := filters.(interface{ Names() []string })
	if !ok {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, lister.Names())
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// DefaultFilters returns a new registry holding the built-in filters.
func DefaultFilters() *Registry {
	r := NewRegistry()
	r.Register("upper", stringFilter(strings.ToUpper))
	r.Register("lower", stringFilter(strings.ToLower))
	r.Register("trim", stringFilter(fastTrim))
	r.Register("capitalize", stringFilter(capitalize))
	r.Register("title", stringFilter(title))
	r.Register("escape", stringFilter(htmlEscapeFast))
	r.Register("urlencode", stringFilter(url.QueryEscape))
	r.Register("truncate", truncateFilter)
	r.Register("default", defaultFilter)
	r.Register("join", joinFilter)
	r.Register("length", lengthFilter)
	r.Register("reverse", reverseFilter)
	r.Register("first", firstFilter)
	r.Register("last", lastFilter)
	r.Register("replace", replaceFilter)
	r.Register("json", jsonFilter)
	r.Register("prefix", func(v any, args ...any) (any, error) {
		return argString(args, 0, "") + toString(v), nil
	})
	r.Register("suffix", func(v any, args ...any) (any, error) {
		return toString(v) + argString(args, 0, ""), nil
	})
	return r
}

func stringFilter(fn func(string) string) FilterFunc {
	return func(v any, _ ...any) (any, error) { return fn(toString(v)), nil }
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func title(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevSpace := true
	for _, r := range s {
		if prevSpace {
			sb.WriteRune(unicode.ToUpper(r))
		} else {
			sb.WriteRune(r)
		}
		prevSpace = unicode.IsSpace(r)
	}
	return sb.String()
}

func truncateFilter(v any, args ...any) (any, error) {
	s := toString(v)
	n, ok := argInt(args, 0)
	if !ok {
		return nil, fmt.Errorf("truncate: length argument required")
	}
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s, nil
	}
	runes := []rune(s)
	return string(runes[:n]) + argString(args, 1, ""), nil
}

func defaultFilter(v any, args ...any) (any, error) {
	if classify(v, true) == sectionEmpty {
		if len(args) == 0 {
			return "", nil
		}
		return args[0], nil
	}
	return v, nil
}

func joinFilter(v any, args ...any) (any, error) {
	sep := argString(args, 0, ",")
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return toString(v), nil
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = toString(rv.Index(i).Interface())
	}
	return strings.Join(parts, sep), nil
}

func lengthFilter(v any, _ ...any) (any, error) {
	if s, ok := v.(string); ok {
		return int64(utf8.RuneCountInString(s)), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return int64(rv.Len()), nil
	}
	return int64(utf8.RuneCountInString(toString(v))), nil
}

func reverseFilter(v any, _ ...any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[len(out)-1-i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	runes := []rune(toString(v))
	slices.Reverse(runes)
	return string(runes), nil
}

func firstFilter(v any, _ ...any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return nil, nil
		}
		return rv.Index(0).Interface(), nil
	}
	r, size := utf8.DecodeRuneInString(toString(v))
	if size == 0 {
		return "", nil
	}
	return string(r), nil
}

func lastFilter(v any, _ ...any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return nil, nil
		}
		return rv.Index(rv.Len() - 1).Interface(), nil
	}
	r, size := utf8.DecodeLastRuneInString(toString(v))
	if size == 0 {
		return "", nil
	}
	return string(r), nil
}

func replaceFilter(v any, args ...any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("replace: expected 2 arguments, got %d", len(args))
	}
	return strings.ReplaceAll(toString(v), argString(args, 0, ""), argString(args, 1, "")), nil
}

func jsonFilter(v any, _ ...any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return string(b), nil
}

func argString(args []any, i int, def string) string {
	if i >= len(args) {
		return def
	}
	return toString(args[i])
}

func argInt(args []any, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch x := args[i].(type) {
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case int:
		return x, true
	}
	return 0, false
}
