package stache

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ----------------------------- Paths ----------------------------------------

// Path is a parsed dotted variable reference. Implicit marks paths that
// start at the top frame ("." and "this", optionally followed by segments).
type Path struct {
	Raw      string
	Segments []string
	Implicit bool
}

func (p Path) String() string { return p.Raw }

func parsePath(s string) (Path, error) {
	s = fastTrim(s)
	if s == "" {
		return Path{}, syntaxErr("missing variable path")
	}
	if s == "." || s == "this" {
		return Path{Raw: s, Implicit: true}, nil
	}
	p := Path{Raw: s}
	rest := s
	if strings.HasPrefix(s, "this.") {
		p.Implicit = true
		rest = s[len("this."):]
	}
	p.Segments = strings.Split(rest, ".")
	for _, seg := range p.Segments {
		if !validSegment(seg) {
			return Path{}, syntaxErr("invalid path " + strconv.Quote(s))
		}
	}
	return p, nil
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if !isAlphaNum(c) && c != '_' && c != '-' && c != '$' && c != '@' {
			return false
		}
	}
	return true
}

// ----------------------------- Resolution -----------------------------------

// Getter lets a value expose named properties without reflection.
type Getter interface {
	Get(name string) (any, bool)
}

// resolve looks p up against the stack. The first segment anchors at the
// innermost frame that has it; later segments never fall back to outer frames.
func resolve(p Path, st *stack) (any, bool) {
	var cur any
	segs := p.Segments
	if p.Implicit {
		cur = st.top()
	} else {
		found := false
		for i := len(st.frames) - 1; i >= 0; i-- {
			if v, ok := lookup(st.frames[i], segs[0]); ok {
				cur, found = v, true
				break
			}
		}
		if !found {
			return nil, false
		}
		segs = segs[1:]
	}
	for _, seg := range segs {
		v, ok := lookup(cur, seg)
		if !ok {
			return nil, false
		}
		cur = v
	}
	if isNil(cur) {
		return nil, false
	}
	return cur, true
}

// lookup resolves a single segment as an own property of in.
func lookup(in any, name string) (any, bool) {
	switch x := in.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := x[name]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 || idx >= len(x) {
			return nil, false
		}
		return x[idx], true
	case Getter:
		return x.Get(name)
	}

	rv := reflect.ValueOf(in)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		fi := defaultFieldCache.lookup(rv.Type(), name)
		if !fi.found {
			return nil, false
		}
		fv, err := rv.FieldByIndexErr(fi.index)
		if err != nil {
			return nil, false
		}
		return fv.Interface(), true
	case reflect.Map:
		key, ok := mapKey(rv.Type().Key(), name)
		if !ok {
			return nil, false
		}
		mv := rv.MapIndex(key)
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	}
	return nil, false
}

func mapKey(kt reflect.Type, name string) (reflect.Value, bool) {
	switch kt.Kind() {
	case reflect.String:
		return reflect.ValueOf(name).Convert(kt), true
	case reflect.Interface:
		if reflect.TypeOf(name).Implements(kt) {
			return reflect.ValueOf(name), true
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(name, 10, 64)
		if err == nil {
			return reflect.ValueOf(n).Convert(kt), true
		}
	}
	return reflect.Value{}, false
}

// isNil reports whether v is nil or a typed nil pointer, map, func or
// interface. Nil slices are left alone: they classify as empty.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// ----------------------------- Field reflection cache -----------------------

type fieldCache struct {
	mu    sync.RWMutex
	cache map[fieldCacheKey]fieldInfo
}

type fieldCacheKey struct {
	typ  reflect.Type
	name string
}

type fieldInfo struct {
	index []int
	found bool
}

var defaultFieldCache = newFieldCache()

func newFieldCache() *fieldCache {
	return &fieldCache{
		cache: make(map[fieldCacheKey]fieldInfo),
	}
}

func (fc *fieldCache) lookup(typ reflect.Type, name string) fieldInfo {
	key := fieldCacheKey{typ: typ, name: name}
	fc.mu.RLock()
	fi, ok := fc.cache[key]
	fc.mu.RUnlock()
	if ok {
		return fi
	}
	fi = findField(typ, name)
	fc.mu.Lock()
	fc.cache[key] = fi
	fc.mu.Unlock()
	return fi
}

// findField matches an exported field by exact name, then by json tag,
// then case-insensitively.
func findField(typ reflect.Type, name string) fieldInfo {
	if f, ok := typ.FieldByName(name); ok && f.IsExported() {
		return fieldInfo{index: f.Index, found: true}
	}
	fields := reflect.VisibleFields(typ)
	for _, f := range fields {
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag != "" && tag == name {
			return fieldInfo{index: f.Index, found: true}
		}
	}
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && strings.EqualFold(f.Name, name) {
			return fieldInfo{index: f.Index, found: true}
		}
	}
	return fieldInfo{}
}
