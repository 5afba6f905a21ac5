package stache

import (
	"io"
	"log/slog"
	"reflect"
)

// ----------------------------- Public API -----------------------------------

// Engine renders templates with a fixed configuration. It is safe for
// concurrent use; each render gets its own context stack.
type Engine struct {
	opts     options
	filters  FilterLookup
	partials PartialLoader
	cache    *Cache
	logger   *slog.Logger
}

// New creates an engine. Without options it uses the default filters,
// "{{" "}}" delimiters, no partials and a private template cache.
func New(opts ...Option) *Engine {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	e := &Engine{
		opts:     o,
		filters:  o.filters,
		partials: o.partials,
		cache:    o.cache,
		logger:   o.logger,
	}
	if e.filters == nil {
		e.filters = DefaultFilters()
	}
	if e.cache == nil {
		e.cache = NewCache(o.cacheSize)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

var defaultEngine = New()

// Render renders src against data using a default engine.
func Render(src string, data any) (string, error) {
	return defaultEngine.Render(src, data)
}

// Parse returns the cached parse of src, parsing it on first use.
func (e *Engine) Parse(src string) (*Template, error) {
	return e.parse(src, e.opts.delims)
}

func (e *Engine) parse(src string, d Delims) (*Template, error) {
	return e.cache.load(src, d, e.opts.standalone, e.logger)
}

// Execute renders a parsed template. Output is produced only when the whole
// render succeeds.
func (e *Engine) Execute(t *Template, data any) (string, error) {
	st := getState(e, data)
	defer putState(st)
	sb := getBuilder()
	defer putBuilder(sb)

	if err := st.walk(sb, t, t.nodes); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Render parses src (through the cache) and renders it against data.
func (e *Engine) Render(src string, data any) (string, error) {
	t, err := e.Parse(src)
	if err != nil {
		return "", err
	}
	return e.Execute(t, data)
}

// RenderTo renders src and writes the result to w. Nothing is written when
// rendering fails.
func (e *Engine) RenderTo(w io.Writer, src string, data any) error {
	out, err := e.Render(src, data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// Filters returns the filter lookup the engine renders with.
func (e *Engine) Filters() FilterLookup { return e.filters }

// Cache returns the engine's template cache.
func (e *Engine) Cache() *Cache { return e.cache }

// Precompute resolves the struct fields t references against dataType
// ahead of the first render.
func (e *Engine) Precompute(t *Template, dataType reflect.Type) {
	precomputeNodes(t.nodes, dataType)
}

func precomputeNodes(nodes []Node, typ reflect.Type) {
	if typ == nil {
		return
	}
	for _, n := range nodes {
		switch n := n.(type) {
		case *VariableNode:
			precomputePath(n.Path, typ)
		case *SectionNode:
			inner := precomputePath(n.Path, typ)
			if inner == nil {
				inner = typ
			}
			if k := inner.Kind(); k == reflect.Slice || k == reflect.Array {
				inner = inner.Elem()
			}
			precomputeNodes(n.Children, inner)
		}
	}
}

// precomputePath warms the field cache along p and returns the type the
// path ends on, or nil when it leaves struct territory.
func precomputePath(p Path, typ reflect.Type) reflect.Type {
	cur := typ
	for _, seg := range p.Segments {
		for cur != nil && cur.Kind() == reflect.Pointer {
			cur = cur.Elem()
		}
		if cur == nil || cur.Kind() != reflect.Struct {
			return nil
		}
		fi := defaultFieldCache.lookup(cur, seg)
		if !fi.found {
			return nil
		}
		cur = cur.FieldByIndex(fi.index).Type
	}
	return cur
}
