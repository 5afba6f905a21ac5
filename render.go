package stache

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ----------------------------- Renderer -------------------------------------

// sectionKind is the single decision made for each section evaluation.
type sectionKind int

const (
	sectionEmpty sectionKind = iota
	sectionIterable
	sectionLambda
	sectionScope
	sectionTruthy
)

func (k sectionKind) String() string {
	switch k {
	case sectionEmpty:
		return "empty"
	case sectionIterable:
		return "iterable"
	case sectionLambda:
		return "lambda"
	case sectionScope:
		return "scope"
	default:
		return "truthy"
	}
}

// Lambda is a section value computed from the raw section text. The
// returned string is rendered as a template against the current context.
type Lambda func(text string, ctx *LambdaContext) (string, error)

// LambdaContext gives a lambda access to the context it was invoked in.
type LambdaContext struct {
	st *renderState
	t  *Template
}

// Lookup resolves a dotted path against the current context stack.
func (c *LambdaContext) Lookup(path string) (any, bool) {
	p, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	return resolve(p, &c.st.stack)
}

// Top returns the innermost frame.
func (c *LambdaContext) Top() any { return c.st.stack.top() }

// Render renders text as a template against the current context.
func (c *LambdaContext) Render(text string) (string, error) {
	return c.st.renderString(c.t, text, "lambda render")
}

func classify(v any, found bool) sectionKind {
	if !found || isNil(v) {
		return sectionEmpty
	}
	switch x := v.(type) {
	case bool:
		if x {
			return sectionTruthy
		}
		return sectionEmpty
	case string:
		if x == "" {
			return sectionEmpty
		}
		return sectionTruthy
	case []byte:
		if len(x) == 0 {
			return sectionEmpty
		}
		return sectionTruthy
	case Lambda, func(string, *LambdaContext) (string, error), func(string) string, func(string) (string, error):
		return sectionLambda
	case Getter:
		return sectionScope
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return sectionEmpty
		}
		return sectionIterable
	case reflect.Map, reflect.Struct:
		return sectionScope
	case reflect.Pointer:
		return classify(rv.Elem().Interface(), true)
	case reflect.Bool:
		if rv.Bool() {
			return sectionTruthy
		}
		return sectionEmpty
	case reflect.String:
		if rv.Len() == 0 {
			return sectionEmpty
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() == 0 {
			return sectionEmpty
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if rv.Uint() == 0 {
			return sectionEmpty
		}
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f == 0 || math.IsNaN(f) {
			return sectionEmpty
		}
	}
	return sectionTruthy
}

type renderState struct {
	engine *Engine
	stack  stack
	depth  int
}

func (st *renderState) walk(sb *strings.Builder, t *Template, nodes []Node) error {
	for _, n := range nodes {
		var err error
		switch n := n.(type) {
		case *TextNode:
			sb.WriteString(n.Text)
		case *VariableNode:
			err = st.variable(sb, t, n)
		case *SectionNode:
			err = st.section(sb, t, n)
		case *PartialNode:
			err = st.partial(sb, t, n)
		case *CommentNode:
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (st *renderState) variable(sb *strings.Builder, t *Template, n *VariableNode) error {
	v, found := resolve(n.Path, &st.stack)
	if found {
		switch fn := v.(type) {
		case func() string:
			s, err := st.renderString(t, fn(), "callable "+n.Path.Raw)
			if err != nil {
				return err
			}
			v = s
		case func() any:
			v = fn()
			found = !isNil(v)
		}
	}
	v, found, err := st.filter(v, found, n.Filters, n.Tag)
	if err != nil || !found {
		return err
	}
	s := toString(v)
	if n.Escape {
		s = htmlEscapeFast(s)
	}
	sb.WriteString(s)
	return nil
}

func (st *renderState) section(sb *strings.Builder, t *Template, n *SectionNode) error {
	v, found := resolve(n.Path, &st.stack)
	v, found, err := st.filter(v, found, n.Filters, n.Tag)
	if err != nil {
		return err
	}
	kind := classify(v, found)
	if n.Invert {
		if kind == sectionEmpty {
			return st.walk(sb, t, n.Children)
		}
		return nil
	}

	switch kind {
	case sectionEmpty:
		return nil
	case sectionIterable:
		return st.iterate(sb, t, n, v)
	case sectionLambda:
		return st.lambda(sb, t, n, v)
	case sectionScope:
		st.stack.push(v)
		err := st.walk(sb, t, n.Children)
		st.stack.pop()
		return err
	default:
		return st.walk(sb, t, n.Children)
	}
}

// iterate renders the children once per element, in order, each element
// in its own frame.
func (st *renderState) iterate(sb *strings.Builder, t *Template, n *SectionNode, v any) error {
	switch items := v.(type) {
	case []any:
		for _, item := range items {
			if err := st.withFrame(sb, t, n.Children, item); err != nil {
				return err
			}
		}
	case []map[string]any:
		for _, item := range items {
			if err := st.withFrame(sb, t, n.Children, item); err != nil {
				return err
			}
		}
	default:
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer {
			rv = rv.Elem()
		}
		for i := 0; i < rv.Len(); i++ {
			if err := st.withFrame(sb, t, n.Children, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *renderState) withFrame(sb *strings.Builder, t *Template, nodes []Node, frame any) error {
	st.stack.push(frame)
	err := st.walk(sb, t, nodes)
	st.stack.pop()
	return err
}

func (st *renderState) lambda(sb *strings.Builder, t *Template, n *SectionNode, v any) error {
	var (
		out string
		err error
	)
	switch fn := v.(type) {
	case Lambda:
		out, err = fn(n.Raw, &LambdaContext{st: st, t: t})
	case func(string, *LambdaContext) (string, error):
		out, err = fn(n.Raw, &LambdaContext{st: st, t: t})
	case func(string) string:
		out = fn(n.Raw)
	case func(string) (string, error):
		out, err = fn(n.Raw)
	}
	if err != nil {
		return fmt.Errorf("lambda section %q: %w", n.Path.Raw, err)
	}
	return st.fragment(sb, t, out, "lambda "+n.Path.Raw)
}

func (st *renderState) partial(sb *strings.Builder, t *Template, n *PartialNode) error {
	var (
		src string
		ok  bool
	)
	if st.engine.partials != nil {
		src, ok = st.engine.partials.Partial(n.Name)
	}
	if !ok {
		st.engine.logger.Debug("partial not found", "name", n.Name, "pos", n.Pos)
		return nil
	}
	return st.fragment(sb, t, src, "partial "+n.Name)
}

// fragment parses src with the delimiters of t and renders it one level
// deeper against the current stack.
func (st *renderState) fragment(sb *strings.Builder, t *Template, src, via string) error {
	limit := st.engine.opts.maxDepth
	if st.depth >= limit {
		return &RecursionLimitError{Limit: limit, Via: via}
	}
	ft, err := st.engine.parse(src, t.delims)
	if err != nil {
		return fmt.Errorf("%s: %w", via, err)
	}
	st.depth++
	err = st.walk(sb, ft, ft.nodes)
	st.depth--
	return err
}

func (st *renderState) renderString(t *Template, src, via string) (string, error) {
	sb := getBuilder()
	defer putBuilder(sb)
	if err := st.fragment(sb, t, src, via); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// filter runs the declared filters left to right. Filter names are checked
// even for missing values, which otherwise bypass the pipeline.
func (st *renderState) filter(v any, found bool, specs []FilterSpec, tag string) (any, bool, error) {
	for _, spec := range specs {
		var (
			fn FilterFunc
			ok bool
		)
		if st.engine.filters != nil {
			fn, ok = st.engine.filters.Lookup(spec.Name)
		}
		if !ok {
			if st.engine.opts.lenientFilters {
				st.engine.logger.Warn("unknown filter, passing value through", "filter", spec.Name, "tag", tag)
				continue
			}
			return nil, false, &FilterNotFoundError{
				Name:       spec.Name,
				Tag:        tag,
				Suggestion: suggestFilter(spec.Name, st.engine.filters),
			}
		}
		if !found {
			continue
		}
		out, err := fn(v, spec.Args...)
		if err != nil {
			return nil, false, fmt.Errorf("filter %q in tag %q: %w", spec.Name, tag, err)
		}
		v = out
		found = !isNil(v)
	}
	return v, found, nil
}
