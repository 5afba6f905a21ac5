package stache

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name    string
	Email   string `json:"email_address"`
	Tags    []string
	Manager *profile
	hidden  string
}

type getterFunc func(string) (any, bool)

func (g getterFunc) Get(name string) (any, bool) { return g(name) }

func mustPath(t *testing.T, s string) Path {
	t.Helper()
	p, err := parsePath(s)
	require.NoError(t, err)
	return p
}

func newStack(frames ...any) *stack {
	st := &stack{}
	st.reset(frames[0])
	for _, f := range frames[1:] {
		st.push(f)
	}
	return st
}

func TestParsePath(t *testing.T) {
	p := mustPath(t, " user.address.city ")
	assert.Equal(t, []string{"user", "address", "city"}, p.Segments)
	assert.False(t, p.Implicit)
	assert.Equal(t, "user.address.city", p.String())

	for _, bad := range []string{"", "a.", ".a", "a b", "a..b", "a/b"} {
		_, err := parsePath(bad)
		assert.Error(t, err, "path %q", bad)
	}
}

func TestResolveValues(t *testing.T) {
	mgr := &profile{Name: "Grace"}
	data := map[string]any{
		"user": &profile{
			Name:    "Ada",
			Email:   "ada@example.com",
			Tags:    []string{"math", "engines"},
			Manager: mgr,
			hidden:  "secret",
		},
		"list":  []any{"zero", map[string]any{"k": "v"}},
		"typed": map[string]int{"n": 3},
		"ints":  map[int]string{7: "seven"},
		"dyn": getterFunc(func(name string) (any, bool) {
			if name == "greeting" {
				return "hello", true
			}
			return nil, false
		}),
		"nothing": nil,
	}
	st := newStack(data)

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"user.Name", "Ada", true},
		{"user.name", "Ada", true},
		{"user.email_address", "ada@example.com", true},
		{"user.Tags.1", "engines", true},
		{"user.Manager.Name", "Grace", true},
		{"user.Manager.Manager", nil, false},
		{"user.Manager.Manager.Name", nil, false},
		{"user.hidden", nil, false},
		{"list.0", "zero", true},
		{"list.1.k", "v", true},
		{"list.5", nil, false},
		{"typed.n", 3, true},
		{"ints.7", "seven", true},
		{"dyn.greeting", "hello", true},
		{"dyn.other", nil, false},
		{"nothing", nil, false},
		{"missing", nil, false},
		{"missing.deeper", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := resolve(mustPath(t, tt.path), st)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAnchorsInnermost(t *testing.T) {
	root := map[string]any{"x": "root", "a": map[string]any{"b": "outer"}, "only": "root-only"}
	inner := map[string]any{"x": "inner", "a": map[string]any{"c": "inner-c"}}
	st := newStack(root, inner)

	v, ok := resolve(mustPath(t, "x"), st)
	require.True(t, ok)
	assert.Equal(t, "inner", v)

	v, ok = resolve(mustPath(t, "only"), st)
	require.True(t, ok)
	assert.Equal(t, "root-only", v)

	// "a" anchors in the inner frame, so a.b is not found there and the
	// outer a.b is never consulted.
	_, ok = resolve(mustPath(t, "a.b"), st)
	assert.False(t, ok)
}

func TestResolveImplicit(t *testing.T) {
	st := newStack(map[string]any{"name": "root"}, map[string]any{"name": "item"})

	v, ok := resolve(mustPath(t, "."), st)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "item"}, v)

	v, ok = resolve(mustPath(t, "this.name"), st)
	require.True(t, ok)
	assert.Equal(t, "item", v)

	st = newStack(map[string]any{"name": "root"}, map[string]any{"other": 1})
	_, ok = resolve(mustPath(t, "this.name"), st)
	assert.False(t, ok, "this.name must not fall back to outer frames")
}

func TestStackRootIsPermanent(t *testing.T) {
	st := newStack("root")
	st.push("a")
	assert.Equal(t, 2, st.len())
	st.pop()
	st.pop()
	assert.Equal(t, 1, st.len())
	assert.Equal(t, "root", st.top())
}

func TestFieldCache(t *testing.T) {
	fc := newFieldCache()
	typ := reflect.TypeOf(profile{})

	fi := fc.lookup(typ, "email_address")
	require.True(t, fi.found)
	assert.Equal(t, []int{1}, fi.index)

	assert.False(t, fc.lookup(typ, "hidden").found)
	assert.Len(t, fc.cache, 2)

	// A second lookup is served from the cache.
	fc.lookup(typ, "email_address")
	assert.Len(t, fc.cache, 2)
}
