package stache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileTree(t *testing.T) {
	tpl, err := Compile("Hi {{name}}{{#items}}<{{.}}>{{/items}}{{! c }}{{> foot}}")
	require.NoError(t, err)

	nodes := tpl.Nodes()
	require.Len(t, nodes, 5)
	assert.IsType(t, &TextNode{}, nodes[0])
	assert.IsType(t, &VariableNode{}, nodes[1])
	assert.IsType(t, &SectionNode{}, nodes[2])
	assert.IsType(t, &CommentNode{}, nodes[3])
	assert.IsType(t, &PartialNode{}, nodes[4])

	sec := nodes[2].(*SectionNode)
	assert.Equal(t, "items", sec.Path.Raw)
	assert.Equal(t, "<{{.}}>", sec.Raw)
	require.Len(t, sec.Children, 3)
	assert.Equal(t, "<", sec.Children[0].(*TextNode).Text)

	assert.Equal(t, "foot", nodes[4].(*PartialNode).Name)
	assert.Equal(t, DefaultDelims, tpl.Delims())
}

func TestCompileNestedRaw(t *testing.T) {
	src := "{{#a}}x{{#b}}y{{/b}}z{{/a}}"
	tpl, err := Compile(src)
	require.NoError(t, err)
	a := tpl.Nodes()[0].(*SectionNode)
	assert.Equal(t, "x{{#b}}y{{/b}}z", a.Raw)
	b := a.Children[1].(*SectionNode)
	assert.Equal(t, "y", b.Raw)
	assert.Equal(t, src, tpl.Source())
}

func TestCompileStructuralErrors(t *testing.T) {
	t.Run("unterminated section", func(t *testing.T) {
		_, err := Compile("<ul>{{#items}}<li>{{name}}</li>")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStructure)
		var ue *UnterminatedSectionError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, "items", ue.Section)
		assert.Equal(t, 4, ue.Pos)
	})

	t.Run("innermost dangling section is reported", func(t *testing.T) {
		_, err := Compile("{{#a}}{{#b}}")
		var ue *UnterminatedSectionError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "b", ue.Section)
	})

	t.Run("mismatched close", func(t *testing.T) {
		_, err := Compile("{{#a}}{{#b}}{{/a}}{{/b}}")
		var se *StructuralError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "b", se.Expected)
		assert.Equal(t, "a", se.Found)
		assert.Equal(t, 6, se.OpenPos)
		assert.Equal(t, 12, se.ClosePos)
		assert.Contains(t, se.Error(), "expected {{/b}}")
	})

	t.Run("close without open", func(t *testing.T) {
		_, err := Compile("text{{/a}}")
		var se *StructuralError
		require.ErrorAs(t, err, &se)
		assert.Empty(t, se.Expected)
		assert.Contains(t, se.Error(), "no open section")
	})

	t.Run("syntax errors pass through", func(t *testing.T) {
		_, err := Compile("{{#a}}{{b")
		assert.ErrorIs(t, err, ErrSyntax)
		assert.NotErrorIs(t, err, ErrStructure)
	})
}

func TestStandaloneTrim(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "section lines removed",
			src:  "<ul>\n  {{#items}}\n  <li>\n  {{/items}}\n</ul>\n",
			want: []string{"<ul>\n", "  <li>\n", "</ul>\n"},
		},
		{
			name: "comment line removed",
			src:  "a\n{{! note }}\nb",
			want: []string{"a\n", "b"},
		},
		{
			name: "inline tag kept",
			src:  "a {{#x}}b{{/x}} c\n",
			want: []string{"a ", "b", " c\n"},
		},
		{
			name: "tag at start of template",
			src:  "{{#x}}\nbody\n{{/x}}\n",
			want: []string{"body\n"},
		},
		{
			name: "tag at end of template",
			src:  "body\n  {{/x}}",
			want: []string{"body\n"},
		},
		{
			name: "crlf line endings",
			src:  "a\r\n{{#x}}\r\nb\r\n",
			want: []string{"a\r\n", "b\r\n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.src, DefaultDelims)
			require.NoError(t, err)
			trimStandalone(tokens)

			var got []string
			for _, tok := range tokens {
				if tok.Kind == TokenText && tok.Text != "" {
					got = append(got, tok.Text)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStandaloneTrimLeavesVariablesAlone(t *testing.T) {
	tokens, err := Tokenize("a\n{{name}}\nb", DefaultDelims)
	require.NoError(t, err)
	trimStandalone(tokens)
	assert.Equal(t, "a\n", tokens[0].Text)
	assert.Equal(t, "\nb", tokens[2].Text)
}

func TestCompileWithOptions(t *testing.T) {
	tpl, err := Compile("[% #a %]\nx\n[% /a %]\n", WithDelims("[%", "%]"), WithStandaloneTrim(true))
	require.NoError(t, err)
	sec := tpl.Nodes()[0].(*SectionNode)
	require.Len(t, sec.Children, 1)
	assert.Equal(t, "x\n", sec.Children[0].(*TextNode).Text)
	assert.Equal(t, Delims{Left: "[%", Right: "%]"}, tpl.Delims())
}
