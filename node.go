package stache

// ----------------------------- AST ------------------------------------------

// Node is one element of a parsed template. The set of implementations is
// closed: *TextNode, *VariableNode, *SectionNode, *CommentNode, *PartialNode.
type Node interface {
	isNode()
}

type TextNode struct{ Text string }

type VariableNode struct {
	Path    Path
	Filters []FilterSpec
	Escape  bool
	Tag     string // raw tag body, for error messages
	Pos     int
}

// SectionNode covers both {{#path}} and {{^path}} blocks. Raw holds the
// unrendered source between the open and close tags.
type SectionNode struct {
	Path     Path
	Filters  []FilterSpec
	Invert   bool
	Children []Node
	Raw      string
	Tag      string
	Pos      int

	innerStart int
}

type CommentNode struct {
	Text string
	Pos  int
}

type PartialNode struct {
	Name string
	Pos  int
}

func (*TextNode) isNode()     {}
func (*VariableNode) isNode() {}
func (*SectionNode) isNode()  {}
func (*CommentNode) isNode()  {}
func (*PartialNode) isNode()  {}

// Template is a parsed template. It is never modified after parsing and may
// be rendered concurrently.
type Template struct {
	source string
	delims Delims
	nodes  []Node
}

// Source returns the text the template was parsed from.
func (t *Template) Source() string { return t.source }

// Delims returns the delimiters the template was parsed with.
func (t *Template) Delims() Delims { return t.delims }

// Nodes returns the top-level nodes. The slice must not be modified.
func (t *Template) Nodes() []Node { return t.nodes }
