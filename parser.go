package stache

import (
	"strings"
)

// ----------------------------- Parser ---------------------------------------

type parser struct {
	src        string
	delims     Delims
	standalone bool
}

// Compile parses src without consulting any cache.
func Compile(src string, opts ...Option) (*Template, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	p := parser{src: src, delims: o.delims, standalone: o.standalone}
	return p.parse()
}

func (p *parser) parse() (*Template, error) {
	tokens, err := Tokenize(p.src, p.delims)
	if err != nil {
		return nil, err
	}
	if p.standalone {
		trimStandalone(tokens)
	}

	root := &SectionNode{}
	open := make([]*SectionNode, 1, 8)
	open[0] = root
	for _, tok := range tokens {
		top := open[len(open)-1]
		switch tok.Kind {
		case TokenText:
			if tok.Text != "" {
				top.Children = append(top.Children, &TextNode{Text: tok.Text})
			}
		case TokenVariable:
			top.Children = append(top.Children, &VariableNode{
				Path:    tok.Path,
				Filters: tok.Filters,
				Escape:  tok.Escape,
				Tag:     tok.Text,
				Pos:     tok.Pos,
			})
		case TokenComment:
			top.Children = append(top.Children, &CommentNode{Text: tok.Text, Pos: tok.Pos})
		case TokenPartial:
			top.Children = append(top.Children, &PartialNode{Name: tok.Name, Pos: tok.Pos})
		case TokenSectionOpen:
			n := &SectionNode{
				Path:       tok.Path,
				Filters:    tok.Filters,
				Invert:     tok.Invert,
				Tag:        tok.Text,
				Pos:        tok.Pos,
				innerStart: tok.End,
			}
			top.Children = append(top.Children, n)
			open = append(open, n)
		case TokenSectionClose:
			line, col := position(p.src, tok.Pos)
			if len(open) == 1 {
				return nil, &StructuralError{Found: tok.Path.Raw, ClosePos: tok.Pos, Line: line, Col: col}
			}
			if top.Path.Raw != tok.Path.Raw {
				return nil, &StructuralError{
					Expected: top.Path.Raw,
					Found:    tok.Path.Raw,
					OpenPos:  top.Pos,
					ClosePos: tok.Pos,
					Line:     line,
					Col:      col,
				}
			}
			top.Raw = p.src[top.innerStart:tok.Pos]
			open = open[:len(open)-1]
		}
	}
	if len(open) > 1 {
		dangling := open[len(open)-1]
		line, col := position(p.src, dangling.Pos)
		return nil, &UnterminatedSectionError{Section: dangling.Path.Raw, Pos: dangling.Pos, Line: line, Col: col}
	}
	return &Template{source: p.src, delims: p.delims, nodes: root.Children}, nil
}

// trimStandalone removes the whole line around section and comment tags
// that have only whitespace beside them. Decisions are made against the
// untrimmed text so neighbouring standalone lines do not affect each other.
func trimStandalone(tokens []Token) {
	starts := make([]int, len(tokens))
	ends := make([]int, len(tokens))
	for i := range tokens {
		ends[i] = len(tokens[i].Text)
	}

	last := len(tokens) - 1
	for i, tok := range tokens {
		switch tok.Kind {
		case TokenSectionOpen, TokenSectionClose, TokenComment:
		default:
			continue
		}

		leftCut := -1
		if i > 0 {
			prev := tokens[i-1]
			if prev.Kind != TokenText {
				continue
			}
			nl := strings.LastIndexByte(prev.Text, '\n')
			if !isBlank(prev.Text[nl+1:]) || (nl == -1 && i-1 != 0) {
				continue
			}
			leftCut = nl + 1
		}

		rightCut := -1
		if i < last {
			next := tokens[i+1]
			if next.Kind != TokenText {
				continue
			}
			nl := strings.IndexByte(next.Text, '\n')
			switch {
			case nl >= 0 && isBlank(next.Text[:nl]):
				rightCut = nl + 1
			case nl == -1 && i+1 == last && isBlank(next.Text):
				rightCut = len(next.Text)
			default:
				continue
			}
		}

		if leftCut >= 0 {
			ends[i-1] = leftCut
		}
		if rightCut >= 0 {
			starts[i+1] = rightCut
		}
	}

	for i := range tokens {
		if tokens[i].Kind != TokenText {
			continue
		}
		if starts[i] >= ends[i] {
			tokens[i].Text = ""
			continue
		}
		tokens[i].Text = tokens[i].Text[starts[i]:ends[i]]
	}
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\r' {
			return false
		}
	}
	return true
}
