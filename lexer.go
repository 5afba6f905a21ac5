package stache

import (
	"io"
	"iter"
	"strconv"
	"strings"
)

// Delims is the pair of strings that bound a tag.
type Delims struct {
	Left  string
	Right string
}

// DefaultDelims are the mustache braces.
var DefaultDelims = Delims{Left: "{{", Right: "}}"}

func (d Delims) orDefault() Delims {
	if d.Left == "" || d.Right == "" {
		return DefaultDelims
	}
	return d
}

// TokenKind identifies the variant of a Token.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenVariable
	TokenSectionOpen
	TokenSectionClose
	TokenComment
	TokenPartial
)

func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "text"
	case TokenVariable:
		return "variable"
	case TokenSectionOpen:
		return "section-open"
	case TokenSectionClose:
		return "section-close"
	case TokenComment:
		return "comment"
	case TokenPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Token is one lexical unit of a template. Pos is the offset of the first
// byte (the open delimiter for tags) and End the offset just past the last.
type Token struct {
	Kind    TokenKind
	Pos     int
	End     int
	Text    string // verbatim text, or the raw tag body
	Path    Path
	Filters []FilterSpec
	Escape  bool
	Invert  bool
	Name    string // partial name
}

// Ident is a bare identifier passed as a filter argument.
type Ident string

// FilterSpec is a filter invocation as written in a tag.
type FilterSpec struct {
	Name string
	Args []any
}

// Lexer scans template source into tokens on demand.
type Lexer struct {
	src    string
	delims Delims
	pos    int
	err    error
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src string, d Delims) *Lexer {
	return &Lexer{src: src, delims: d.orDefault()}
}

// Reset rewinds the lexer to the start of its input.
func (l *Lexer) Reset() {
	l.pos = 0
	l.err = nil
}

// Next returns the next token, or io.EOF once the input is exhausted.
// After a syntax error every further call returns the same error.
func (l *Lexer) Next() (Token, error) {
	if l.err != nil {
		return Token{}, l.err
	}
	if l.pos >= len(l.src) {
		return Token{}, io.EOF
	}
	start := strings.Index(l.src[l.pos:], l.delims.Left)
	if start == -1 {
		tok := Token{Kind: TokenText, Pos: l.pos, End: len(l.src), Text: l.src[l.pos:]}
		l.pos = len(l.src)
		return tok, nil
	}
	if start > 0 {
		tok := Token{Kind: TokenText, Pos: l.pos, End: l.pos + start, Text: l.src[l.pos : l.pos+start]}
		l.pos += start
		return tok, nil
	}
	tok, err := l.tag()
	if err != nil {
		l.err = err
		return Token{}, err
	}
	return tok, nil
}

func (l *Lexer) tag() (Token, error) {
	open := l.pos
	bodyStart := open + len(l.delims.Left)
	closer := l.delims.Right
	triple := strings.HasPrefix(l.src[bodyStart:], "{")
	if triple {
		bodyStart++
		closer = "}" + l.delims.Right
	}
	end := strings.Index(l.src[bodyStart:], closer)
	if end == -1 {
		if triple {
			return Token{}, newParseError(l.src, open, "unmatched triple brace, missing %q", closer)
		}
		return Token{}, newParseError(l.src, open, "unclosed tag, missing %q", closer)
	}
	body := l.src[bodyStart : bodyStart+end]
	l.pos = bodyStart + end + len(closer)

	tok := Token{Pos: open, End: l.pos, Text: body}
	expr := fastTrim(body)
	if triple {
		tok.Kind = TokenVariable
		return l.expression(tok, expr)
	}
	if expr == "" {
		return Token{}, newParseError(l.src, open, "empty tag")
	}

	switch expr[0] {
	case '!':
		tok.Kind = TokenComment
		return tok, nil
	case '#', '^':
		tok.Kind = TokenSectionOpen
		tok.Invert = expr[0] == '^'
		return l.expression(tok, fastTrim(expr[1:]))
	case '/':
		tok.Kind = TokenSectionClose
		name := fastTrim(expr[1:])
		if strings.ContainsAny(name, "|(") {
			return Token{}, newParseError(l.src, open, "filters are not allowed on close tag %q", name)
		}
		p, err := parsePath(name)
		if err != nil {
			return Token{}, newParseError(l.src, open, "%v", err)
		}
		tok.Path = p
		return tok, nil
	case '&':
		tok.Kind = TokenVariable
		return l.expression(tok, fastTrim(expr[1:]))
	case '>':
		tok.Kind = TokenPartial
		name := fastTrim(expr[1:])
		if name == "" || strings.ContainsAny(name, " \t\r\n|") {
			return Token{}, newParseError(l.src, open, "invalid partial name %q", name)
		}
		tok.Name = name
		return tok, nil
	default:
		tok.Kind = TokenVariable
		tok.Escape = true
		return l.expression(tok, expr)
	}
}

// expression fills Path and Filters from a tag body of the form
// path|filter|filter(arg, ...).
func (l *Lexer) expression(tok Token, expr string) (Token, error) {
	parts, err := splitTopLevel(expr, '|')
	if err != nil {
		return Token{}, newParseError(l.src, tok.Pos, "%v in tag %q", err, tok.Text)
	}
	p, err := parsePath(parts[0])
	if err != nil {
		return Token{}, newParseError(l.src, tok.Pos, "%v", err)
	}
	tok.Path = p
	for _, part := range parts[1:] {
		fs, err := parseFilter(part)
		if err != nil {
			return Token{}, newParseError(l.src, tok.Pos, "%v in tag %q", err, tok.Text)
		}
		tok.Filters = append(tok.Filters, fs)
	}
	return tok, nil
}

// Tokens returns a lazy token sequence. Each range over it scans src from
// the beginning; iteration stops after the first error.
func Tokens(src string, d Delims) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l := NewLexer(src, d)
		for {
			tok, err := l.Next()
			if err == io.EOF {
				return
			}
			if !yield(tok, err) || err != nil {
				return
			}
		}
	}
}

// Tokenize collects every token of src.
func Tokenize(src string, d Delims) ([]Token, error) {
	tokens := make([]Token, 0, 16)
	for tok, err := range Tokens(src, d) {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

type syntaxErr string

func (e syntaxErr) Error() string { return string(e) }

// splitTopLevel splits s on sep, ignoring separators inside quoted strings
// and parentheses.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var (
		parts []string
		start int
		depth int
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, syntaxErr("unbalanced parentheses")
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if quote != 0 {
		return nil, syntaxErr("unterminated string literal")
	}
	if depth != 0 {
		return nil, syntaxErr("unbalanced parentheses")
	}
	return append(parts, s[start:]), nil
}

func parseFilter(s string) (FilterSpec, error) {
	s = fastTrim(s)
	paren := strings.IndexByte(s, '(')
	if paren == -1 {
		if !isIdent(s) {
			return FilterSpec{}, syntaxErr("invalid filter name " + strconv.Quote(s))
		}
		return FilterSpec{Name: s}, nil
	}
	name := fastTrim(s[:paren])
	if !isIdent(name) {
		return FilterSpec{}, syntaxErr("invalid filter name " + strconv.Quote(name))
	}
	if s[len(s)-1] != ')' {
		return FilterSpec{}, syntaxErr("unexpected text after arguments of filter " + strconv.Quote(name))
	}
	inner := fastTrim(s[paren+1 : len(s)-1])
	fs := FilterSpec{Name: name}
	if inner == "" {
		return fs, nil
	}
	raw, err := splitTopLevel(inner, ',')
	if err != nil {
		return FilterSpec{}, err
	}
	fs.Args = make([]any, 0, len(raw))
	for _, r := range raw {
		arg, err := parseArg(fastTrim(r))
		if err != nil {
			return FilterSpec{}, err
		}
		fs.Args = append(fs.Args, arg)
	}
	return fs, nil
}

func parseArg(s string) (any, error) {
	if s == "" {
		return nil, syntaxErr("empty filter argument")
	}
	switch c := s[0]; {
	case c == '"' || c == '\'':
		return unquote(s)
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return nil, syntaxErr("invalid number " + strconv.Quote(s))
	case isIdent(s):
		return Ident(s), nil
	}
	return nil, syntaxErr("invalid filter argument " + strconv.Quote(s))
}

// unquote decodes a single- or double-quoted literal with backslash escapes.
func unquote(s string) (string, error) {
	q := s[0]
	if len(s) < 2 || s[len(s)-1] != q {
		return "", syntaxErr("unterminated string literal")
	}
	body := s[1 : len(s)-1]
	if strings.IndexByte(body, '\\') == -1 {
		if strings.IndexByte(body, q) != -1 {
			return "", syntaxErr("unexpected quote in string literal")
		}
		return body, nil
	}
	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			sb.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		default:
			sb.WriteByte(body[i])
		}
	}
	return sb.String(), nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isAlphaNum(c) && c != '_' && c != '-' && c != '.' && c != '$' {
			return false
		}
	}
	return !isDigit(s[0]) && s[0] != '-' && s[0] != '.'
}

func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
