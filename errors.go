package stache

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is.
var (
	ErrSyntax         = errors.New("template syntax error")
	ErrStructure      = errors.New("template structure error")
	ErrFilterNotFound = errors.New("filter not found")
	ErrRecursionLimit = errors.New("recursion limit exceeded")
)

// ParseError reports a malformed tag.
type ParseError struct {
	Pos     int
	Line    int
	Col     int
	Snippet string
	Msg     string
}

func newParseError(src string, pos int, format string, args ...any) *ParseError {
	line, col := position(src, pos)
	return &ParseError{
		Pos:     pos,
		Line:    line,
		Col:     col,
		Snippet: snippet(src, pos),
		Msg:     fmt.Sprintf(format, args...),
	}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d (line %d, col %d) near %q", e.Msg, e.Pos, e.Line, e.Col, e.Snippet)
}

func (e *ParseError) Unwrap() error { return ErrSyntax }

// StructuralError reports a section close that does not match the open section.
// Expected is empty when a close tag has no open section at all.
type StructuralError struct {
	Expected string
	Found    string
	OpenPos  int
	ClosePos int
	Line     int
	Col      int
}

func (e *StructuralError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("unexpected close tag %q at offset %d (line %d, col %d): no open section", e.Found, e.ClosePos, e.Line, e.Col)
	}
	return fmt.Sprintf("mismatched close tag: expected {{/%s}} for section opened at offset %d, found {{/%s}} at offset %d (line %d, col %d)",
		e.Expected, e.OpenPos, e.Found, e.ClosePos, e.Line, e.Col)
}

func (e *StructuralError) Unwrap() error { return ErrStructure }

// UnterminatedSectionError reports a section still open at end of input.
type UnterminatedSectionError struct {
	Section string
	Pos     int
	Line    int
	Col     int
}

func (e *UnterminatedSectionError) Error() string {
	return fmt.Sprintf("unterminated section %q opened at offset %d (line %d, col %d)", e.Section, e.Pos, e.Line, e.Col)
}

func (e *UnterminatedSectionError) Unwrap() error { return ErrStructure }

// FilterNotFoundError is returned when a tag names an unregistered filter.
type FilterNotFoundError struct {
	Name       string
	Tag        string
	Suggestion string
}

func (e *FilterNotFoundError) Error() string {
	msg := fmt.Sprintf("unknown filter %q in tag %q", e.Name, e.Tag)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *FilterNotFoundError) Unwrap() error { return ErrFilterNotFound }

// RecursionLimitError stops runaway lambdas and partials.
type RecursionLimitError struct {
	Limit int
	Via   string
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("maximum render depth %d exceeded via %s", e.Limit, e.Via)
}

func (e *RecursionLimitError) Unwrap() error { return ErrRecursionLimit }

// position converts a byte offset into a 1-based line and column.
func position(src string, pos int) (line, col int) {
	if pos > len(src) {
		pos = len(src)
	}
	line = 1 + strings.Count(src[:pos], "\n")
	col = pos - strings.LastIndexByte(src[:pos], '\n')
	return line, col
}

const snippetRadius = 20

func snippet(src string, pos int) string {
	start := max(0, pos-snippetRadius)
	end := min(len(src), pos+snippetRadius)
	if start > end {
		return ""
	}
	return src[start:end]
}
