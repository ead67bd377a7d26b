// Package sexpr tokenizes and parses symbolic S-expression text into an
// untyped abstract syntax tree. The parser is grammar-agnostic: it knows
// nothing about symbol vocabularies or parameter shapes and only rejects
// structurally broken input (bracket mismatch, empty expressions). Grammar
// semantics are applied later by runtime/grammar.
package sexpr

import "strings"

type (
	// Node is an untyped AST node. Concrete implementations are Literal and
	// Symbol. Nodes are immutable once built and may be shared read-only
	// across nested validators.
	Node interface {
		// Pos returns the byte offset of the node in the source text.
		Pos() int
		// String renders the node back to canonical S-expression text.
		String() string

		node()
	}

	// Literal is a quoted string or bare number leaf.
	Literal struct {
		// Text is the literal value with surrounding quotes removed and
		// escape sequences decoded.
		Text string
		// Quoted reports whether the literal was written as a quoted string.
		Quoted bool
		// Offset is the byte offset of the literal in the source text.
		Offset int
	}

	// Symbol is a named node with ordered children. A bare symbol token
	// outside parentheses parses to a Symbol with no children.
	Symbol struct {
		// Name is the symbol name as written.
		Name string
		// Children holds the ordered child expressions.
		Children []Node
		// Offset is the byte offset of the symbol name in the source text.
		Offset int
	}
)

func (l *Literal) node() {}
func (s *Symbol) node()  {}

// Pos returns the byte offset of the literal.
func (l *Literal) Pos() int { return l.Offset }

// Pos returns the byte offset of the symbol name.
func (s *Symbol) Pos() int { return s.Offset }

// String renders the literal, re-quoting values that were quoted in the
// source or that contain characters the tokenizer treats as delimiters.
func (l *Literal) String() string {
	if l.Quoted || needsQuoting(l.Text) {
		return quote(l.Text)
	}
	return l.Text
}

// String renders the symbol and its children as canonical S-expression text.
// Leaf symbols render as their bare name.
func (s *Symbol) String() string {
	if len(s.Children) == 0 {
		return s.Name
	}
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(s.Name)
	for _, c := range s.Children {
		b.WriteByte(' ')
		b.WriteString(c.String())
	}
	b.WriteByte(')')
	return b.String()
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\r\n(),\"")
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
