package sexpr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type (
	// TokenKind classifies a lexical token.
	TokenKind int

	// Token is a single lexical token with its raw text and source offset.
	// Tokens are produced by the tokenizer and consumed by the parser.
	Token struct {
		// Kind classifies the token.
		Kind TokenKind
		// Text is the decoded token text. For quoted strings the quotes are
		// removed and escape sequences are resolved.
		Text string
		// Quoted reports whether a literal token was written as a quoted
		// string rather than a bare number.
		Quoted bool
		// Offset is the byte offset of the token start in the input.
		Offset int
	}

	// SyntaxError reports a tokenizer or parser failure. Syntax errors are
	// fatal: no partial tree is returned alongside one.
	SyntaxError struct {
		// Message describes the failure.
		Message string
		// Offset is the byte offset at which the failure was detected.
		Offset int
	}
)

const (
	// TokenOpen is an opening parenthesis.
	TokenOpen TokenKind = iota
	// TokenClose is a closing parenthesis.
	TokenClose
	// TokenLiteral is a quoted string or bare number.
	TokenLiteral
	// TokenSymbol is a bare symbol name.
	TokenSymbol
)

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Message)
}

func syntaxErrorf(offset int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...), Offset: offset}
}

// Tokenize splits raw S-expression text into a flat token stream. Commas are
// treated as whitespace. Quoted strings support \" \\ \n \t escapes. Returns
// a SyntaxError for unterminated strings or invalid escapes.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ',':
			i++
		case c == '(':
			tokens = append(tokens, Token{Kind: TokenOpen, Text: "(", Offset: i})
			i++
		case c == ')':
			tokens = append(tokens, Token{Kind: TokenClose, Text: ")", Offset: i})
			i++
		case c == '"':
			text, next, err := scanString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: TokenLiteral, Text: text, Quoted: true, Offset: i})
			i = next
		default:
			start := i
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			text := input[start:i]
			kind := TokenSymbol
			if isNumber(text) {
				kind = TokenLiteral
			}
			tokens = append(tokens, Token{Kind: kind, Text: text, Offset: start})
		}
	}
	return tokens, nil
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ',', '(', ')', '"':
		return true
	}
	return false
}

// scanString consumes a quoted string starting at input[start] == '"' and
// returns the decoded text plus the offset just past the closing quote.
func scanString(input string, start int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		switch c {
		case '"':
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(input) {
				return "", 0, syntaxErrorf(i, "unterminated escape sequence")
			}
			switch input[i+1] {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				return "", 0, syntaxErrorf(i, "invalid escape sequence %q", string(input[i+1]))
			}
			i += 2
		default:
			r, size := utf8.DecodeRuneInString(input[i:])
			b.WriteRune(r)
			i += size
		}
	}
	return "", 0, syntaxErrorf(start, "unterminated string literal")
}

// isNumber reports whether text is a bare integer or decimal number,
// optionally signed. Such tokens become Literal nodes rather than symbols.
func isNumber(text string) bool {
	s := text
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	dot := false
	for _, r := range s {
		if r == '.' {
			if dot {
				return false
			}
			dot = true
			continue
		}
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != "."
}
