package sexpr

// Parse tokenizes and parses a complete S-expression document, returning the
// ordered top-level expressions. Parsing is grammar-agnostic and detects only
// structural failures, all of which are fatal:
//
//   - "unmatched (" when an expression is still open at end of input,
//   - "unexpected )" when a close paren has no matching open,
//   - "empty expression" for a bare "()".
//
// No partial tree is ever returned alongside an error.
func Parse(input string) ([]Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	var nodes []Node
	for !p.done() {
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		return nil, syntaxErrorf(0, "empty expression")
	}
	return nodes, nil
}

// ParseOne parses input that must contain exactly one top-level expression.
func ParseOne(input string) (Node, error) {
	nodes, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, syntaxErrorf(nodes[1].Pos(), "expected a single expression, found %d", len(nodes))
	}
	return nodes[0], nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) next() Token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) parseExpr() (Node, error) {
	t := p.next()
	switch t.Kind {
	case TokenOpen:
		return p.parseSymbol(t)
	case TokenClose:
		return nil, syntaxErrorf(t.Offset, "unexpected )")
	case TokenLiteral:
		return &Literal{Text: t.Text, Quoted: t.Quoted, Offset: t.Offset}, nil
	default:
		// Bare symbol outside parentheses parses to a leaf Symbol.
		return &Symbol{Name: t.Text, Offset: t.Offset}, nil
	}
}

// parseSymbol consumes a parenthesized expression whose open token has
// already been read. The first token inside must be a bare symbol naming the
// node; children follow until the matching close paren.
func (p *parser) parseSymbol(open Token) (Node, error) {
	if p.done() {
		return nil, syntaxErrorf(open.Offset, "unmatched (")
	}
	head := p.next()
	switch head.Kind {
	case TokenClose:
		return nil, syntaxErrorf(open.Offset, "empty expression")
	case TokenSymbol:
		// Fall through to child parsing.
	default:
		return nil, syntaxErrorf(head.Offset, "expression must start with a symbol name")
	}
	sym := &Symbol{Name: head.Text, Offset: head.Offset}
	for {
		if p.done() {
			return nil, syntaxErrorf(open.Offset, "unmatched (")
		}
		if p.tokens[p.pos].Kind == TokenClose {
			p.pos++
			return sym, nil
		}
		child, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sym.Children = append(sym.Children, child)
	}
}
