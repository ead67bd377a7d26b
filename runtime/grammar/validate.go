package grammar

import (
	"regexp"

	"goa.design/plankit/runtime/sexpr"
)

// Validate checks a whole document against this definition without a
// registry. Embedding nodes fail with "no validator registry configured"
// unless the grammar self-embeds via AutoRegister. Use Registry.Validate for
// cross-grammar embedding.
func (d *Definition) Validate(nodes ...sexpr.Node) error {
	return validateDocument(d, nil, nodes)
}

// validateDocument applies the root-symbol requirement to every top-level
// node, validates each node recursively, then applies the remaining global
// constraints over the set of symbols present in the document.
func validateDocument(def *Definition, reg *Registry, nodes []sexpr.Node) error {
	if len(nodes) == 0 {
		return schemaErrorf(nil, "document is empty")
	}
	root := rootConstraint(def)
	for _, n := range nodes {
		if root != nil {
			sym, ok := n.(*sexpr.Symbol)
			if !ok || sym.Name != root.Subject {
				return schemaErrorf(nil, "symbol %q must be the document root", root.Subject)
			}
		}
		if err := validateNode(n, def, reg, nil, 0); err != nil {
			return err
		}
	}
	present := map[string]bool{}
	for _, n := range nodes {
		collectSymbols(n, present)
	}
	for _, c := range def.constraints {
		switch c.Kind {
		case ConstraintRoot:
			// Applied above, before recursion.
		case ConstraintConflicts:
			if present[c.Subject] && present[c.Object] {
				return schemaErrorf(nil, "symbols %q and %q must not co-occur", c.Subject, c.Object)
			}
		case ConstraintRequires:
			if present[c.Subject] && !present[c.Object] {
				return schemaErrorf(nil, "symbol %q requires symbol %q", c.Subject, c.Object)
			}
		}
	}
	return nil
}

func rootConstraint(def *Definition) *Constraint {
	for i := range def.constraints {
		if def.constraints[i].Kind == ConstraintRoot {
			return &def.constraints[i]
		}
	}
	return nil
}

func collectSymbols(n sexpr.Node, acc map[string]bool) {
	sym, ok := n.(*sexpr.Symbol)
	if !ok {
		return
	}
	acc[sym.Name] = true
	for _, c := range sym.Children {
		collectSymbols(c, acc)
	}
}

// validateNode checks one Symbol node against its rule: slot matching,
// per-child value kinds, then symbol constraints. chain is the symbol path
// from the document root; depth counts embedding levels.
func validateNode(n sexpr.Node, def *Definition, reg *Registry, chain []string, depth int) error {
	sym, ok := n.(*sexpr.Symbol)
	if !ok {
		lit := n.(*sexpr.Literal)
		return schemaErrorf(chain, "unexpected literal %q at document level", lit.Text)
	}
	// The embedding trigger is reserved and checked before ordinary lookup.
	if def.embedding.Enabled && sym.Name == def.embedding.Symbol {
		return validateEmbedding(sym, def, reg, chain, depth)
	}
	rule, ok := def.symbols[sym.Name]
	if !ok {
		return schemaErrorf(chain, "unknown symbol %q", sym.Name)
	}
	chain = append(chain, sym.Name)

	st := &slotState{consumed: make([]bool, len(sym.Children)), asNode: make([]bool, len(sym.Children))}
	matched := map[string]bool{}
	cursor := 0
	for i := range rule.Slots {
		slot := &rule.Slots[i]
		taken, next, err := consumeSlot(sym, slot, def, st, cursor, chain)
		if err != nil {
			return err
		}
		cursor = next
		if taken > 0 {
			matched[slot.Name] = true
		}
	}
	for i, c := range st.consumed {
		if !c {
			return schemaErrorf(chain, "too many arguments: child %d does not match any parameter of %q", i+1, sym.Name)
		}
	}
	// Recurse into consumed construct children so nested constructs are
	// checked exhaustively before any downstream consumer sees the tree.
	// Children matched as node slots always recurse, even when childless;
	// leaf symbols used as identifier or literal values do not. Embedding
	// trigger nodes always recurse so their contract is enforced.
	for i, child := range sym.Children {
		cs, ok := child.(*sexpr.Symbol)
		if !ok {
			continue
		}
		trigger := def.embedding.Enabled && cs.Name == def.embedding.Symbol
		if !st.asNode[i] && len(cs.Children) == 0 && !trigger {
			continue
		}
		if err := validateNode(cs, def, reg, chain, depth); err != nil {
			return err
		}
	}
	for _, c := range rule.Constraints {
		switch c.Kind {
		case ConstraintConflicts:
			if matched[c.Subject] && matched[c.Object] {
				return schemaErrorf(chain, "parameters %q and %q must not co-occur", c.Subject, c.Object)
			}
		case ConstraintRequires:
			if matched[c.Subject] && !matched[c.Object] {
				return schemaErrorf(chain, "parameter %q requires parameter %q", c.Subject, c.Object)
			}
		}
	}
	return nil
}

// slotState tracks which children have been consumed during slot matching
// and which were consumed as node slots (and therefore recurse).
type slotState struct {
	consumed []bool
	asNode   []bool
}

// consumeSlot consumes children for one slot according to its cardinality and
// position mode. It returns the number of children consumed and the advanced
// cursor. Required slots that find no child fail here; value-shape violations
// on present children fail with the specific shape message.
func consumeSlot(sym *sexpr.Symbol, slot *Slot, def *Definition, st *slotState, cursor int, chain []string) (int, int, error) {
	// advance past already-consumed children (taken by anywhere slots).
	skip := func(i int) int {
		for i < len(sym.Children) && st.consumed[i] {
			i++
		}
		return i
	}
	take := func(i int) {
		st.consumed[i] = true
		if slot.Value == ValueNode {
			st.asNode[i] = true
		}
	}

	switch slot.Card {
	case CardOne:
		i := findMatch(sym, slot, def, st, cursor, skip)
		if i < 0 {
			return 0, cursor, schemaErrorf(chain, "symbol %q requires parameter %q", sym.Name, slot.Name)
		}
		if err := checkValue(sym.Children[i], slot, def, chain); err != nil {
			return 0, cursor, err
		}
		take(i)
		if !slot.Anywhere {
			cursor = i + 1
		}
		return 1, cursor, nil

	case CardZeroOrOne:
		i := findMatch(sym, slot, def, st, cursor, skip)
		if i < 0 {
			return 0, cursor, nil
		}
		if err := checkValue(sym.Children[i], slot, def, chain); err != nil {
			return 0, cursor, err
		}
		take(i)
		if !slot.Anywhere {
			cursor = i + 1
		}
		return 1, cursor, nil

	default: // CardZeroOrMore, CardOneOrMore
		count := 0
		for {
			i := findMatch(sym, slot, def, st, cursor, skip)
			if i < 0 {
				break
			}
			if err := checkValue(sym.Children[i], slot, def, chain); err != nil {
				return count, cursor, err
			}
			take(i)
			if !slot.Anywhere {
				cursor = i + 1
			}
			count++
		}
		if count == 0 && slot.Card == CardOneOrMore {
			return 0, cursor, schemaErrorf(chain, "symbol %q requires at least one occurrence of parameter %q", sym.Name, slot.Name)
		}
		return count, cursor, nil
	}
}

// findMatch locates the next child the slot may consume. Positional slots
// only look at the current cursor; anywhere slots search all remaining
// unconsumed children for the first structural match.
func findMatch(sym *sexpr.Symbol, slot *Slot, def *Definition, st *slotState, cursor int, skip func(int) int) int {
	if slot.Anywhere {
		for i := 0; i < len(sym.Children); i++ {
			if st.consumed[i] {
				continue
			}
			if matchesShape(sym.Children[i], slot, def) {
				return i
			}
		}
		return -1
	}
	i := skip(cursor)
	if i >= len(sym.Children) {
		return -1
	}
	// Required positional slots claim the next child unconditionally so a
	// present-but-misshapen child reports the shape violation rather than a
	// missing-parameter error.
	if slot.Card == CardOne {
		return i
	}
	if matchesShape(sym.Children[i], slot, def) {
		return i
	}
	return -1
}

// matchesShape is the structural pre-check used to decide consumption for
// optional, repeated, and anywhere slots.
func matchesShape(n sexpr.Node, slot *Slot, def *Definition) bool {
	switch slot.Value {
	case ValueAny:
		return true
	case ValueIdentifier:
		text, ok := leafText(n)
		if !ok {
			return false
		}
		return identifierPattern(slot, def) == nil || identifierPattern(slot, def).MatchString(text)
	case ValueLiteral:
		_, ok := leafText(n)
		return ok
	case ValueNode:
		sym, ok := n.(*sexpr.Symbol)
		if !ok {
			return false
		}
		if len(slot.Symbols) == 0 {
			return true
		}
		for _, name := range slot.Symbols {
			if sym.Name == name {
				return true
			}
		}
		return false
	}
	return false
}

// checkValue enforces the slot's value kind on a consumed child, producing
// the specific shape-violation message.
func checkValue(n sexpr.Node, slot *Slot, def *Definition, chain []string) error {
	switch slot.Value {
	case ValueAny:
		return nil

	case ValueIdentifier:
		text, ok := leafText(n)
		if !ok {
			return schemaErrorf(chain, "parameter %q requires an identifier, got a nested expression", slot.Name)
		}
		if re := identifierPattern(slot, def); re != nil && !re.MatchString(text) {
			return schemaErrorf(chain, "parameter %q: %q is not a valid identifier", slot.Name, text)
		}
		return nil

	case ValueLiteral:
		text, ok := leafText(n)
		if !ok {
			return schemaErrorf(chain, "parameter %q requires a %s literal, got a nested expression", slot.Name, slot.Literal)
		}
		rule := def.literals[slot.Literal]
		if rule == nil {
			return schemaErrorf(chain, "parameter %q references undeclared literal kind %q", slot.Name, slot.Literal)
		}
		if text == "" && !rule.AllowEmpty {
			return schemaErrorf(chain, "parameter %q: empty %s literal is not allowed", slot.Name, slot.Literal)
		}
		if len(rule.Values) > 0 {
			found := false
			for _, v := range rule.Values {
				if v == text {
					found = true
					break
				}
			}
			if !found {
				return schemaErrorf(chain, "parameter %q: %q is not an allowed %s literal", slot.Name, text, slot.Literal)
			}
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(text) {
			return schemaErrorf(chain, "parameter %q: %q does not match the %s literal shape", slot.Name, text, slot.Literal)
		}
		return nil

	case ValueNode:
		sym, ok := n.(*sexpr.Symbol)
		if !ok {
			return schemaErrorf(chain, "parameter %q requires a symbol node", slot.Name)
		}
		if len(slot.Symbols) == 0 {
			return nil
		}
		for _, name := range slot.Symbols {
			if sym.Name == name {
				return nil
			}
		}
		return schemaErrorf(chain, "parameter %q does not accept symbol %q", slot.Name, sym.Name)
	}
	return nil
}

func identifierPattern(slot *Slot, def *Definition) *regexp.Regexp {
	if slot.Ident != nil {
		return slot.Ident
	}
	return def.identifier
}

// leafText extracts the value text of a leaf node: a literal's text or a
// childless symbol's bare name. Nested expressions have no leaf text.
func leafText(n sexpr.Node) (string, bool) {
	switch v := n.(type) {
	case *sexpr.Literal:
		return v.Text, true
	case *sexpr.Symbol:
		if len(v.Children) == 0 {
			return v.Name, true
		}
	}
	return "", false
}
