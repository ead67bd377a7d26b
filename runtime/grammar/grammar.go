// Package grammar defines the declarative mini-language model and the
// grammar-driven validator that checks untyped S-expression trees against it.
//
// A Definition is the in-memory form of one mini-language: its symbol table,
// literal and identifier shape rules, structural constraints, and optional
// embedding declaration. Definitions are loaded once from a configuration
// document (see Load) or assembled with a DefinitionBuilder, and are immutable
// afterwards, so any number of validations may run against the same
// Definition or Registry concurrently without locking.
package grammar

import (
	"regexp"
)

type (
	// SymbolKind classifies the role of a symbol within its mini-language.
	// The kind is descriptive metadata carried through to prompt guidance and
	// tooling; it does not change validation behavior.
	SymbolKind int

	// Cardinality states how many children a parameter slot may consume.
	Cardinality int

	// ValueKind states what shape of child a parameter slot accepts.
	ValueKind int

	// LiteralKind names a literal shape rule declared by the grammar.
	LiteralKind string

	// ConstraintKind identifies one rule of the closed constraint vocabulary.
	ConstraintKind int

	// Slot describes one declared parameter of a symbol: its accepted value
	// shape, cardinality, and whether matches must be positional or may be
	// found anywhere among the remaining children.
	Slot struct {
		// Name is the parameter name used in error messages and constraints.
		Name string
		// Value is the accepted child shape.
		Value ValueKind
		// Literal names the literal shape rule applied when Value is
		// ValueLiteral.
		Literal LiteralKind
		// Symbols is the allowed symbol-name set when Value is ValueNode.
		// Empty means any symbol is accepted.
		Symbols []string
		// Card is the slot cardinality.
		Card Cardinality
		// Anywhere allows the slot to match non-positionally: the validator
		// searches all remaining unconsumed children instead of consuming
		// from the current cursor.
		Anywhere bool
		// Ident overrides the grammar-wide identifier shape rule for this
		// slot when Value is ValueIdentifier. Nil uses the grammar rule.
		Ident *regexp.Regexp
	}

	// Constraint is one rule from the closed constraint vocabulary. Symbol
	// constraints relate parameter slots of a single node; global constraints
	// relate symbols across the whole document.
	Constraint struct {
		// Kind selects the rule.
		Kind ConstraintKind
		// Subject is the constrained slot or symbol name.
		Subject string
		// Object is the related slot or symbol name for binary rules.
		Object string
	}

	// SymbolRule declares one symbol of the mini-language: its ordered
	// parameter slots and the constraints that relate them.
	SymbolRule struct {
		// Name is the symbol name as written in documents.
		Name string
		// Description is human-readable context passed through to prompts.
		Description string
		// Kind classifies the symbol.
		Kind SymbolKind
		// Slots is the ordered parameter slot list.
		Slots []Slot
		// Constraints relate slots of this symbol.
		Constraints []Constraint
		// Examples holds snippet strings passed through to prompt guidance.
		Examples []string
	}

	// LiteralRule constrains the text of literals of one kind. Either Pattern
	// or Values is set; a rule with both applies both.
	LiteralRule struct {
		// Pattern is the shape regex, nil when unset.
		Pattern *regexp.Regexp
		// Values enumerates allowed literal texts, empty when unset.
		Values []string
		// AllowEmpty permits the empty string. Empty literals are rejected
		// by default.
		AllowEmpty bool
	}

	// Embedding declares how documents of this mini-language may contain
	// payloads belonging to another registered mini-language.
	Embedding struct {
		// Enabled turns the mechanism on.
		Enabled bool
		// Symbol is the reserved trigger symbol name, checked before
		// ordinary symbol lookup.
		Symbol string
		// AutoRegister makes the grammar available as an embedding target
		// under its own id even when the registry has no explicit entry,
		// enabling self-recursive embedding.
		AutoRegister bool
	}

	// Definition is the immutable in-memory form of one mini-language.
	Definition struct {
		id          string
		description string
		version     string
		symbols     map[string]*SymbolRule
		literals    map[LiteralKind]*LiteralRule
		identifier  *regexp.Regexp
		reserved    map[string]struct{}
		embedding   Embedding
		constraints []Constraint
		guidance    string
	}
)

const (
	// SymbolStructural marks symbols that shape the document.
	SymbolStructural SymbolKind = iota
	// SymbolOperator marks symbols that compute over their children.
	SymbolOperator
	// SymbolLiteralLike marks symbols that behave as values.
	SymbolLiteralLike
	// SymbolSpecial marks symbols with bespoke semantics.
	SymbolSpecial
)

const (
	// CardOne requires exactly one match.
	CardOne Cardinality = iota
	// CardZeroOrOne permits at most one match.
	CardZeroOrOne
	// CardZeroOrMore permits any number of matches.
	CardZeroOrMore
	// CardOneOrMore requires at least one match.
	CardOneOrMore
)

const (
	// ValueAny accepts any child node.
	ValueAny ValueKind = iota
	// ValueIdentifier accepts a bare name or literal matching the identifier
	// shape rule.
	ValueIdentifier
	// ValueLiteral accepts a literal matching the named literal shape rule.
	ValueLiteral
	// ValueNode accepts a symbol node whose name is in the allowed set.
	ValueNode
)

const (
	// ConstraintRoot requires the subject symbol to be the document root.
	// Global only.
	ConstraintRoot ConstraintKind = iota
	// ConstraintConflicts forbids subject and object from co-occurring.
	ConstraintConflicts
	// ConstraintRequires demands that object be present whenever subject is.
	ConstraintRequires
)

// ID returns the mini-language identifier.
func (d *Definition) ID() string { return d.id }

// Description returns the human-readable grammar description.
func (d *Definition) Description() string { return d.description }

// Version returns the declared grammar version.
func (d *Definition) Version() string { return d.version }

// Guidance returns the pass-through prompt-guidance text.
func (d *Definition) Guidance() string { return d.guidance }

// Embedding returns the embedding declaration.
func (d *Definition) Embedding() Embedding { return d.embedding }

// Rule returns the rule for the named symbol.
func (d *Definition) Rule(name string) (*SymbolRule, bool) {
	r, ok := d.symbols[name]
	return r, ok
}

// Symbols returns the declared symbol names in unspecified order.
func (d *Definition) Symbols() []string {
	names := make([]string, 0, len(d.symbols))
	for name := range d.symbols {
		names = append(names, name)
	}
	return names
}

// Reserved reports whether name is a reserved symbol of this grammar.
func (d *Definition) Reserved(name string) bool {
	_, ok := d.reserved[name]
	return ok
}

func (k Cardinality) String() string {
	switch k {
	case CardOne:
		return "one"
	case CardZeroOrOne:
		return "zero_or_one"
	case CardZeroOrMore:
		return "zero_or_more"
	case CardOneOrMore:
		return "one_or_more"
	}
	return "unknown"
}

func (k ValueKind) String() string {
	switch k {
	case ValueAny:
		return "any"
	case ValueIdentifier:
		return "identifier"
	case ValueLiteral:
		return "literal"
	case ValueNode:
		return "node"
	}
	return "unknown"
}
