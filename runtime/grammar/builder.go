package grammar

import (
	"errors"
	"fmt"
	"regexp"
)

// DefinitionBuilder assembles a Definition programmatically. The builder is
// the only way to construct a Definition outside the config loader; Build
// validates cross references and returns an immutable value, after which the
// builder must not be reused.
type DefinitionBuilder struct {
	def  Definition
	errs []error
}

// NewDefinition starts a builder for the mini-language with the given id.
func NewDefinition(id string) *DefinitionBuilder {
	b := &DefinitionBuilder{}
	b.def = Definition{
		id:       id,
		symbols:  make(map[string]*SymbolRule),
		literals: make(map[LiteralKind]*LiteralRule),
		reserved: make(map[string]struct{}),
	}
	if id == "" {
		b.errs = append(b.errs, errors.New("grammar id is required"))
	}
	return b
}

// Describe sets the description and version metadata.
func (b *DefinitionBuilder) Describe(description, version string) *DefinitionBuilder {
	b.def.description = description
	b.def.version = version
	return b
}

// Guidance sets the pass-through prompt-guidance text.
func (b *DefinitionBuilder) Guidance(text string) *DefinitionBuilder {
	b.def.guidance = text
	return b
}

// Symbol adds a symbol rule. Duplicate names are a build error.
func (b *DefinitionBuilder) Symbol(rule SymbolRule) *DefinitionBuilder {
	if rule.Name == "" {
		b.errs = append(b.errs, errors.New("symbol rule requires a name"))
		return b
	}
	if _, ok := b.def.symbols[rule.Name]; ok {
		b.errs = append(b.errs, fmt.Errorf("symbol %q declared twice", rule.Name))
		return b
	}
	r := rule
	b.def.symbols[rule.Name] = &r
	return b
}

// Literal adds a literal shape rule for the given kind.
func (b *DefinitionBuilder) Literal(kind LiteralKind, rule LiteralRule) *DefinitionBuilder {
	if _, ok := b.def.literals[kind]; ok {
		b.errs = append(b.errs, fmt.Errorf("literal kind %q declared twice", kind))
		return b
	}
	r := rule
	b.def.literals[kind] = &r
	return b
}

// Identifier sets the grammar-wide identifier shape rule.
func (b *DefinitionBuilder) Identifier(pattern string) *DefinitionBuilder {
	re, err := regexp.Compile(pattern)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("identifier pattern: %w", err))
		return b
	}
	b.def.identifier = re
	return b
}

// Reserve marks names as reserved symbols.
func (b *DefinitionBuilder) Reserve(names ...string) *DefinitionBuilder {
	for _, n := range names {
		b.def.reserved[n] = struct{}{}
	}
	return b
}

// Embed declares the embedding trigger symbol.
func (b *DefinitionBuilder) Embed(e Embedding) *DefinitionBuilder {
	if e.Enabled && e.Symbol == "" {
		b.errs = append(b.errs, errors.New("embedding requires a trigger symbol"))
		return b
	}
	b.def.embedding = e
	return b
}

// Constrain appends a global constraint.
func (b *DefinitionBuilder) Constrain(c Constraint) *DefinitionBuilder {
	b.def.constraints = append(b.def.constraints, c)
	return b
}

// Build validates the assembled definition and returns it. Cross references
// are checked: node slots must name declared symbols, literal slots must name
// declared literal kinds, and the embedding trigger must not collide with a
// declared symbol.
func (b *DefinitionBuilder) Build() (*Definition, error) {
	errs := b.errs
	for name, rule := range b.def.symbols {
		for i := range rule.Slots {
			slot := &rule.Slots[i]
			if slot.Name == "" {
				errs = append(errs, fmt.Errorf("symbol %q: slot %d requires a name", name, i))
			}
			switch slot.Value {
			case ValueLiteral:
				if _, ok := b.def.literals[slot.Literal]; !ok {
					errs = append(errs, fmt.Errorf("symbol %q: slot %q references undeclared literal kind %q", name, slot.Name, slot.Literal))
				}
			case ValueNode:
				for _, sym := range slot.Symbols {
					if _, ok := b.def.symbols[sym]; !ok {
						errs = append(errs, fmt.Errorf("symbol %q: slot %q references undeclared symbol %q", name, slot.Name, sym))
					}
				}
			}
		}
		for _, c := range rule.Constraints {
			if c.Kind == ConstraintRoot {
				errs = append(errs, fmt.Errorf("symbol %q: root constraint is global only", name))
			}
		}
	}
	if e := b.def.embedding; e.Enabled {
		if _, ok := b.def.symbols[e.Symbol]; ok {
			errs = append(errs, fmt.Errorf("embedding symbol %q collides with a declared symbol", e.Symbol))
		}
	}
	for _, c := range b.def.constraints {
		if c.Kind == ConstraintRoot {
			if _, ok := b.def.symbols[c.Subject]; !ok {
				errs = append(errs, fmt.Errorf("root constraint references undeclared symbol %q", c.Subject))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	def := b.def
	return &def, nil
}
