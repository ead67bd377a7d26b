package grammar

import (
	"errors"
	"fmt"
	"sort"

	"goa.design/plankit/runtime/sexpr"
)

// DefaultMaxDepth caps embedding recursion when the builder does not set a
// limit. Deeply nested embeddings are legitimate; unbounded ones are not.
const DefaultMaxDepth = 32

type (
	// Registry maps mini-language ids to their definitions and resolves
	// embedding references during validation. A Registry is built once and
	// immutable afterwards, so concurrent validations require no locking.
	Registry struct {
		defs     map[string]*Definition
		maxDepth int
	}

	// RegistryBuilder assembles a Registry at composition time.
	RegistryBuilder struct {
		defs     map[string]*Definition
		maxDepth int
		errs     []error
	}
)

// NewRegistry starts an empty registry builder.
func NewRegistry() *RegistryBuilder {
	return &RegistryBuilder{defs: make(map[string]*Definition), maxDepth: DefaultMaxDepth}
}

// Register adds a definition under its own id. Duplicate ids are a build
// error.
func (b *RegistryBuilder) Register(defs ...*Definition) *RegistryBuilder {
	for _, def := range defs {
		if def == nil {
			b.errs = append(b.errs, errors.New("nil definition"))
			continue
		}
		if _, ok := b.defs[def.ID()]; ok {
			b.errs = append(b.errs, fmt.Errorf("DSL %q registered twice", def.ID()))
			continue
		}
		b.defs[def.ID()] = def
	}
	return b
}

// MaxDepth overrides the embedding recursion limit.
func (b *RegistryBuilder) MaxDepth(n int) *RegistryBuilder {
	if n <= 0 {
		b.errs = append(b.errs, fmt.Errorf("max depth must be positive, got %d", n))
		return b
	}
	b.maxDepth = n
	return b
}

// Build returns the immutable registry.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	defs := make(map[string]*Definition, len(b.defs))
	for id, def := range b.defs {
		defs[id] = def
	}
	return &Registry{defs: defs, maxDepth: b.maxDepth}, nil
}

// Definition returns the registered definition for id.
func (r *Registry) Definition(id string) (*Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// Definitions returns every registered definition sorted by id.
func (r *Registry) Definitions() []*Definition {
	ids := r.IDs()
	sort.Strings(ids)
	out := make([]*Definition, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.defs[id])
	}
	return out
}

// IDs returns the registered mini-language ids in unspecified order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	return ids
}

// Validate checks a whole document against the registered mini-language id,
// resolving embedded payloads through the registry. Returns a SchemaError
// with the full context chain on the first violation.
func (r *Registry) Validate(id string, nodes ...sexpr.Node) error {
	def, ok := r.defs[id]
	if !ok {
		return schemaErrorf(nil, "unknown DSL %q", id)
	}
	return validateDocument(def, r, nodes)
}

// validateEmbedding enforces the embedding node contract and hands each
// payload to the inner grammar's validator. Each requirement is a distinct
// failure: an argument must be present, the first argument must be a bare
// DSL identifier, and at least one payload node must follow. Payloads are
// validated independently under the inner grammar, including its own
// root-symbol constraint, with the outer context chain prefixed onto any
// error raised inside.
func validateEmbedding(sym *sexpr.Symbol, def *Definition, reg *Registry, chain []string, depth int) error {
	trigger := def.embedding.Symbol
	chain = append(chain, trigger)
	if len(sym.Children) == 0 {
		return schemaErrorf(chain, "%s requires at least one argument", trigger)
	}
	id, kind := embeddedID(sym.Children[0])
	if kind != "" {
		return schemaErrorf(chain, "%s first argument must be a DSL identifier, got %s", trigger, kind)
	}
	if len(sym.Children) < 2 {
		return schemaErrorf(chain, "%s requires at least one payload node", trigger)
	}
	inner, err := resolveEmbedded(id, def, reg, chain)
	if err != nil {
		return err
	}
	if depth+1 > maxDepth(reg) {
		return schemaErrorf(chain, "maximum embedding depth %d exceeded", maxDepth(reg))
	}
	root := rootConstraint(inner)
	for _, payload := range sym.Children[1:] {
		if root != nil {
			ps, ok := payload.(*sexpr.Symbol)
			if !ok || ps.Name != root.Subject {
				return schemaErrorf(chain, "DSL %q requires symbol %q as the payload root", id, root.Subject)
			}
		}
		if err := validateNode(payload, inner, reg, nil, depth+1); err != nil {
			return prefixChain(chain, err)
		}
	}
	return nil
}

// embeddedID extracts the DSL identifier from the first embedding argument.
// A non-empty kind return names the offending shape for the error message.
func embeddedID(n sexpr.Node) (id, kind string) {
	switch v := n.(type) {
	case *sexpr.Literal:
		return "", "a literal"
	case *sexpr.Symbol:
		if len(v.Children) > 0 {
			return "", "a nested node"
		}
		return v.Name, ""
	}
	return "", "an unknown node"
}

func resolveEmbedded(id string, def *Definition, reg *Registry, chain []string) (*Definition, error) {
	if reg != nil {
		if inner, ok := reg.defs[id]; ok {
			return inner, nil
		}
	}
	// Self-recursion without a registry entry when the grammar opted in.
	if id == def.id && def.embedding.AutoRegister {
		return def, nil
	}
	if reg == nil {
		return nil, schemaErrorf(chain, "no validator registry configured")
	}
	return nil, schemaErrorf(chain, "unknown DSL %q", id)
}

func maxDepth(reg *Registry) int {
	if reg == nil {
		return DefaultMaxDepth
	}
	return reg.maxDepth
}
