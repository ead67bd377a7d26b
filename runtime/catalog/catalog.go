// Package catalog holds the inventory of callable host operations that plan
// resolution binds against. A Catalog is assembled once through a Builder and
// is immutable afterward, so concurrent resolutions share it without locking.
// The catalog carries descriptors only; the functions bound to each action
// live with the executor so the same catalog can serve prompt rendering,
// resolution, and execution.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// Type tags the target representation a parameter declares. Coercion
// dispatches on this tag.
type Type string

const (
	// String accepts any value rendered through its string form.
	String Type = "string"
	// Int32 is a 32-bit signed integer.
	Int32 Type = "int32"
	// Int64 is a 64-bit signed integer.
	Int64 Type = "int64"
	// Float64 is a double-precision float.
	Float64 Type = "float64"
	// Float32 is a single-precision float.
	Float32 Type = "float32"
	// Bool is a boolean.
	Bool Type = "bool"
	// Enum matches one of a declared constant set, case-insensitively,
	// canonicalizing to the declared spelling.
	Enum Type = "enum"
	// Array is an ordered homogeneous sequence; Elem declares the component
	// type.
	Array Type = "array"
	// Collection is an unordered homogeneous sequence; coercion treats it
	// like Array.
	Collection Type = "collection"
	// Object is a nested structure mapped field by field from a map value.
	Object Type = "object"
	// Custom delegates coercion to a registered hook keyed by CustomType.
	Custom Type = "custom"
)

// ID is the strong type for action identifiers. Use it when keying maps or
// APIs to avoid mixing with free-form strings.
type ID string

type (
	// Parameter describes one typed slot of an action.
	Parameter struct {
		// Name identifies the parameter within its action.
		Name string
		// Description is surfaced in prompts and pending-parameter
		// questions.
		Description string
		// Type is the target type tag.
		Type Type
		// Elem declares the component type for Array and Collection
		// parameters.
		Elem *Parameter
		// Fields declares the nested shape for Object parameters. When
		// empty any object value is accepted as-is.
		Fields []Parameter
		// Enum lists the constant set for Enum parameters. The declared
		// spelling is canonical.
		Enum []string
		// Allowed restricts the post-coercion value to this set when
		// non-empty. Unlike Enum it applies to any type's string form.
		Allowed []string
		// Pattern, when non-nil, must match the post-coercion string form.
		Pattern *regexp.Regexp
		// CaseSensitive controls Allowed matching. Pattern matching is
		// always literal.
		CaseSensitive bool
		// CustomType names the hook used for Custom parameters.
		CustomType string
		// InjectContext marks a parameter filled from the ambient execution
		// context rather than the plan. Injected parameters are excluded
		// from the model-facing schema and from arity checks.
		InjectContext bool
	}

	// Action describes one callable operation.
	Action struct {
		// ID is the operation identifier plans refer to.
		ID ID
		// Description provides human-readable context for the model.
		Description string
		// Params is the ordered parameter list.
		Params []Parameter
	}

	// Catalog is the immutable action inventory.
	Catalog struct {
		actions map[ID]*Action
		order   []ID
	}

	// Builder accumulates actions and validates them into a Catalog.
	Builder struct {
		actions []Action
		errs    []error
	}
)

// Planned returns the parameters the plan must supply, excluding injected
// ones.
func (a *Action) Planned() []Parameter {
	out := make([]Parameter, 0, len(a.Params))
	for _, p := range a.Params {
		if !p.InjectContext {
			out = append(out, p)
		}
	}
	return out
}

// Param returns the named parameter or nil.
func (a *Action) Param(name string) *Parameter {
	for i := range a.Params {
		if a.Params[i].Name == name {
			return &a.Params[i]
		}
	}
	return nil
}

// New returns an empty catalog builder.
func New() *Builder {
	return &Builder{}
}

// Register adds actions to the builder. Validation is deferred to Build.
func (b *Builder) Register(actions ...Action) *Builder {
	b.actions = append(b.actions, actions...)
	return b
}

// Build validates every registered action and returns the immutable catalog.
// All accumulated problems are reported together.
func (b *Builder) Build() (*Catalog, error) {
	errs := append([]error(nil), b.errs...)
	byID := make(map[ID]*Action, len(b.actions))
	order := make([]ID, 0, len(b.actions))
	for i := range b.actions {
		a := b.actions[i]
		if a.ID == "" {
			errs = append(errs, errors.New("action with empty id"))
			continue
		}
		if _, dup := byID[a.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate action id %q", a.ID))
			continue
		}
		for j := range a.Params {
			if err := checkParameter(&a.Params[j]); err != nil {
				errs = append(errs, fmt.Errorf("action %q parameter %q: %w", a.ID, a.Params[j].Name, err))
			}
		}
		copied := a
		copied.Params = append([]Parameter(nil), a.Params...)
		byID[a.ID] = &copied
		order = append(order, a.ID)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Catalog{actions: byID, order: order}, nil
}

func checkParameter(p *Parameter) error {
	if p.Name == "" {
		return errors.New("empty name")
	}
	switch p.Type {
	case "":
		return errors.New("missing type")
	case Enum:
		if len(p.Enum) == 0 {
			return errors.New("enum type requires declared values")
		}
	case Array, Collection:
		if p.Elem == nil {
			return errors.New("sequence type requires an element type")
		}
		if p.Elem.InjectContext {
			return errors.New("element type must not inject context")
		}
		return checkParameter(p.Elem)
	case Object:
		for i := range p.Fields {
			if err := checkParameter(&p.Fields[i]); err != nil {
				return fmt.Errorf("field %q: %w", p.Fields[i].Name, err)
			}
		}
	case Custom:
		if p.CustomType == "" {
			return errors.New("custom type requires a hook name")
		}
	}
	return nil
}

// Lookup returns the action registered under id, or false.
func (c *Catalog) Lookup(id ID) (*Action, bool) {
	a, ok := c.actions[id]
	return a, ok
}

// Actions returns every action in registration order.
func (c *Catalog) Actions() []*Action {
	out := make([]*Action, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.actions[id])
	}
	return out
}

// IDs returns the sorted identifiers, used by prompt rendering and error
// reporting.
func (c *Catalog) IDs() []ID {
	out := make([]ID, 0, len(c.actions))
	for id := range c.actions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
