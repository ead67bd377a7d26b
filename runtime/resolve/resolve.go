// Package resolve binds untyped plan steps to catalog actions. It coerces
// each supplied argument to the declared parameter type, applies value
// constraints, and classifies every step as ready, pending on missing
// input, or failed. The resolver is stateless per attempt; conversation
// continuation merges previously supplied values into the plan before the
// next attempt.
package resolve

import (
	"fmt"

	"goa.design/plankit/runtime/catalog"
	"goa.design/plankit/runtime/plan"
)

// Status classifies a resolved plan. It is pure over the step outcomes:
// any error step makes the plan StatusError, else any pending step makes it
// StatusPending, else StatusReady.
type Status string

const (
	// StatusReady means every step bound successfully.
	StatusReady Status = "READY"
	// StatusPending means at least one step awaits user input.
	StatusPending Status = "PENDING"
	// StatusError means a step failed terminally.
	StatusError Status = "ERROR"
)

type (
	// Step is the tagged union of per-step outcomes: *ActionStep,
	// *PendingStep, or *ErrorStep.
	Step interface {
		step()
	}

	// Argument is one coerced, bound argument.
	Argument struct {
		// Name is the parameter name.
		Name string
		// Value holds the coerced value with its exact target type.
		Value any
		// Type is the declared type tag.
		Type catalog.Type
	}

	// ActionStep is a fully bound, invokable step.
	ActionStep struct {
		// Action is the catalog descriptor the step bound to.
		Action *catalog.Action
		// Args holds the coerced arguments in declaration order, injected
		// parameters excluded.
		Args []Argument
	}

	// Prompt asks the user for one missing parameter.
	Prompt struct {
		// Name is the missing parameter.
		Name string
		// Text is the generated question.
		Text string
	}

	// PendingStep records a step paused on missing input.
	PendingStep struct {
		// ActionID names the operation awaiting input.
		ActionID catalog.ID
		// Missing lists a prompt per unfilled parameter.
		Missing []Prompt
		// Supplied preserves the values the caller did provide, keyed by
		// parameter name, so a later turn only has to fill the gaps.
		Supplied map[string]any
	}

	// ErrorStep records a terminally failed step.
	ErrorStep struct {
		// ActionID names the operation, empty when lookup itself failed.
		ActionID catalog.ID
		// Err is the resolution failure.
		Err error
	}

	// Plan is the outcome of one resolution attempt. Steps successfully
	// resolved before a terminal error are preserved for diagnostics.
	Plan struct {
		Status  Status
		Message string
		Steps   []Step
	}

	// Resolver binds plans against one catalog. It is immutable and safe
	// for concurrent use.
	Resolver struct {
		cat     *catalog.Catalog
		coercer *Coercer
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

func (*ActionStep) step()  {}
func (*PendingStep) step() {}
func (*ErrorStep) step()   {}

// WithHooks registers custom type hooks, keyed by the CustomType name
// parameter descriptors reference.
func WithHooks(hooks map[string]Hook) Option {
	return func(r *Resolver) { r.coercer = NewCoercer(hooks) }
}

// NewResolver returns a resolver bound to cat.
func NewResolver(cat *catalog.Catalog, opts ...Option) *Resolver {
	r := &Resolver{cat: cat, coercer: NewCoercer(nil)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve binds every step of p. Resolution stops at the first terminal
// step error; earlier outcomes are preserved in the returned plan.
func (r *Resolver) Resolve(p *plan.Plan, rctx *Context) *Plan {
	out := &Plan{Status: StatusReady, Message: p.Message}
	for i := range p.Steps {
		step := r.resolveStep(&p.Steps[i], rctx)
		out.Steps = append(out.Steps, step)
		switch step.(type) {
		case *ErrorStep:
			out.Status = StatusError
			return out
		case *PendingStep:
			out.Status = StatusPending
		}
	}
	return out
}

func (r *Resolver) resolveStep(s *plan.Step, rctx *Context) Step {
	action, ok := r.cat.Lookup(catalog.ID(s.ActionID))
	if !ok {
		return &ErrorStep{Err: fmt.Errorf("Unknown action id %q", s.ActionID)}
	}
	planned := action.Planned()
	if len(s.Params) > len(planned) {
		return &ErrorStep{
			ActionID: action.ID,
			Err:      fmt.Errorf("Argument count mismatch: expected %d got %d", len(planned), len(s.Params)),
		}
	}

	var (
		args     []Argument
		missing  []Prompt
		supplied = make(map[string]any)
	)
	positional := len(s.Params) == len(planned)
	for i := range planned {
		p := &planned[i]
		raw, found := s.Get(p.Name)
		if !found && positional {
			// Same number of values under different names: fall back to
			// position.
			raw = s.Params[i].Value
			found = true
		}
		if !found {
			missing = append(missing, pendingPrompt(p))
			continue
		}
		supplied[p.Name] = raw
		v, err := r.coercer.Coerce(raw, p, rctx)
		if err != nil {
			if pd, ok := err.(*PartialDataError); ok {
				// A scalar where a structure belongs reads as incomplete
				// input, not a terminal failure.
				delete(supplied, p.Name)
				missing = append(missing, Prompt{Name: p.Name, Text: pendingText(p) + " (" + pd.Message + ")"})
				continue
			}
			return &ErrorStep{ActionID: action.ID, Err: err}
		}
		args = append(args, Argument{Name: p.Name, Value: v, Type: p.Type})
	}
	if len(missing) > 0 {
		return &PendingStep{ActionID: action.ID, Missing: missing, Supplied: supplied}
	}
	return &ActionStep{Action: action, Args: args}
}

func pendingPrompt(p *catalog.Parameter) Prompt {
	return Prompt{Name: p.Name, Text: pendingText(p)}
}

func pendingText(p *catalog.Parameter) string {
	if p.Description == "" {
		return fmt.Sprintf("Please provide `%s`", p.Name)
	}
	return fmt.Sprintf("Please provide `%s` (%s)", p.Name, p.Description)
}
