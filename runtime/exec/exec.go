// Package exec runs fully resolved plans. It maps action identifiers to
// bound handler functions and invokes them sequentially, fail-fast, sharing
// a mutable execution context across steps so later steps can read earlier
// results.
package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"goa.design/plankit/runtime/catalog"
	"goa.design/plankit/runtime/resolve"
	"goa.design/plankit/runtime/telemetry"
)

type (
	// Context is the shared mutable state handed to every handler during
	// one plan execution. It is safe for concurrent use, though execution
	// itself is sequential.
	Context struct {
		mu     sync.RWMutex
		values map[string]any
	}

	// Handler invokes one bound operation with its coerced arguments.
	Handler func(ctx context.Context, args []resolve.Argument, ec *Context) (any, error)

	// Binding couples a handler with an optional context key its return
	// value is stored under.
	Binding struct {
		// Handler performs the operation.
		Handler Handler
		// ResultKey, when non-empty, names the execution-context entry the
		// return value is stored under.
		ResultKey string
	}

	// Bindings maps action identifiers to handlers. Build it once at
	// composition time; it is read-only during execution.
	Bindings struct {
		byID map[catalog.ID]Binding
	}

	// StepResult records one successful invocation.
	StepResult struct {
		// ActionID names the invoked operation.
		ActionID catalog.ID
		// Value is the handler's return value.
		Value any
	}

	// Executor runs ready plans against a set of bindings.
	Executor struct {
		bindings *Bindings
		logger   telemetry.Logger
		metrics  telemetry.Metrics
	}

	// ExecutorOption configures an Executor.
	ExecutorOption func(*Executor)
)

// NewContext returns an empty execution context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Set stores a value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// NewBindings returns an empty binding set.
func NewBindings() *Bindings {
	return &Bindings{byID: make(map[catalog.ID]Binding)}
}

// Bind registers the handler for id, replacing any previous binding.
func (b *Bindings) Bind(id catalog.ID, binding Binding) *Bindings {
	b.byID[id] = binding
	return b
}

// BindFunc registers a bare handler with no result key.
func (b *Bindings) BindFunc(id catalog.ID, h Handler) *Bindings {
	return b.Bind(id, Binding{Handler: h})
}

// Lookup returns the binding for id, or false.
func (b *Bindings) Lookup(id catalog.ID) (Binding, bool) {
	binding, ok := b.byID[id]
	return binding, ok
}

// WithLogger sets the executor's logger. Defaults to no-op.
func WithLogger(l telemetry.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics sets the executor's metrics recorder. Defaults to no-op.
func WithMetrics(m telemetry.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor returns an executor over bindings.
func NewExecutor(bindings *Bindings, opts ...ExecutorOption) *Executor {
	e := &Executor{
		bindings: bindings,
		logger:   telemetry.NewNoopLogger(),
		metrics:  telemetry.NewNoopMetrics(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs every step of a ready plan in order. The first handler
// failure stops execution and is returned wrapped with the step's position
// and action id; results of the steps that did run are returned alongside.
// Plans that are pending or failed are rejected up front.
func (e *Executor) Execute(ctx context.Context, p *resolve.Plan, ec *Context) ([]StepResult, error) {
	if p.Status != resolve.StatusReady {
		return nil, fmt.Errorf("plan is not ready: status %s", p.Status)
	}
	if ec == nil {
		ec = NewContext()
	}
	results := make([]StepResult, 0, len(p.Steps))
	for i, step := range p.Steps {
		action, ok := step.(*resolve.ActionStep)
		if !ok {
			return results, fmt.Errorf("step %d is not executable", i)
		}
		binding, ok := e.bindings.Lookup(action.Action.ID)
		if !ok {
			return results, fmt.Errorf("step %d: no handler bound for action %q", i, action.Action.ID)
		}
		start := time.Now()
		value, err := binding.Handler(ctx, action.Args, ec)
		e.metrics.RecordTimer("plankit.exec.step_duration", time.Since(start), "action", string(action.Action.ID))
		if err != nil {
			e.metrics.IncCounter("plankit.exec.step_failures", 1, "action", string(action.Action.ID))
			e.logger.Error(ctx, "step failed", "step", i, "action", string(action.Action.ID), "err", err)
			return results, fmt.Errorf("step %d (%s): %w", i, action.Action.ID, err)
		}
		e.logger.Debug(ctx, "step completed", "step", i, "action", string(action.Action.ID))
		if binding.ResultKey != "" {
			ec.Set(binding.ResultKey, value)
		}
		results = append(results, StepResult{ActionID: action.Action.ID, Value: value})
	}
	return results, nil
}
