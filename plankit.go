// Package plankit turns model-proposed plans into verified, typed, safely
// invokable calls against a fixed action catalog. The Engine wires the
// pieces end to end: a proposer that asks the model for a plan, the
// S-expression and JSON plan parsers, grammar validation, argument
// resolution with its pending-parameter conversation state machine, and the
// sequential executor. Every piece is usable on its own through the
// runtime/... packages; the Engine is the convenience surface.
package plankit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"goa.design/plankit/runtime/catalog"
	"goa.design/plankit/runtime/conversation"
	"goa.design/plankit/runtime/conversation/inmem"
	"goa.design/plankit/runtime/exec"
	"goa.design/plankit/runtime/grammar"
	"goa.design/plankit/runtime/model"
	"goa.design/plankit/runtime/plan"
	"goa.design/plankit/runtime/resolve"
	"goa.design/plankit/runtime/sexpr"
	"goa.design/plankit/runtime/telemetry"
)

type (
	// Engine orchestrates one conversation at a time from instruction to
	// executed plan. It is immutable after New and safe for concurrent
	// use; per-conversation state lives in the Store.
	Engine struct {
		cat      *catalog.Catalog
		resolver *resolve.Resolver
		registry *grammar.Registry
		planDSL  string
		proposer *model.Proposer
		store    conversation.Store
		executor *exec.Executor
		rctx     *resolve.Context
		logger   telemetry.Logger
		tracer   telemetry.Tracer
	}

	// Option configures an Engine.
	Option func(*Engine)

	// Turn is the outcome of one conversation turn.
	Turn struct {
		// ConversationID identifies the conversation; empty when the turn
		// completed without pending state.
		ConversationID string
		// Status is the resolution outcome of this turn.
		Status resolve.Status
		// Question is the next question to put to the user when Status is
		// PENDING.
		Question string
		// Plan is the resolved plan, preserved for diagnostics on ERROR.
		Plan *resolve.Plan
		// Results holds the executed step results when the turn ran to
		// completion and an executor is configured.
		Results []exec.StepResult
	}
)

// WithProposer sets the model proposer used by Plan and Continue prompts.
func WithProposer(p *model.Proposer) Option {
	return func(e *Engine) { e.proposer = p }
}

// WithGrammar validates S-expression plan documents under the registry's
// dslID grammar before they are bridged to steps.
func WithGrammar(reg *grammar.Registry, dslID string) Option {
	return func(e *Engine) { e.registry = reg; e.planDSL = dslID }
}

// WithStore sets the conversation store. Defaults to the in-memory store.
func WithStore(s conversation.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithExecutor makes the engine run ready plans immediately.
func WithExecutor(x *exec.Executor) Option {
	return func(e *Engine) { e.executor = x }
}

// WithHooks registers custom type hooks with the resolver.
func WithHooks(hooks map[string]resolve.Hook) Option {
	return func(e *Engine) {
		e.resolver = resolve.NewResolver(e.cat, resolve.WithHooks(hooks))
	}
}

// WithResolutionContext sets the ambient context handed to custom hooks.
func WithResolutionContext(rctx *resolve.Context) Option {
	return func(e *Engine) { e.rctx = rctx }
}

// WithLogger sets the engine's logger. Defaults to no-op.
func WithLogger(l telemetry.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer enables spans around proposal and resolution. Defaults to no-op.
func WithTracer(t telemetry.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New returns an engine over cat.
func New(cat *catalog.Catalog, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("catalog is required")
	}
	e := &Engine{
		cat:      cat,
		resolver: resolve.NewResolver(cat),
		store:    inmem.New(),
		logger:   telemetry.NewNoopLogger(),
		tracer:   telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Start begins a conversation: the proposer renders instruction into a plan,
// which is parsed, validated, and resolved. Requires WithProposer.
func (e *Engine) Start(ctx context.Context, instruction string) (*Turn, error) {
	if e.proposer == nil {
		return nil, errors.New("no proposer configured; use StartWithPlan")
	}
	var defs []*grammar.Definition
	if e.registry != nil {
		defs = e.registry.Definitions()
	}
	ctx, span := e.tracer.Start(ctx, "plankit.propose")
	text, err := e.proposer.Propose(ctx, instruction, e.cat, defs)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, err
	}
	span.End()
	return e.StartWithPlan(ctx, instruction, text)
}

// StartWithPlan begins a conversation from an already-obtained plan text,
// JSON document or S-expression.
func (e *Engine) StartWithPlan(ctx context.Context, instruction, planText string) (*Turn, error) {
	p, err := e.parse(planText)
	if err != nil {
		return nil, err
	}
	resolved := e.resolve(ctx, p)
	if resolved.Status == resolve.StatusPending {
		snap, ok := conversation.FromResolution("", instruction, resolved)
		if ok {
			snap.PlanDoc = planText
			if err := e.store.Save(ctx, snap); err != nil {
				return nil, fmt.Errorf("save conversation: %w", err)
			}
			e.logger.Info(ctx, "conversation pending", "conversation", snap.ID, "questions", len(snap.Pending))
			return &Turn{
				ConversationID: snap.ID,
				Status:         resolve.StatusPending,
				Question:       snap.NextQuestion(),
				Plan:           resolved,
			}, nil
		}
	}
	return e.finish(ctx, "", resolved)
}

// Continue merges a user reply into a pending conversation and re-resolves.
// Returns conversation.ErrNotFound when the conversation does not exist.
func (e *Engine) Continue(ctx context.Context, conversationID, reply string) (*Turn, error) {
	snap, err := e.store.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	next := snap.Merge(reply)
	p, err := e.parse(snap.PlanDoc)
	if err != nil {
		return nil, err
	}
	resolved := e.resolve(ctx, next.Apply(p))
	if fresh, pending := next.Reconcile(resolved); pending {
		if err := e.store.Save(ctx, fresh); err != nil {
			return nil, fmt.Errorf("save conversation: %w", err)
		}
		return &Turn{
			ConversationID: conversationID,
			Status:         resolve.StatusPending,
			Question:       fresh.NextQuestion(),
			Plan:           resolved,
		}, nil
	}
	if err := e.store.Delete(ctx, conversationID); err != nil {
		e.logger.Warn(ctx, "delete conversation failed", "conversation", conversationID, "err", err)
	}
	return e.finish(ctx, conversationID, resolved)
}

// resolve runs the resolution pipeline inside a span.
func (e *Engine) resolve(ctx context.Context, p *plan.Plan) *resolve.Plan {
	_, span := e.tracer.Start(ctx, "plankit.resolve")
	defer span.End()
	resolved := e.resolver.Resolve(p, e.rctx)
	span.AddEvent("resolved", "status", string(resolved.Status), "steps", len(resolved.Steps))
	return resolved
}

// finish handles the terminal outcomes: execute ready plans when an
// executor is configured, report errors otherwise.
func (e *Engine) finish(ctx context.Context, conversationID string, resolved *resolve.Plan) (*Turn, error) {
	turn := &Turn{ConversationID: conversationID, Status: resolved.Status, Plan: resolved}
	if resolved.Status != resolve.StatusReady || e.executor == nil {
		return turn, nil
	}
	results, err := e.executor.Execute(ctx, resolved, exec.NewContext())
	if err != nil {
		return turn, err
	}
	turn.Results = results
	return turn, nil
}

// parse reduces plan text to the internal step representation. Text opening
// with a parenthesis is treated as an S-expression document and validated
// under the configured grammar; anything else is decoded as a JSON plan.
func (e *Engine) parse(text string) (*plan.Plan, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "(") {
		nodes, err := sexpr.Parse(trimmed)
		if err != nil {
			return nil, err
		}
		if e.registry != nil && e.planDSL != "" {
			if err := e.registry.Validate(e.planDSL, nodes...); err != nil {
				return nil, err
			}
		}
		return plan.FromNodes(nodes)
	}
	return plan.Decode([]byte(trimmed))
}
