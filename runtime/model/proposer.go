package model

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"goa.design/plankit/runtime/catalog"
	"goa.design/plankit/runtime/grammar"
	"goa.design/plankit/runtime/telemetry"
)

type (
	// Proposer renders the action catalog and grammar guidance into a
	// prompt, invokes the model, and returns the raw plan text. Parsing
	// and validation of that text happen downstream; the proposer's job
	// ends at the model boundary.
	Proposer struct {
		client      Client
		modelID     string
		temperature float32
		maxTokens   int
		logger      telemetry.Logger
		metrics     telemetry.Metrics
	}

	// ProposerOption configures a Proposer.
	ProposerOption func(*Proposer)
)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) ProposerOption {
	return func(p *Proposer) { p.temperature = t }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) ProposerOption {
	return func(p *Proposer) { p.maxTokens = n }
}

// WithLogger sets the proposer's logger. Defaults to no-op.
func WithLogger(l telemetry.Logger) ProposerOption {
	return func(p *Proposer) { p.logger = l }
}

// WithMetrics sets the proposer's metrics recorder. Defaults to no-op.
func WithMetrics(m telemetry.Metrics) ProposerOption {
	return func(p *Proposer) { p.metrics = m }
}

// NewProposer returns a proposer that invokes client with modelID.
func NewProposer(client Client, modelID string, opts ...ProposerOption) *Proposer {
	p := &Proposer{
		client:  client,
		modelID: modelID,
		logger:  telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Propose asks the model for a plan fulfilling instruction against cat.
// Grammar definitions contribute their prompt guidance and examples. The
// history carries earlier turns of a continuing conversation, oldest first.
// The returned text is the model output with surrounding fences stripped.
func (p *Proposer) Propose(ctx context.Context, instruction string, cat *catalog.Catalog, defs []*grammar.Definition, history ...Message) (string, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: renderSystemPrompt(cat, defs)})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: instruction})

	start := time.Now()
	resp, err := p.client.Complete(ctx, Request{
		Model:       p.modelID,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	p.metrics.RecordTimer("plankit.model.complete_duration", time.Since(start), "model", p.modelID)
	if err != nil {
		p.logger.Error(ctx, "model completion failed", "model", p.modelID, "err", err)
		return "", fmt.Errorf("propose plan: %w", err)
	}
	p.metrics.IncCounter("plankit.model.tokens", float64(resp.Usage.TotalTokens()), "model", p.modelID)
	p.logger.Debug(ctx, "model completion",
		"model", p.modelID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason,
	)
	return StripFences(resp.Text), nil
}

// renderSystemPrompt assembles the planning instructions: the catalog's
// operations with their plan-facing parameters, then each grammar's
// guidance and examples.
func renderSystemPrompt(cat *catalog.Catalog, defs []*grammar.Definition) string {
	var b strings.Builder
	b.WriteString("You convert user requests into plans over the following actions.\n")
	b.WriteString("Respond with a plan only, no commentary.\n\n")
	b.WriteString("Actions:\n")
	for _, a := range cat.Actions() {
		fmt.Fprintf(&b, "- %s", a.ID)
		if a.Description != "" {
			fmt.Fprintf(&b, ": %s", a.Description)
		}
		b.WriteString("\n")
		for _, param := range a.Planned() {
			fmt.Fprintf(&b, "    %s (%s)", param.Name, param.Type)
			if len(param.Enum) > 0 {
				fmt.Fprintf(&b, " one of: %s", strings.Join(param.Enum, ", "))
			}
			if param.Description != "" {
				fmt.Fprintf(&b, ": %s", param.Description)
			}
			b.WriteString("\n")
		}
	}
	for _, def := range defs {
		if def.Guidance() == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s language:\n%s\n", def.ID(), def.Guidance())
		names := def.Symbols()
		sort.Strings(names)
		for _, name := range names {
			rule, ok := def.Rule(name)
			if !ok {
				continue
			}
			for _, ex := range rule.Examples {
				fmt.Fprintf(&b, "  example: %s\n", ex)
			}
		}
	}
	return b.String()
}

// StripFences removes a surrounding markdown code fence from model output,
// tolerating a language tag on the opening fence.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		// Drop the language tag line.
		first := strings.TrimSpace(trimmed[:i])
		if !strings.ContainsAny(first, "({[\"") {
			trimmed = trimmed[i+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
