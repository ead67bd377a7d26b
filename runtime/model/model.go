// Package model defines the provider-agnostic boundary to LLM chat
// completion APIs. The core never performs network I/O itself; it builds a
// Request, hands it to a Client implementation, and parses the returned
// text. Implementations wrap provider SDKs (Anthropic, OpenAI, Bedrock)
// under features/model and translate these normalized types into
// provider-specific formats.
package model

import (
	"context"
	"errors"
)

// ErrRateLimited is returned (possibly wrapped) by clients when the provider
// rejects a request for quota reasons. Middleware uses it to adapt request
// pacing.
var ErrRateLimited = errors.New("model rate limited")

// Message roles. Providers map them onto their own role vocabulary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type (
	// Client is the contract the planning layer uses to invoke a model.
	// Implementations must be safe for concurrent use and reusable across
	// invocations. Retry and timeout policy belongs to the caller or to
	// wrapping middleware, not to the core.
	Client interface {
		// Complete sends a chat completion request and returns the
		// generated response. Returns an error when the provider is
		// unavailable, the request is malformed, or quota is exceeded
		// (ErrRateLimited, possibly wrapped).
		Complete(ctx context.Context, req Request) (Response, error)
	}

	// Message is one entry of the chat history.
	Message struct {
		// Role is RoleSystem, RoleUser, or RoleAssistant.
		Role string
		// Content is the message text.
		Content string
	}

	// Request captures the normalized parameters of one model invocation.
	Request struct {
		// Model is the provider-specific model identifier.
		Model string
		// Messages is the ordered chat history, system prompt included.
		Messages []Message
		// Temperature controls sampling; zero means provider default.
		Temperature float32
		// MaxTokens caps completion length; zero means provider default.
		MaxTokens int
	}

	// Response carries the generated text and usage accounting.
	Response struct {
		// Text is the concatenated assistant output.
		Text string
		// Usage reports token consumption when the provider supplies it.
		Usage TokenUsage
		// StopReason explains why generation ended; provider-specific and
		// possibly empty.
		StopReason string
	}

	// TokenUsage reports the token counts of one invocation.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
	}
)

// TotalTokens returns input plus output tokens.
func (u TokenUsage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}
