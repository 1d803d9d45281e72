// Package llm implements LLMClient (spec C3): a single chat-completion
// invocation with optional tool binding, returning content, requested tool
// calls, and token/timing metrics. Concrete providers (openai, anthropic)
// live in subpackages; callers depend only on this Client interface.
package llm

import (
	"context"
	"time"

	"github.com/secops-bot/engine/internal/models"
)

// Message is one entry in a completion request's conversation.
type Message struct {
	Role    models.Role
	Content string
	// ToolCallID is set on tool-result messages.
	ToolCallID string
}

// Request is a single completion invocation.
type Request struct {
	System      string
	Messages    []Message
	Tools       []models.ToolDescriptor
	Model       string
	Temperature float64
}

// Result is what a completion invocation returns.
type Result struct {
	Content   string
	ToolCalls []models.ToolCall
	Metrics   models.Metrics
}

// Client is the LLMClient capability.
type Client interface {
	// Invoke completes req within the client's configured timeout,
	// returning Timeout as a wrapped error on expiry.
	Invoke(ctx context.Context, req Request) (Result, error)
}

// ErrTimeout is wrapped into the error returned by Invoke on expiry.
type ErrTimeout struct{ Elapsed time.Duration }

func (e ErrTimeout) Error() string { return "llm: invocation timed out" }
