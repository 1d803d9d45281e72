// Package toolloop implements ToolLoop (spec C6): one bounded round of
// "LLM decides which tool; we execute it; LLM summarises". Tool calls are
// executed sequentially to keep message ordering deterministic, and the
// final LLM response is returned verbatim even if it itself requests more
// tools, which prevents unbounded tool-calling loops.
package toolloop

import (
	"context"
	"fmt"
	"time"

	"github.com/secops-bot/engine/internal/llm"
	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/observability"
	"github.com/secops-bot/engine/internal/recovery"
	"github.com/secops-bot/engine/internal/toolregistry"
)

// Loop orchestrates one tool-dispatch round.
type Loop struct {
	LLM      llm.Client
	Registry *toolregistry.Registry
	Recovery *recovery.Manager
	Metrics  *observability.Metrics // optional; nil disables recording
}

// New builds a Loop.
func New(client llm.Client, registry *toolregistry.Registry, rec *recovery.Manager) *Loop {
	return &Loop{LLM: client, Registry: registry, Recovery: rec}
}

// Run executes one bounded tool round for the given system prompt and
// conversation messages, returning the final content and summed metrics.
func (l *Loop) Run(ctx context.Context, system string, messages []llm.Message) (string, models.Metrics, error) {
	first, err := l.invoke(ctx, llm.Request{System: system, Messages: messages, Tools: l.Registry.Bind()})
	if err != nil {
		return "", models.Metrics{}, err
	}
	if len(first.ToolCalls) == 0 {
		return first.Content, first.Metrics, nil
	}

	// Append the assistant's tool-call turn as context for the tool results.
	convo := append(append([]llm.Message{}, messages...), llm.Message{
		Role:    models.RoleAssistant,
		Content: summarizeToolCalls(first.ToolCalls),
	})

	for _, call := range first.ToolCalls {
		content := l.executeOne(ctx, call)
		convo = append(convo, llm.Message{
			Role:       models.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
		})
	}

	final, err := l.invoke(ctx, llm.Request{System: system, Messages: convo})
	if err != nil {
		return "", models.Metrics{}, err
	}

	total := models.Metrics{
		InputTokens:  first.Metrics.InputTokens + final.Metrics.InputTokens,
		OutputTokens: first.Metrics.OutputTokens + final.Metrics.OutputTokens,
		PromptTime:   first.Metrics.PromptTime + final.Metrics.PromptTime,
		GenTime:      first.Metrics.GenTime + final.Metrics.GenTime,
	}
	// Loop-prevention: ignore any further tool calls the final response requests.
	return final.Content, total, nil
}

func (l *Loop) invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()
	result, err := l.LLM.Invoke(ctx, req)
	if l.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		l.Metrics.RecordLLMRequest(fmt.Sprintf("%T", l.LLM), req.Model, status, time.Since(start).Seconds(), result.Metrics.InputTokens, result.Metrics.OutputTokens)
	}
	return result, err
}

func (l *Loop) executeOne(ctx context.Context, call models.ToolCall) string {
	tool, err := l.Registry.Get(call.Name)
	if err != nil {
		return fmt.Sprintf("Tool %s not found", call.Name)
	}

	if !l.Recovery.Available(tool.Class()) {
		return l.Recovery.Fallback(tool.Class(), call.Name)
	}

	start := time.Now()
	result, err := l.Recovery.Run(ctx, tool.Class(), func(ctx context.Context) (string, error) {
		text, _, invokeErr := tool.Invoke(ctx, call.Args)
		return text, invokeErr
	})
	if l.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		l.Metrics.RecordToolExecution(call.Name, status, time.Since(start).Seconds())
	}
	if err != nil {
		return l.Recovery.Fallback(tool.Class(), call.Name)
	}
	return result
}

func summarizeToolCalls(calls []models.ToolCall) string {
	out := "requesting tools: "
	for i, c := range calls {
		if i > 0 {
			out += ", "
		}
		out += c.Name
	}
	return out
}
