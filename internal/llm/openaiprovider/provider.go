// Package openaiprovider implements llm.Client against an OpenAI-compatible
// chat completion endpoint (OpenAI itself, or a local vLLM/llama.cpp server
// exposing the same API), matching the spec's "local language model".
package openaiprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/secops-bot/engine/internal/llm"
	"github.com/secops-bot/engine/internal/models"
)

// Provider wraps an openai.Client.
type Provider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// New builds a Provider. baseURL may point at a local OpenAI-compatible
// server; pass "" to use the public OpenAI endpoint.
func New(apiKey, baseURL, model string, timeout time.Duration) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Provider{client: openai.NewClientWithConfig(cfg), model: model, timeout: timeout}
}

func (p *Provider) Invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       toOpenAIRole(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		})
	}

	var tools []openai.Tool
	for _, t := range req.Tools {
		var params map[string]any
		if len(t.InputSchema) > 0 {
			_ = json.Unmarshal(t.InputSchema, &params)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Tools:       tools,
		Temperature: float32(req.Temperature),
	})
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return llm.Result{}, llm.ErrTimeout{Elapsed: elapsed}
		}
		return llm.Result{}, fmt.Errorf("openai: %w", err)
	}

	result := llm.Result{
		Metrics: models.Metrics{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			PromptTime:   0,
			GenTime:      elapsed.Seconds(),
		},
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		result.Content = choice.Message.Content
		for _, tc := range choice.Message.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: json.RawMessage(tc.Function.Arguments),
			})
		}
	}
	return result, nil
}

func toOpenAIRole(r models.Role) string {
	switch r {
	case models.RoleUser:
		return openai.ChatMessageRoleUser
	case models.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case models.RoleSystem:
		return openai.ChatMessageRoleSystem
	case models.RoleTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}
