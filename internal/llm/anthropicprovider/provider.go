// Package anthropicprovider implements llm.Client against the Anthropic
// Messages API, proving the LLMClient interface boundary works with a
// second, non-OpenAI-shaped provider.
package anthropicprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/secops-bot/engine/internal/llm"
	"github.com/secops-bot/engine/internal/models"
)

// Provider wraps an anthropic.Client.
type Provider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// New builds a Provider.
func New(apiKey, model string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5
	}
	return &Provider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 4096,
		timeout:   timeout,
	}
}

func (p *Provider) Invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	var tools []anthropic.ToolUnionParam
	for _, t := range req.Tools {
		var schema map[string]any
		if len(t.InputSchema) > 0 {
			_ = json.Unmarshal(t.InputSchema, &schema)
		}
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: schema["properties"]},
			},
		})
	}

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(modelOr(req.Model, p.model)),
		MaxTokens: p.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages:  messages,
		Tools:     tools,
	})
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return llm.Result{}, llm.ErrTimeout{Elapsed: elapsed}
		}
		return llm.Result{}, fmt.Errorf("anthropic: %w", err)
	}

	result := llm.Result{
		Metrics: models.Metrics{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			GenTime:      elapsed.Seconds(),
		},
	}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += variant.Text
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:   variant.ID,
				Name: variant.Name,
				Args: json.RawMessage(variant.Input),
			})
		}
	}
	return result, nil
}

func modelOr(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}
