// Package toolsimpl provides concrete Tool implementations that wrap the
// retriever and a small set of stubbed SecOps service clients, grounded on
// the teacher's internal/tools/rag/search.go JSON-schema'd Tool shape.
package toolsimpl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/retriever"
)

// DocSearch implements models.Tool over a Retriever.
type DocSearch struct {
	retriever retriever.Retriever
}

// NewDocSearch builds a docsearch Tool over the given Retriever.
func NewDocSearch(r retriever.Retriever) *DocSearch {
	return &DocSearch{retriever: r}
}

func (d *DocSearch) Name() string        { return "document_search" }
func (d *DocSearch) Description() string { return "Search local SOC documentation and runbooks." }
func (d *DocSearch) Class() models.ToolClass { return models.ToolClassDocSearch }

func (d *DocSearch) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Search query"},
			"limit": {"type": "integer", "description": "Max results", "default": 5}
		},
		"required": ["query"]
	}`)
}

type docSearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type docSearchResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type docSearchOutput struct {
	Query   string            `json:"query"`
	Count   int               `json:"count"`
	Results []docSearchResult `json:"results"`
}

func (d *DocSearch) Invoke(ctx context.Context, args json.RawMessage) (string, string, error) {
	var in docSearchInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", "", fmt.Errorf("docsearch: decode args: %w", err)
	}
	if in.Limit <= 0 {
		in.Limit = 5
	}
	if in.Limit > 20 {
		in.Limit = 20
	}

	passages, err := d.retriever.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return "", "", err
	}

	out := docSearchOutput{Query: in.Query, Count: len(passages)}
	for _, p := range passages {
		out.Results = append(out.Results, docSearchResult{Text: p.Text, Source: p.SourceName, Score: p.Score})
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", "", err
	}
	return string(encoded), "", nil
}
