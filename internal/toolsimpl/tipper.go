package toolsimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/secops-bot/engine/internal/models"
)

// Tipper implements models.Tool for the `tipper <id>` fast-path command: it
// resolves a tipper/work-item ID to a linkified markdown reference, grounded
// on the original's handle_tipper_command_with_metrics/linkify_markdown
// (my_model.py), which templates a work-item URL under AZDO_BASE_URL and
// returns `[#<id>](<url>)`.
type Tipper struct {
	baseURL string
}

// NewTipper builds a Tipper tool templating ticket links under baseURL
// (config.RouterConfig.AzdoBaseURL), e.g. "https://dev.azure.com/org/project".
func NewTipper(baseURL string) *Tipper {
	return &Tipper{baseURL: strings.TrimRight(baseURL, "/")}
}

func (t *Tipper) Name() string            { return "tipper_lookup" }
func (t *Tipper) Description() string     { return "Resolve a tipper work-item ID to a linkified ticket reference." }
func (t *Tipper) Class() models.ToolClass { return models.ToolClassTipper }

func (t *Tipper) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"tipper_id": {"type": "string", "description": "Numeric tipper/work-item ID"}
		},
		"required": ["tipper_id"]
	}`)
}

type tipperInput struct {
	TipperID string `json:"tipper_id"`
}

func (t *Tipper) Invoke(ctx context.Context, args json.RawMessage) (string, string, error) {
	var in tipperInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", "", fmt.Errorf("tipper: decode args: %w", err)
	}
	if in.TipperID == "" {
		return "", "", fmt.Errorf("tipper: missing tipper_id")
	}
	url := fmt.Sprintf("%s/_workitems/edit/%s", t.baseURL, in.TipperID)
	return fmt.Sprintf("[#%s](%s)", in.TipperID, url), "", nil
}
