package toolsimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/secops-bot/engine/internal/models"
	"github.com/secops-bot/engine/internal/retriever"
)

// Contacts implements models.Tool for the `contacts <query>` fast-path
// command, grounded on the original's ContactsVectorStore.search plus
// search_contacts_with_llm_with_metrics (contacts_lookup.py): a keyword/
// vector search over an escalation-contacts corpus. This port keeps the
// retrieval step and the original's raw-results fallback formatting
// (contacts_lookup.py's non-LLM branch), dropping the LLM reformatting
// pass — fast-path commands in this dispatcher are deterministic, the
// same precedent as tipper and rules.
type Contacts struct {
	retriever retriever.Retriever
}

// NewContacts builds a contacts-lookup Tool over the given Retriever.
func NewContacts(r retriever.Retriever) *Contacts {
	return &Contacts{retriever: r}
}

func (c *Contacts) Name() string            { return "contacts_lookup" }
func (c *Contacts) Description() string     { return "Search the escalation-paths directory for SOC contacts." }
func (c *Contacts) Class() models.ToolClass { return models.ToolClassContacts }

func (c *Contacts) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Contact or escalation path to search for"}
		},
		"required": ["query"]
	}`)
}

type contactsInput struct {
	Query string `json:"query"`
}

func (c *Contacts) Invoke(ctx context.Context, args json.RawMessage) (string, string, error) {
	var in contactsInput
	if err := json.Unmarshal(args, &in); err != nil {
		return "", "", fmt.Errorf("contacts: decode args: %w", err)
	}

	passages, err := c.retriever.Search(ctx, in.Query, 10)
	if err != nil {
		return "", "", err
	}
	if len(passages) == 0 {
		return fmt.Sprintf("❌ No contacts found for %q.", in.Query), "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📇 Contacts for '%s'\n\n", in.Query)
	for _, p := range passages {
		fmt.Fprintf(&b, "- %s\n", p.Text)
	}
	return b.String(), "", nil
}
