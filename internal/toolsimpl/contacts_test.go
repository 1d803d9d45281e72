package toolsimpl

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/secops-bot/engine/internal/retriever"
)

func TestContactsInvokeReturnsBulletList(t *testing.T) {
	store := retriever.NewInMemory([]retriever.Document{
		{ID: "c1", Text: "Region/Sheet: EMEA. Contact: Major Incident Management | Jane Doe | jane@example.com", Source: "contacts"},
	})
	tool := NewContacts(store)
	args, _ := json.Marshal(map[string]string{"query": "major incident management"})

	text, _, err := tool.Invoke(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Jane Doe") {
		t.Fatalf("expected contact in output, got %q", text)
	}
}

func TestContactsInvokeNoMatches(t *testing.T) {
	store := retriever.NewInMemory(nil)
	tool := NewContacts(store)
	args, _ := json.Marshal(map[string]string{"query": "nobody"})

	text, _, err := tool.Invoke(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "No contacts found") {
		t.Fatalf("expected no-match message, got %q", text)
	}
}
