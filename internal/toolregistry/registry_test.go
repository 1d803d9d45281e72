package toolregistry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/secops-bot/engine/internal/models"
)

type fakeTool struct {
	name  string
	class models.ToolClass
}

func (f fakeTool) Name() string               { return f.name }
func (f fakeTool) Description() string        { return "fake tool " + f.name }
func (f fakeTool) Schema() json.RawMessage     { return json.RawMessage(`{"type":"object"}`) }
func (f fakeTool) Class() models.ToolClass     { return f.class }
func (f fakeTool) Invoke(ctx context.Context, args json.RawMessage) (string, string, error) {
	return "ok", "", nil
}

func TestRegistryGetNotFound(t *testing.T) {
	r := New()
	if _, err := r.Get("missing"); err == nil {
		t.Fatal("expected error for missing tool")
	}
}

func TestRegistryBindSortedByName(t *testing.T) {
	r := New()
	if err := r.Register(fakeTool{name: "zzz", class: models.ToolClassDefault}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(fakeTool{name: "aaa", class: models.ToolClassDefault}); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Seal()

	desc := r.Bind()
	if len(desc) != 2 || desc[0].Name != "aaa" || desc[1].Name != "zzz" {
		t.Fatalf("unexpected bind order: %+v", desc)
	}
}

func TestRegisterRejectsInvalidSchema(t *testing.T) {
	r := New()
	badSchema := invalidSchemaTool{fakeTool{name: "bad", class: models.ToolClassDefault}}
	if err := r.Register(badSchema); err == nil {
		t.Fatal("expected schema validation error")
	}
}

type invalidSchemaTool struct{ fakeTool }

func (invalidSchemaTool) Schema() json.RawMessage { return json.RawMessage(`{"type": 123}`) }
