package toolsimpl

import (
	"context"
	"encoding/json"

	"github.com/secops-bot/engine/internal/models"
)

// Stub is a test/fixture Tool whose Invoke is supplied by the caller. It
// exists so ToolLoop, ErrorRecovery, and workflow tests can exercise every
// tool class without depending on real EDR/SIEM/threat-intel clients,
// which the spec explicitly keeps out of core (only the Tool interface is
// owned here).
type Stub struct {
	name        string
	description string
	class       models.ToolClass
	schema      json.RawMessage
	InvokeFunc  func(ctx context.Context, args json.RawMessage) (string, string, error)
}

// NewStub builds a Stub tool. If schema is nil, an empty object schema is used.
func NewStub(name, description string, class models.ToolClass, schema json.RawMessage) *Stub {
	if schema == nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return &Stub{name: name, description: description, class: class, schema: schema}
}

func (s *Stub) Name() string                  { return s.name }
func (s *Stub) Description() string           { return s.description }
func (s *Stub) Class() models.ToolClass       { return s.class }
func (s *Stub) Schema() json.RawMessage       { return s.schema }

func (s *Stub) Invoke(ctx context.Context, args json.RawMessage) (string, string, error) {
	if s.InvokeFunc != nil {
		return s.InvokeFunc(ctx, args)
	}
	return "", "", nil
}
