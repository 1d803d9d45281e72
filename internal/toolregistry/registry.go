// Package toolregistry implements ToolRegistry (spec C1): an immutable,
// once-sealed map of tool name to Tool capability, validated against a
// JSON Schema draft so malformed tool schemas are caught at registration
// time rather than surfacing as LLM binding errors.
package toolregistry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/secops-bot/engine/internal/models"
)

// ErrNotFound is returned by Get for an unregistered tool name.
type ErrNotFound struct{ Name string }

func (e ErrNotFound) Error() string { return fmt.Sprintf("toolregistry: tool %q not found", e.Name) }

// Registry is the ToolRegistry capability.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]models.Tool
	sealed bool
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]models.Tool)}
}

// Register adds a tool. It panics if called after Seal, and returns an
// error if the tool's declared schema is not valid JSON Schema.
func (r *Registry) Register(tool models.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic("toolregistry: Register called after Seal")
	}
	if err := validateSchema(tool.Schema()); err != nil {
		return fmt.Errorf("toolregistry: register %q: %w", tool.Name(), err)
	}
	r.tools[tool.Name()] = tool
	return nil
}

// Seal freezes the registry; subsequent Register calls panic.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (models.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, ErrNotFound{Name: name}
	}
	return t, nil
}

// Bind returns the descriptors the LLMClient needs to bind every
// registered tool, sorted by name for deterministic prompts.
func (r *Registry) Bind() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, models.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func validateSchema(schema json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schema)); err != nil {
		return err
	}
	_, err := compiler.Compile("schema.json")
	return err
}
