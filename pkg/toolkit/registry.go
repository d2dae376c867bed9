package toolkit

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Registry is a thread-safe store of registered tools, keyed by canonical
// name with alias resolution.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	aliases map[string]string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		aliases: make(map[string]string),
	}
}

// validateDefinition checks that a tool's Parameters conform to the
// minimal JSON Schema shape the dispatcher requires: a non-nil object
// schema with type "object" and, if present, a required array of strings.
func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Parameters == nil {
		return fmt.Errorf("tool %q: parameters cannot be nil", def.Name)
	}
	raw, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("tool %q: failed to marshal parameters: %w", def.Name, err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("tool %q: parameters must be a JSON object", def.Name)
	}
	typeVal, ok := params["type"]
	if !ok {
		return fmt.Errorf("tool %q: parameters must have a 'type' field", def.Name)
	}
	typeStr, ok := typeVal.(string)
	if !ok || typeStr != "object" {
		return fmt.Errorf("tool %q: parameters.type must be 'object'", def.Name)
	}
	if requiredVal, exists := params["required"]; exists {
		required, ok := requiredVal.([]any)
		if !ok {
			return fmt.Errorf("tool %q: parameters.required must be an array", def.Name)
		}
		for i, item := range required {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("tool %q: parameters.required[%d] must be a string", def.Name, i)
			}
		}
	}
	return nil
}

// Register validates and stores a tool under its canonical name.
func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()
	if err := validateDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = tool
	return nil
}

// RegisterAlias lets a second name resolve to an already-registered tool,
// used for the common model-hallucinated synonyms (e.g. "create_file" for
// "write_file").
func (r *Registry) RegisterAlias(alias, canonical string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[canonical]; !ok {
		return fmt.Errorf("cannot alias %q: tool %q not registered", alias, canonical)
	}
	r.aliases[normalizeName(alias)] = canonical
	return nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get looks up a tool by canonical name or alias.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tool, ok := r.tools[name]; ok {
		return tool, nil
	}
	if canonical, ok := r.aliases[normalizeName(name)]; ok {
		return r.tools[canonical], nil
	}
	return nil, fmt.Errorf("tool %q not found", name)
}

// GetDefinitions returns every registered tool's definition, for sending to
// the model's tool-calling contract.
func (r *Registry) GetDefinitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}
