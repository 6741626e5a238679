package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var toolNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// RiskLevel is advisory metadata a front end can use to gate confirmation
// prompts. The registry itself never enforces it.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Tool is anything the agent loop can invoke by name with a JSON argument
// object. Implementations live under internal/tools.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	RiskLevel() RiskLevel
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the set of tools available to a loop, keyed by name, and
// validates arguments against each tool's schema before dispatch.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	validators map[string]*jsonschema.Schema
	logger     *slog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:      make(map[string]Tool),
		validators: make(map[string]*jsonschema.Schema),
		logger:     logger.With("component", "tool_registry"),
	}
}

// Register adds a tool, compiling its schema up front so invocation-time
// validation never fails on a malformed schema.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("tool name %q must match %s", name, toolNamePattern.String())
	}

	compiled, err := compileSchema(name, tool.Schema())
	if err != nil {
		return fmt.Errorf("tool %q: compile schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
	r.validators[name] = compiled
	r.logger.Debug("tool registered", "tool", name)
	return nil
}

// Unregister removes a tool. It is a no-op if the tool isn't present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.validators, name)
}

// Lookup returns the tool registered under name, if any.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the currently registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// Schemas returns every registered tool's argument schema, keyed by tool
// name. Descriptions are not included.
func (r *Registry) Schemas() map[string]Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Schema, len(r.tools))
	for name, t := range r.tools {
		out[name] = t.Schema()
	}
	return out
}

// Invoke validates args against the tool's schema and dispatches, recovering
// from panics so a single misbehaving tool can't take down the loop.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (result string, err error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	validator := r.validators[name]
	r.mu.RUnlock()

	if !ok {
		return "", newToolError(ErrKindNotFound, name, "no such tool", nil)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	if validator != nil {
		var decoded any
		if jerr := json.Unmarshal(args, &decoded); jerr != nil {
			return "", newToolError(ErrKindInvalidParam, name, "arguments are not valid JSON", jerr)
		}
		if verr := validator.Validate(decoded); verr != nil {
			return "", classifyValidationError(name, verr)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = newToolError(ErrKindExecutionFailed, name, fmt.Sprintf("panic: %v", rec), nil)
			r.logger.Error("tool panicked", "tool", name, "recover", rec)
		}
	}()

	out, invokeErr := tool.Invoke(ctx, args)
	if invokeErr != nil {
		if te, ok := IsToolError(invokeErr); ok {
			return "", te
		}
		return "", newToolError(ErrKindExecutionFailed, name, invokeErr.Error(), invokeErr)
	}
	return out, nil
}

// classifyValidationError maps a jsonschema validation failure to the
// spec's missing_required vs invalid_parameter distinction by inspecting
// the keyword that failed.
func classifyValidationError(toolName string, verr error) *ToolError {
	msg := verr.Error()
	if ve, ok := verr.(*jsonschema.ValidationError); ok {
		for _, cause := range ve.Causes {
			if strings.Contains(cause.KeywordLocation, "required") {
				return newToolError(ErrKindMissingRequired, toolName, cause.Error(), verr)
			}
		}
		if strings.Contains(ve.KeywordLocation, "required") {
			return newToolError(ErrKindMissingRequired, toolName, msg, verr)
		}
	}
	return newToolError(ErrKindInvalidParam, toolName, msg, verr)
}

func compileSchema(name string, s Schema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schemaToJSONSchema(s))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func schemaToJSONSchema(s Schema) map[string]any {
	out := map[string]any{"type": orDefault(s.Type, "object")}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for k, p := range s.Properties {
			props[k] = propertyToJSONSchema(p)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

func propertyToJSONSchema(p Property) map[string]any {
	out := map[string]any{"type": orDefault(p.Type, "string")}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		enum := make([]any, len(p.Enum))
		for i, v := range p.Enum {
			enum[i] = v
		}
		out["enum"] = enum
	}
	if p.Items != nil {
		out["items"] = propertyToJSONSchema(*p.Items)
	}
	if len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for k, sub := range p.Properties {
			props[k] = propertyToJSONSchema(sub)
		}
		out["properties"] = props
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
