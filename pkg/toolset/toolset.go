// Package toolset binds declarative tool schemas to executable actions and
// validates model-issued tool calls before running them. Tool failures are
// conversational data: they come back as tool results the model can read and
// correct, never as runtime faults.
package toolset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/oba/pkg/message"
	"github.com/harun/oba/pkg/model"
)

// ErrDuplicateTool is returned when two definitions share a name.
var ErrDuplicateTool = errors.New("duplicate tool")

// Parameter describes one argument of a tool.
type Parameter struct {
	Name        string
	Type        string // JSON schema type: string, number, integer, boolean
	Description string
	Required    bool
}

// Output is what a handler produces: the result text handed back to the
// model, plus the dollar cost incurred by the tool itself, if any.
type Output struct {
	Text string
	Cost float64
}

// Handler executes a tool call with validated arguments. Long-running
// handlers must honor ctx cancellation.
type Handler func(ctx context.Context, args map[string]any) (Output, error)

// Definition declares a tool: its schema and the action bound to it.
type Definition struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}

type entry struct {
	def    Definition
	schema *gojsonschema.Schema
	spec   model.ToolSpec
}

// Registry holds the registered tools of one agent.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	order  []string
	logger zerolog.Logger
}

// NewRegistry builds a registry from the given definitions. Registration
// order is preserved in Specs.
func NewRegistry(logger zerolog.Logger, defs ...Definition) (*Registry, error) {
	r := &Registry{
		tools:  make(map[string]*entry),
		logger: logger,
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. It fails with ErrDuplicateTool if the name is taken,
// and rejects definitions without a name or handler.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition without a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}

	schemaObject := buildSchemaObject(def.Parameters)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaObject))
	if err != nil {
		return fmt.Errorf("tool %q: compile schema: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}

	r.tools[def.Name] = &entry{
		def:    def,
		schema: schema,
		spec: model.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Schema:      schemaObject,
		},
	}
	r.order = append(r.order, def.Name)

	r.logger.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Specs returns the wire specs of all registered tools in registration order.
func (r *Registry) Specs() []model.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]model.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].spec)
	}
	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke validates the call's arguments against the tool schema and runs the
// bound handler. Every failure mode (unknown tool, invalid arguments, handler
// error, handler panic) is captured as the result text so the model can react
// to it; Invoke itself never fails.
func (r *Registry) Invoke(ctx context.Context, call *message.ToolCall) *message.ToolResult {
	r.mu.RLock()
	ent, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn().Str("tool", call.Name).Msg("Call for unregistered tool")
		return message.NewToolResult(call.CallID,
			fmt.Sprintf("[Tool '%s' is not registered]", call.Name))
	}

	validation, err := ent.schema.Validate(gojsonschema.NewGoLoader(call.ParsedArgs))
	if err != nil {
		return message.NewToolResult(call.CallID,
			fmt.Sprintf("[Tool '%s' call failed: could not validate arguments: %v]", call.Name, err))
	}
	if !validation.Valid() {
		descs := make([]string, 0, len(validation.Errors()))
		for _, verr := range validation.Errors() {
			descs = append(descs, verr.String())
		}
		return message.NewToolResult(call.CallID,
			fmt.Sprintf("[Tool '%s' received invalid arguments: %s]", call.Name, strings.Join(descs, "; ")))
	}

	out, err := r.run(ctx, ent.def, call.ParsedArgs)
	if err != nil {
		r.logger.Warn().Str("tool", call.Name).Err(err).Msg("Tool call failed")
		return message.NewToolResult(call.CallID,
			fmt.Sprintf("[Tool '%s' call failed: %v]", call.Name, err))
	}

	result := message.NewToolResult(call.CallID, out.Text)
	result.Cost = out.Cost
	return result
}

// run executes the handler with panic recovery.
func (r *Registry) run(ctx context.Context, def Definition, args map[string]any) (out Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return def.Handler(ctx, args)
}

func buildSchemaObject(params []Parameter) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
