package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/xiewu/frigate/internal/camera"
	"github.com/xiewu/frigate/internal/genai"
	"github.com/xiewu/frigate/internal/logger"
)

// Dispatcher owns the assistant's tool set and executes model-requested
// calls. Tool failures never escape: unknown tools, argument mismatches,
// execution errors and panics all come back as JSON error envelopes the
// model can read and recover from.
type Dispatcher struct {
	tools   []Tool
	index   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewDispatcher builds the dispatcher over the given tools, preserving
// their order for Definitions.
func NewDispatcher(toolSet ...Tool) *Dispatcher {
	d := &Dispatcher{
		tools:   toolSet,
		index:   make(map[string]Tool, len(toolSet)),
		schemas: make(map[string]*jsonschema.Schema, len(toolSet)),
	}

	for _, tool := range toolSet {
		name := tool.Name()
		if _, exists := d.index[name]; exists {
			logger.Warnf("Replacing existing tool: %s", name)
		}
		d.index[name] = tool

		schema, err := compileSchema(name, tool.Parameters())
		if err != nil {
			logger.Warnf("Failed to compile argument schema for %s: %v", name, err)
			continue
		}
		d.schemas[name] = schema
		logger.AIDebugf("Registered tool: %s", name)
	}

	return d
}

func compileSchema(name string, parameters genai.ToolParameters) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString(name+".json", string(raw))
}

// Definitions returns the tool definitions in registration order, so the
// model sees a stable tool list across turns.
func (d *Dispatcher) Definitions() []genai.ToolDefinition {
	definitions := make([]genai.ToolDefinition, 0, len(d.tools))
	for _, tool := range d.tools {
		definitions = append(definitions, genai.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return definitions
}

// Execute runs one model-requested tool call and pairs the result with the
// call id.
func (d *Dispatcher) Execute(ctx context.Context, call genai.ToolCallRequest, scope camera.AccessScope) genai.ToolCallResult {
	result := genai.ToolCallResult{ID: call.ID}

	tool, ok := d.index[call.Name]
	if !ok {
		logger.Warnf("Unknown tool requested: %s", call.Name)
		result.Content = errorEnvelope(fmt.Sprintf("Unknown tool: %s", call.Name))
		return result
	}

	arguments := call.Arguments
	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	// Schema mismatches are logged but the tool still runs; tools treat
	// missing or malformed arguments as defaults where they can.
	if schema, ok := d.schemas[call.Name]; ok {
		if err := schema.Validate(looselyTyped(arguments)); err != nil {
			logger.Warnf("Arguments for %s do not match schema: %v", call.Name, err)
		}
	}

	logger.AIDebugf("Executing tool: %s (id: %s)", call.Name, call.ID)
	result.Content = d.run(ctx, tool, arguments, scope)
	return result
}

func (d *Dispatcher) run(ctx context.Context, tool Tool, arguments map[string]interface{}, scope camera.AccessScope) (content string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Tool %s panicked: %v", tool.Name(), r)
			content = errorEnvelope(fmt.Sprintf("Tool execution failed: %v", r))
		}
	}()

	output, err := tool.Execute(ctx, arguments, scope)
	if err != nil {
		logger.Errorf("Tool execution error: %s: %v", tool.Name(), err)
		return errorEnvelope(fmt.Sprintf("Tool execution failed: %v", err))
	}
	return output
}

// looselyTyped round-trips the arguments through JSON so the validator
// sees plain decoded values regardless of how the adapter built the map.
func looselyTyped(arguments map[string]interface{}) interface{} {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return arguments
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return arguments
	}
	return value
}
