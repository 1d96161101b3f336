// Package tools implements the function-calling tools the chat assistant
// can invoke, and the dispatcher that executes them.
package tools

import (
	"context"

	"github.com/xiewu/frigate/internal/camera"
	"github.com/xiewu/frigate/internal/genai"
)

// Tool is one callable function exposed to the model. Execute receives the
// already-parsed arguments and the caller's camera access scope; errors are
// turned into JSON error envelopes by the dispatcher, never surfaced to
// the chat loop.
type Tool interface {
	Name() string
	Description() string
	Parameters() genai.ToolParameters
	Execute(ctx context.Context, args map[string]interface{}, scope camera.AccessScope) (string, error)
}

// BaseTool carries the static metadata so concrete tools only implement
// Execute.
type BaseTool struct {
	ToolName        string
	ToolDescription string
	ToolParameters  genai.ToolParameters
}

func (b *BaseTool) Name() string {
	return b.ToolName
}

func (b *BaseTool) Description() string {
	return b.ToolDescription
}

func (b *BaseTool) Parameters() genai.ToolParameters {
	return b.ToolParameters
}

func (b *BaseTool) Definition() genai.ToolDefinition {
	return genai.ToolDefinition{
		Name:        b.ToolName,
		Description: b.ToolDescription,
		Parameters:  b.ToolParameters,
	}
}
