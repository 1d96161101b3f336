package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/xiewu/frigate/internal/camera"
	"github.com/xiewu/frigate/internal/event"
	"github.com/xiewu/frigate/internal/genai"
)

type faultyTool struct {
	BaseTool
	fail        error
	shouldPanic bool
}

func (f *faultyTool) Execute(ctx context.Context, args map[string]interface{}, scope camera.AccessScope) (string, error) {
	if f.shouldPanic {
		panic("boom")
	}
	if f.fail != nil {
		return "", f.fail
	}
	return `{"ok":true}`, nil
}

func newFaultyTool(name string) *faultyTool {
	return &faultyTool{
		BaseTool: BaseTool{
			ToolName:       name,
			ToolParameters: genai.ToolParameters{Type: jsonschema.Object},
		},
	}
}

func TestDispatcherDefinitionsStableOrder(t *testing.T) {
	d := NewDispatcher(
		NewSearchObjectsTool(event.NewMemoryStore(), 10),
		NewLiveContextTool(camera.NewStateStore(), nil),
	)

	definitions := d.Definitions()
	if len(definitions) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(definitions))
	}
	if definitions[0].Name != "search_objects" || definitions[1].Name != "get_live_context" {
		t.Fatalf("unexpected order: %s, %s", definitions[0].Name, definitions[1].Name)
	}
}

func TestDispatcherUnknownTool(t *testing.T) {
	d := NewDispatcher(newFaultyTool("known"))

	result := d.Execute(context.Background(), genai.ToolCallRequest{ID: "call_1", Name: "mystery"}, camera.AccessScope{})
	if result.ID != "call_1" {
		t.Fatalf("expected result paired with call id, got %q", result.ID)
	}
	var envelope map[string]string
	if err := json.Unmarshal([]byte(result.Content), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope["error"] != "Unknown tool: mystery" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestDispatcherExecutionErrorBecomesEnvelope(t *testing.T) {
	tool := newFaultyTool("broken")
	tool.fail = errors.New("backend unavailable")
	d := NewDispatcher(tool)

	result := d.Execute(context.Background(), genai.ToolCallRequest{ID: "call_1", Name: "broken"}, camera.AccessScope{})
	if !strings.Contains(result.Content, "Tool execution failed") {
		t.Fatalf("expected failure envelope, got %q", result.Content)
	}
}

func TestDispatcherPanicRecovered(t *testing.T) {
	tool := newFaultyTool("panicky")
	tool.shouldPanic = true
	d := NewDispatcher(tool)

	result := d.Execute(context.Background(), genai.ToolCallRequest{ID: "call_1", Name: "panicky"}, camera.AccessScope{})
	if !strings.Contains(result.Content, "Tool execution failed") {
		t.Fatalf("expected failure envelope, got %q", result.Content)
	}
}

func TestDispatcherSchemaMismatchStillExecutes(t *testing.T) {
	d := NewDispatcher(NewLiveContextTool(camera.NewStateStore(), []string{"front_door"}))

	// camera must be a string; the tool still runs and reports its own error.
	result := d.Execute(context.Background(), genai.ToolCallRequest{
		ID:        "call_1",
		Name:      "get_live_context",
		Arguments: map[string]interface{}{"camera": 42},
	}, camera.AccessScope{})

	var envelope map[string]string
	if err := json.Unmarshal([]byte(result.Content), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope["error"] != "Camera parameter is required" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}
