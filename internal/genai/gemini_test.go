package genai

import (
	"testing"

	gemini "github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

func TestToGeminiSchemaConvertsNestedDefinitions(t *testing.T) {
	def := ToolParameters{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"camera": {Type: jsonschema.String, Description: "camera id"},
			"zones": {
				Type:  jsonschema.Array,
				Items: &jsonschema.Definition{Type: jsonschema.String},
			},
			"limit": {Type: jsonschema.Integer},
		},
		Required: []string{"camera"},
	}

	schema := toGeminiSchema(def)
	if schema.Type != gemini.TypeObject {
		t.Fatalf("expected object, got %v", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "camera" {
		t.Fatalf("unexpected required: %v", schema.Required)
	}
	if schema.Properties["camera"].Type != gemini.TypeString {
		t.Fatalf("expected string camera property")
	}
	zones := schema.Properties["zones"]
	if zones.Type != gemini.TypeArray || zones.Items == nil || zones.Items.Type != gemini.TypeString {
		t.Fatalf("unexpected zones schema: %+v", zones)
	}
	if schema.Properties["limit"].Type != gemini.TypeInteger {
		t.Fatalf("expected integer limit property")
	}
}

func TestToGeminiContentsFoldsSystemIntoFirstUserTurn(t *testing.T) {
	contents := toGeminiContents([]Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleSystem, Content: "you are an assistant"},
	})

	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	text, ok := contents[0].Parts[0].(gemini.Text)
	if !ok {
		t.Fatalf("expected text part")
	}
	if string(text) != "you are an assistant\n\nhello" {
		t.Fatalf("unexpected folded text: %q", string(text))
	}
}

func TestToGeminiContentsMapsRoles(t *testing.T) {
	contents := toGeminiContents([]Message{
		{Role: RoleUser, Content: "who is outside?"},
		{Role: RoleAssistant, ToolCalls: []ToolCallRequest{{
			ID: "call_1", Name: "get_live_context",
			Arguments: map[string]interface{}{"camera": "front"},
		}}},
		{Role: RoleTool, Name: "get_live_context", Content: `{"detections":[]}`},
	})

	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" {
		t.Fatalf("expected model role, got %s", contents[1].Role)
	}
	call, ok := contents[1].Parts[0].(gemini.FunctionCall)
	if !ok || call.Name != "get_live_context" {
		t.Fatalf("expected function call part, got %+v", contents[1].Parts[0])
	}
	if contents[2].Role != "function" {
		t.Fatalf("expected function role, got %s", contents[2].Role)
	}
	response, ok := contents[2].Parts[0].(gemini.FunctionResponse)
	if !ok || response.Name != "get_live_context" {
		t.Fatalf("expected function response part")
	}
	if response.Response["result"] != `{"detections":[]}` {
		t.Fatalf("unexpected response payload: %+v", response.Response)
	}
}

func TestMapGeminiFinishSafetyFoldsToStop(t *testing.T) {
	if got := mapGeminiFinish(gemini.FinishReasonSafety); got != FinishStop {
		t.Fatalf("expected stop, got %s", got)
	}
	if got := mapGeminiFinish(gemini.FinishReasonRecitation); got != FinishStop {
		t.Fatalf("expected stop, got %s", got)
	}
	if got := mapGeminiFinish(gemini.FinishReasonMaxTokens); got != FinishLength {
		t.Fatalf("expected length, got %s", got)
	}
}
