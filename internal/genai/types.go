// Package genai implements the provider abstraction layer: one normalized
// chat/function-calling contract, adapters for each supported backend, a
// constructor registry, and the role-bound client manager.
package genai

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ToolParameters is the JSON-schema shape of a tool's arguments.
type ToolParameters = jsonschema.Definition

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ContentPart is one block of a multimodal message. Text parts carry Text,
// image parts carry a data URL in ImageURL.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// Message is one turn of a conversation. When Parts is non-empty it takes
// precedence over Content for providers that support multimodal input.
type Message struct {
	Role       MessageRole       `json:"role"`
	Content    string            `json:"content,omitempty"`
	Parts      []ContentPart     `json:"parts,omitempty"`
	Name       string            `json:"name,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
}

// ToolDefinition describes one callable function exposed to the model.
// Parameters is a JSON-schema object in go-openai's jsonschema form; each
// adapter translates it into its backend's native tool format.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  ToolParameters
}

// ToolCallRequest is a tool invocation requested by the model, normalized
// across providers. ID is stable enough to pair the later tool result with
// this request; adapters synthesize one when the backend does not supply it.
type ToolCallRequest struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResult pairs a tool call id with its serialized textual result.
type ToolCallResult struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
	FinishError     FinishReason = "error"
)

// NormalizedResponse is the single contract every adapter produces for a
// chat turn, blocking or streamed. If ToolCalls is non-empty, FinishReason
// is always FinishToolCalls.
type NormalizedResponse struct {
	Content      string            `json:"content,omitempty"`
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason FinishReason      `json:"finish_reason"`
}

func errorResponse() NormalizedResponse {
	return NormalizedResponse{FinishReason: FinishError}
}

// normalizeFinish corrects a mapped finish reason against the invariant
// that non-empty tool calls always finish as tool_calls, and that a turn
// with neither content nor tool calls is an error.
func normalizeFinish(reason FinishReason, content string, toolCalls []ToolCallRequest) FinishReason {
	if len(toolCalls) > 0 {
		return FinishToolCalls
	}
	switch reason {
	case FinishStop, FinishLength:
		return reason
	}
	if content != "" {
		return FinishStop
	}
	return FinishError
}

// StreamEvent is one event of a streamed chat turn: a content fragment
// while Response is nil, or the terminal normalized response.
type StreamEvent struct {
	Delta    string
	Response *NormalizedResponse
}

type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// Provider is the adapter contract. Implementations never panic and never
// surface transport or parse failures as errors: ChatWithTools returns a
// finish_reason=error response and SendVision returns ok=false instead, so
// the orchestrator can keep its loop alive on provider flakiness.
type Provider interface {
	// SendVision submits a single-shot multimodal prompt, outside the chat
	// loop. Returns ok=false on any transport or parse failure.
	SendVision(ctx context.Context, prompt string, images [][]byte) (string, bool)

	// ChatWithTools runs one blocking chat turn with optional tools.
	ChatWithTools(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) NormalizedResponse

	// ContextSize reports the best-effort token budget for the bound model.
	ContextSize() int
}

// StreamingProvider is implemented by adapters whose backend supports
// incremental delivery. The returned channel yields zero or more content
// deltas followed by exactly one terminal event carrying the normalized
// response, then closes. Cancelling ctx stops the stream without leaking
// the underlying connection.
type StreamingProvider interface {
	Provider
	ChatWithToolsStream(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) <-chan StreamEvent
}

// ClientConfig carries everything an adapter constructor needs. It is
// deliberately provider-agnostic; provider-specific knobs travel in
// ProviderOptions (client construction) and RuntimeOptions (per call).
type ClientConfig struct {
	Name            string
	Provider        string
	APIKey          string
	BaseURL         string
	Model           string
	Roles           []string
	Timeout         time.Duration
	ProviderOptions map[string]interface{}
	RuntimeOptions  map[string]interface{}
}

const (
	RoleBindingTools      = "tools"
	RoleBindingVision     = "vision"
	RoleBindingEmbeddings = "embeddings"
)

// intOption reads an integer from a loosely typed options map. TOML and
// JSON decode numbers differently, so both int64 and float64 are accepted.
func intOption(options map[string]interface{}, key string) (int, bool) {
	if options == nil {
		return 0, false
	}
	switch v := options[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func floatOption(options map[string]interface{}, key string) (float64, bool) {
	if options == nil {
		return 0, false
	}
	switch v := options[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
