package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	gemini "github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/xiewu/frigate/internal/logger"
)

// geminiClient talks to Gemini through the vendor SDK, which carries
// typed function declarations instead of raw JSON schemas.
type geminiClient struct {
	cfg    ClientConfig
	client *gemini.Client
}

// NewGemini builds the Gemini adapter.
func NewGemini(cfg ClientConfig) Provider {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := gemini.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		logger.Warnf("Error initializing Gemini: %v", err)
		return nil
	}

	return &geminiClient{cfg: cfg, client: client}
}

// toGeminiSchema converts a JSON-schema tool parameter definition into the
// SDK's typed schema.
func toGeminiSchema(def ToolParameters) *gemini.Schema {
	schema := &gemini.Schema{
		Description: def.Description,
		Required:    def.Required,
	}

	switch def.Type {
	case jsonschema.Object:
		schema.Type = gemini.TypeObject
	case jsonschema.Array:
		schema.Type = gemini.TypeArray
	case jsonschema.Integer:
		schema.Type = gemini.TypeInteger
	case jsonschema.Number:
		schema.Type = gemini.TypeNumber
	case jsonschema.Boolean:
		schema.Type = gemini.TypeBoolean
	default:
		schema.Type = gemini.TypeString
	}

	if len(def.Enum) > 0 {
		schema.Enum = def.Enum
	}
	if def.Items != nil {
		schema.Items = toGeminiSchema(*def.Items)
	}
	if len(def.Properties) > 0 {
		schema.Properties = make(map[string]*gemini.Schema, len(def.Properties))
		for name, property := range def.Properties {
			schema.Properties[name] = toGeminiSchema(property)
		}
	}

	return schema
}

func toGeminiTools(tools []ToolDefinition) []*gemini.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]*gemini.Tool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, &gemini.Tool{
			FunctionDeclarations: []*gemini.FunctionDeclaration{{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  toGeminiSchema(tool.Parameters),
			}},
		})
	}
	return result
}

func toGeminiToolConfig(choice ToolChoice) *gemini.ToolConfig {
	mode := gemini.FunctionCallingAuto
	switch choice {
	case ToolChoiceNone:
		mode = gemini.FunctionCallingNone
	case ToolChoiceRequired:
		mode = gemini.FunctionCallingAny
	}
	return &gemini.ToolConfig{
		FunctionCallingConfig: &gemini.FunctionCallingConfig{Mode: mode},
	}
}

// toGeminiContents translates the conversation. Gemini has no system role,
// so the system prompt is folded into the first user turn; tool results
// become function-response parts.
func toGeminiContents(conversation []Message) []*gemini.Content {
	var contents []*gemini.Content

	appendText := func(role string, msg Message) {
		parts := []gemini.Part{}
		if len(msg.Parts) > 0 {
			for _, part := range msg.Parts {
				switch part.Type {
				case PartTypeImageURL:
					if data, ok := decodeImageDataURL(part.ImageURL); ok {
						parts = append(parts, gemini.ImageData("jpeg", data))
					}
				default:
					if part.Text != "" {
						parts = append(parts, gemini.Text(part.Text))
					}
				}
			}
		} else if msg.Content != "" {
			parts = append(parts, gemini.Text(msg.Content))
		}
		for _, call := range msg.ToolCalls {
			parts = append(parts, gemini.FunctionCall{
				Name: call.Name,
				Args: call.Arguments,
			})
		}
		if len(parts) == 0 {
			parts = append(parts, gemini.Text(""))
		}
		contents = append(contents, &gemini.Content{Role: role, Parts: parts})
	}

	for _, msg := range conversation {
		switch msg.Role {
		case RoleSystem:
			if len(contents) > 0 && contents[0].Role == "user" {
				if text, ok := contents[0].Parts[0].(gemini.Text); ok {
					contents[0].Parts[0] = gemini.Text(msg.Content + "\n\n" + string(text))
					continue
				}
			}
			appendText("user", msg)
		case RoleAssistant:
			appendText("model", msg)
		case RoleTool:
			contents = append(contents, &gemini.Content{
				Role: "function",
				Parts: []gemini.Part{gemini.FunctionResponse{
					Name:     msg.Name,
					Response: map[string]interface{}{"result": msg.Content},
				}},
			})
		default:
			appendText("user", msg)
		}
	}

	return contents
}

func decodeImageDataURL(url string) ([]byte, bool) {
	encoded, ok := strings.CutPrefix(url, "data:image/jpeg;base64,")
	if !ok {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *geminiClient) model(tools []ToolDefinition, toolChoice ToolChoice) *gemini.GenerativeModel {
	model := c.client.GenerativeModel(c.cfg.Model)
	if len(tools) > 0 {
		model.Tools = toGeminiTools(tools)
		model.ToolConfig = toGeminiToolConfig(toolChoice)
	}
	if v, ok := floatOption(c.cfg.RuntimeOptions, "temperature"); ok {
		model.SetTemperature(float32(v))
	}
	if v, ok := intOption(c.cfg.RuntimeOptions, "max_tokens"); ok {
		model.SetMaxOutputTokens(int32(v))
	}
	return model
}

// mapGeminiFinish normalizes the SDK finish reason. Safety and recitation
// stops fold into stop; normalizeFinish upgrades to tool_calls when calls
// are present.
func mapGeminiFinish(reason gemini.FinishReason) FinishReason {
	switch reason {
	case gemini.FinishReasonStop, gemini.FinishReasonSafety, gemini.FinishReasonRecitation:
		return FinishStop
	case gemini.FinishReasonMaxTokens:
		return FinishLength
	}
	return ""
}

func (c *geminiClient) session(conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) (*gemini.ChatSession, []gemini.Part, bool) {
	contents := toGeminiContents(conversation)
	if len(contents) == 0 {
		return nil, nil, false
	}

	model := c.model(tools, toolChoice)
	session := model.StartChat()
	session.History = contents[:len(contents)-1]
	return session, contents[len(contents)-1].Parts, true
}

func (c *geminiClient) ChatWithTools(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) NormalizedResponse {
	session, parts, ok := c.session(conversation, tools, toolChoice)
	if !ok {
		return errorResponse()
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := session.SendMessage(ctx, parts...)
	if err != nil {
		logger.Warnf("Gemini returned an error: %v", err)
		return errorResponse()
	}
	if len(resp.Candidates) == 0 {
		logger.Warnf("Gemini returned no candidates")
		return errorResponse()
	}

	candidate := resp.Candidates[0]

	var content strings.Builder
	var toolCalls []ToolCallRequest
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch value := part.(type) {
			case gemini.Text:
				content.WriteString(string(value))
			case gemini.FunctionCall:
				toolCalls = append(toolCalls, geminiToolCall(value, len(toolCalls)))
			}
		}
	}

	text := strings.TrimSpace(content.String())
	return NormalizedResponse{
		Content:      text,
		ToolCalls:    toolCalls,
		FinishReason: normalizeFinish(mapGeminiFinish(candidate.FinishReason), text, toolCalls),
	}
}

func geminiToolCall(call gemini.FunctionCall, index int) ToolCallRequest {
	arguments := call.Args
	if arguments == nil {
		arguments = map[string]interface{}{}
	}
	// The SDK identifies calls by name only; synthesize an id so results
	// pair up even when the same function is called twice in one turn.
	return ToolCallRequest{
		ID:        fmt.Sprintf("%s_%d", call.Name, index),
		Name:      call.Name,
		Arguments: arguments,
	}
}

func (c *geminiClient) ChatWithToolsStream(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		session, parts, ok := c.session(conversation, tools, toolChoice)
		if !ok {
			resp := errorResponse()
			emitEvent(events, ctx.Done(), StreamEvent{Response: &resp})
			return
		}

		streamCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		iter := session.SendMessageStream(streamCtx, parts...)
		acc := newToolCallAccumulator()
		var content strings.Builder
		finish := FinishStop

		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				logger.Warnf("Gemini streaming returned an error: %v", err)
				errResp := errorResponse()
				emitEvent(events, ctx.Done(), StreamEvent{Response: &errResp})
				return
			}
			if len(resp.Candidates) == 0 {
				continue
			}

			candidate := resp.Candidates[0]
			if mapped := mapGeminiFinish(candidate.FinishReason); mapped != "" {
				finish = mapped
			}
			if candidate.Content == nil {
				continue
			}

			for _, part := range candidate.Content.Parts {
				switch value := part.(type) {
				case gemini.Text:
					content.WriteString(string(value))
					if !emitEvent(events, ctx.Done(), StreamEvent{Delta: string(value)}) {
						return
					}
				case gemini.FunctionCall:
					// Gemini delivers each call whole; give it the next
					// stream index and let the accumulator finalize ids.
					args, err := json.Marshal(value.Args)
					if err != nil {
						args = []byte("{}")
					}
					acc.add(len(acc.order), "", value.Name, string(args))
				}
			}
		}

		resp := finalizeStream(content.String(), finish, acc)
		emitEvent(events, ctx.Done(), StreamEvent{Response: &resp})
	}()

	return events
}

func (c *geminiClient) SendVision(ctx context.Context, prompt string, images [][]byte) (string, bool) {
	parts := make([]gemini.Part, 0, len(images)+1)
	for _, image := range images {
		parts = append(parts, gemini.ImageData("jpeg", image))
	}
	parts = append(parts, gemini.Text(prompt))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.model(nil, ToolChoiceAuto).GenerateContent(ctx, parts...)
	if err != nil {
		logger.Warnf("Gemini returned an error: %v", err)
		return "", false
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(gemini.Text); ok {
			content.WriteString(string(text))
		}
	}
	if content.Len() == 0 {
		return "", false
	}
	return strings.TrimSpace(content.String()), true
}

// ContextSize is fixed for Gemini models.
func (c *geminiClient) ContextSize() int {
	return 1000000
}
