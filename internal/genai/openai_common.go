package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xiewu/frigate/internal/logger"
)

// openAIBase holds the chat/vision mechanics shared by every adapter that
// speaks the OpenAI chat-completions wire format (OpenAI, Azure OpenAI,
// llama.cpp and other compatible local servers). The concrete adapters
// differ only in client construction, context sizing and whether they
// expose the streaming capability.
type openAIBase struct {
	cfg    ClientConfig
	client *openai.Client
	label  string
}

func toOpenAIMessages(conversation []Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, msg := range conversation {
		m := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}

		if len(msg.Parts) > 0 {
			for _, part := range msg.Parts {
				switch part.Type {
				case PartTypeImageURL:
					m.MultiContent = append(m.MultiContent, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    part.ImageURL,
							Detail: openai.ImageURLDetailLow,
						},
					})
				default:
					m.MultiContent = append(m.MultiContent, openai.ChatMessagePart{
						Type: openai.ChatMessagePartTypeText,
						Text: part.Text,
					})
				}
			}
		} else {
			m.Content = msg.Content
		}

		for _, call := range msg.ToolCalls {
			args, err := json.Marshal(call.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(args),
				},
			})
		}

		messages = append(messages, m)
	}
	return messages
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return result
}

func toOpenAIToolChoice(choice ToolChoice) string {
	switch choice {
	case ToolChoiceNone:
		return "none"
	case ToolChoiceRequired:
		return "required"
	default:
		return "auto"
	}
}

// mapOpenAIFinish maps a native finish status into the normalized buckets.
// Content-filter stops are not a distinct bucket downstream, so they fold
// into stop; normalizeFinish later forces tool_calls when calls exist.
func mapOpenAIFinish(reason openai.FinishReason) FinishReason {
	switch reason {
	case openai.FinishReasonStop, openai.FinishReasonContentFilter:
		return FinishStop
	case openai.FinishReasonLength:
		return FinishLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return FinishToolCalls
	}
	return ""
}

func parseOpenAIToolCalls(calls []openai.ToolCall, label string) []ToolCallRequest {
	if len(calls) == 0 {
		return nil
	}
	result := make([]ToolCallRequest, 0, len(calls))
	for _, call := range calls {
		arguments := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &arguments); err != nil {
				logger.Warnf("%s: failed to parse tool call arguments for %s: %v", label, call.Function.Name, err)
				arguments = map[string]interface{}{}
			}
		}
		result = append(result, ToolCallRequest{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: arguments,
		})
	}
	return result
}

// applyRuntimeOptions copies supported per-call knobs from the loosely
// typed runtime options map onto the request.
func applyRuntimeOptions(req *openai.ChatCompletionRequest, options map[string]interface{}) {
	if v, ok := floatOption(options, "temperature"); ok {
		req.Temperature = float32(v)
	}
	if v, ok := floatOption(options, "top_p"); ok {
		req.TopP = float32(v)
	}
	if v, ok := floatOption(options, "presence_penalty"); ok {
		req.PresencePenalty = float32(v)
	}
	if v, ok := floatOption(options, "frequency_penalty"); ok {
		req.FrequencyPenalty = float32(v)
	}
	if v, ok := intOption(options, "max_tokens"); ok {
		req.MaxTokens = v
	}
}

func (b *openAIBase) buildRequest(conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    b.cfg.Model,
		Messages: toOpenAIMessages(conversation),
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = toOpenAIToolChoice(toolChoice)
	}
	applyRuntimeOptions(&req, b.cfg.RuntimeOptions)
	return req
}

func (b *openAIBase) ChatWithTools(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) NormalizedResponse {
	req := b.buildRequest(conversation, tools, toolChoice)

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.Warnf("%s returned an error: %v", b.label, err)
		return errorResponse()
	}
	if len(resp.Choices) == 0 {
		logger.Warnf("%s returned no choices", b.label)
		return errorResponse()
	}

	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	toolCalls := parseOpenAIToolCalls(choice.Message.ToolCalls, b.label)

	return NormalizedResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: normalizeFinish(mapOpenAIFinish(choice.FinishReason), content, toolCalls),
	}
}

// streamChat runs the streamed variant of ChatWithTools, forwarding content
// deltas and accumulating tool-call fragments per stream index until the
// turn completes.
func (b *openAIBase) streamChat(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		req := b.buildRequest(conversation, tools, toolChoice)
		req.Stream = true

		stream, err := b.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			logger.Warnf("%s streaming returned an error: %v", b.label, err)
			resp := errorResponse()
			emitEvent(events, ctx.Done(), StreamEvent{Response: &resp})
			return
		}
		defer stream.Close()

		acc := newToolCallAccumulator()
		var content strings.Builder
		finish := FinishStop

		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				logger.Warnf("%s streaming returned an error: %v", b.label, err)
				resp := errorResponse()
				emitEvent(events, ctx.Done(), StreamEvent{Response: &resp})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				if mapped := mapOpenAIFinish(choice.FinishReason); mapped != "" {
					finish = mapped
				}
			}
			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				if !emitEvent(events, ctx.Done(), StreamEvent{Delta: choice.Delta.Content}) {
					return
				}
			}
			for _, call := range choice.Delta.ToolCalls {
				index := 0
				if call.Index != nil {
					index = *call.Index
				}
				acc.add(index, call.ID, call.Function.Name, call.Function.Arguments)
			}
		}

		resp := finalizeStream(content.String(), finish, acc)
		emitEvent(events, ctx.Done(), StreamEvent{Response: &resp})
	}()

	return events
}

func (b *openAIBase) SendVision(ctx context.Context, prompt string, images [][]byte) (string, bool) {
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	for _, image := range images {
		encoded := base64.StdEncoding.EncodeToString(image)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", encoded),
				Detail: openai.ImageURLDetailLow,
			},
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model: b.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	applyRuntimeOptions(&req, b.cfg.RuntimeOptions)

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.Warnf("%s returned an error: %v", b.label, err)
		return "", false
	}
	if len(resp.Choices) == 0 {
		return "", false
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), true
}
