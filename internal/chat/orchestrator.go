// Package chat runs the multi-turn tool-calling loop between the user,
// the bound provider and the assistant's tools, in blocking and streaming
// form.
package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xiewu/frigate/internal/camera"
	"github.com/xiewu/frigate/internal/chat/tools"
	"github.com/xiewu/frigate/internal/genai"
	"github.com/xiewu/frigate/internal/logger"
)

const (
	minToolIterations = 1
	maxToolIterations = 10

	maxIterationsMessage = "I reached the maximum number of tool call iterations. Please try rephrasing your question."
	genericErrorMessage  = "An error occurred while processing your request."
	notConfiguredMessage = "GenAI is not configured. Please configure a GenAI provider in your config."

	liveImageMaxDimension = 1024
)

// IncomingMessage is one prior conversation turn supplied by the caller.
type IncomingMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Request is one chat completion request. IncludeLiveImage names a camera
// whose current frame is attached to the first user message.
type Request struct {
	Messages          []IncomingMessage `json:"messages"`
	MaxToolIterations int               `json:"max_tool_iterations,omitempty"`
	IncludeLiveImage  string            `json:"include_live_image,omitempty"`
}

// ExecutedToolCall records one tool invocation performed during the loop.
type ExecutedToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Response  string                 `json:"response"`
}

// ResponseMessage is the assistant's final turn.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the blocking-mode result.
type Response struct {
	Message        ResponseMessage    `json:"message"`
	FinishReason   genai.FinishReason `json:"finish_reason"`
	ToolIterations int                `json:"tool_iterations"`
	ToolCalls      []ExecutedToolCall `json:"tool_calls,omitempty"`
}

func assistantReply(content string) ResponseMessage {
	return ResponseMessage{Role: string(genai.RoleAssistant), Content: content}
}

// Orchestrator drives the tool-calling loop. cameras maps camera id to
// friendly name for the system prompt.
type Orchestrator struct {
	manager           *genai.Manager
	dispatcher        *tools.Dispatcher
	frames            camera.FrameSource
	cameras           map[string]string
	defaultIterations int
}

func NewOrchestrator(manager *genai.Manager, dispatcher *tools.Dispatcher, frames camera.FrameSource, cameras map[string]string, defaultIterations int) *Orchestrator {
	return &Orchestrator{
		manager:           manager,
		dispatcher:        dispatcher,
		frames:            frames,
		cameras:           cameras,
		defaultIterations: defaultIterations,
	}
}

func friendlyFromID(id string) string {
	words := strings.Split(id, "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

func (o *Orchestrator) systemPrompt(scope camera.AccessScope, liveImageCamera string) string {
	now := time.Now()
	dateStr := now.Format("2006-01-02")
	timeStr := now.Format("15:04:05 MST")

	var cameraIDs []string
	for id := range o.cameras {
		if scope.Allows(id) {
			cameraIDs = append(cameraIDs, id)
		}
	}
	sort.Strings(cameraIDs)

	var camerasSection string
	if len(cameraIDs) > 0 {
		lines := make([]string, 0, len(cameraIDs))
		for _, id := range cameraIDs {
			friendly := o.cameras[id]
			if friendly == "" {
				friendly = friendlyFromID(id)
			}
			lines = append(lines, fmt.Sprintf("  - %s (ID: %s)", friendly, id))
		}
		camerasSection = "\n\nAvailable cameras:\n" + strings.Join(lines, "\n") +
			"\n\nWhen users refer to cameras by their friendly name (e.g., 'Back Deck Camera'), " +
			"use the corresponding camera ID (e.g., 'back_deck_cam') in tool calls."
	}

	var liveImageNote string
	if liveImageCamera != "" {
		liveImageNote = fmt.Sprintf(
			"\n\nThe first user message includes a live image from camera '%s'. "+
				"Use get_live_context for that camera to get current detection details "+
				"(objects, zones) to aid in understanding the image.", liveImageCamera)
	}

	return fmt.Sprintf(`You are a helpful assistant for a security camera NVR system. You help users answer questions about their cameras, detected objects, and events.

Current date and time: %s at %s

When users ask questions about "today", "yesterday", "this week", etc., use the current date above as reference.
When searching for objects or events, use ISO 8601 format for dates (e.g., %sT00:00:00Z for the start of today).
Always be accurate with time calculations based on the current date provided.%s%s`,
		dateStr, timeStr, dateStr, camerasSection, liveImageNote)
}

// liveImageURL fetches, downscales and encodes the camera's current frame.
// Returns "" when the camera is unknown, out of scope or has no frame.
func (o *Orchestrator) liveImageURL(cameraID string, scope camera.AccessScope) string {
	if cameraID == "" || !scope.Allows(cameraID) {
		return ""
	}
	if _, ok := o.cameras[cameraID]; !ok {
		return ""
	}

	frame := o.frames.LatestFrame(cameraID)
	if frame == nil {
		return ""
	}

	frame = camera.DownscaleJPEG(frame, liveImageMaxDimension)
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)
}

// buildConversation assembles the provider conversation: system prompt,
// then the caller's turns, with the live image attached to the first user
// message only.
func (o *Orchestrator) buildConversation(req Request, scope camera.AccessScope) []genai.Message {
	conversation := []genai.Message{{
		Role:    genai.RoleSystem,
		Content: o.systemPrompt(scope, req.IncludeLiveImage),
	}}

	firstUserSeen := false
	for _, msg := range req.Messages {
		m := genai.Message{
			Role:       genai.MessageRole(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}

		if msg.Role == string(genai.RoleUser) && !firstUserSeen && req.IncludeLiveImage != "" {
			firstUserSeen = true
			if url := o.liveImageURL(req.IncludeLiveImage, scope); url != "" {
				m.Content = ""
				m.Parts = []genai.ContentPart{
					{Type: genai.PartTypeText, Text: msg.Content},
					{Type: genai.PartTypeImageURL, ImageURL: url},
				}
			}
		}

		conversation = append(conversation, m)
	}

	return conversation
}

func (o *Orchestrator) iterationCap(requested int) int {
	limit := requested
	if limit == 0 {
		limit = o.defaultIterations
	}
	if limit < minToolIterations {
		limit = minToolIterations
	}
	if limit > maxToolIterations {
		limit = maxToolIterations
	}
	return limit
}

// executeCalls runs the requested tool calls strictly in provider order,
// returning the execution records and the role=tool messages to append.
func (o *Orchestrator) executeCalls(ctx context.Context, calls []genai.ToolCallRequest, scope camera.AccessScope) ([]ExecutedToolCall, []genai.Message) {
	executed := make([]ExecutedToolCall, 0, len(calls))
	messages := make([]genai.Message, 0, len(calls))

	for _, call := range calls {
		result := o.dispatcher.Execute(ctx, call, scope)
		executed = append(executed, ExecutedToolCall{
			Name:      call.Name,
			Arguments: call.Arguments,
			Response:  result.Content,
		})
		messages = append(messages, genai.Message{
			Role:       genai.RoleTool,
			ToolCallID: result.ID,
			Name:       call.Name,
			Content:    result.Content,
		})
	}

	return executed, messages
}

func assistantMessage(resp genai.NormalizedResponse) genai.Message {
	return genai.Message{
		Role:      genai.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
}

// Complete runs the blocking tool-calling loop to a final answer.
func (o *Orchestrator) Complete(ctx context.Context, req Request, scope camera.AccessScope) Response {
	client := o.manager.ToolClient()
	if client == nil {
		logger.Warnf("Chat completion requested but no tools provider is bound.")
		return Response{Message: assistantReply(notConfiguredMessage), FinishReason: genai.FinishError}
	}

	conversation := o.buildConversation(req, scope)
	definitions := o.dispatcher.Definitions()
	limit := o.iterationCap(req.MaxToolIterations)

	var allCalls []ExecutedToolCall
	iterations := 0

	for iterations < limit {
		logger.Debugf("Calling LLM (iteration %d/%d) with %d message(s)", iterations+1, limit, len(conversation))

		resp := client.ChatWithTools(ctx, conversation, definitions, genai.ToolChoiceAuto)
		if resp.FinishReason == genai.FinishError {
			logger.Errorf("GenAI client returned an error")
			return Response{Message: assistantReply(genericErrorMessage), FinishReason: genai.FinishError, ToolIterations: iterations, ToolCalls: allCalls}
		}

		conversation = append(conversation, assistantMessage(resp))

		if len(resp.ToolCalls) == 0 {
			logger.Debugf("Chat completion finished (iterations: %d)", iterations)
			return Response{
				Message:        assistantReply(resp.Content),
				FinishReason:   resp.FinishReason,
				ToolIterations: iterations,
				ToolCalls:      allCalls,
			}
		}

		iterations++
		executed, toolMessages := o.executeCalls(ctx, resp.ToolCalls, scope)
		allCalls = append(allCalls, executed...)
		conversation = append(conversation, toolMessages...)
	}

	logger.Warnf("Max tool iterations (%d) reached. Returning partial response.", limit)
	return Response{
		Message:        assistantReply(maxIterationsMessage),
		FinishReason:   genai.FinishLength,
		ToolIterations: iterations,
		ToolCalls:      allCalls,
	}
}
