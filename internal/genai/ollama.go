package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xiewu/frigate/internal/logger"
)

// ollamaOptimizedOptions are inference defaults tuned for small local
// models; explicit options from configuration override them.
var ollamaOptimizedOptions = map[string]interface{}{
	"temperature":      0.5,
	"repeat_penalty":   1.05,
	"presence_penalty": 0.3,
}

// ollamaClient talks to Ollama's native REST API (/api/chat for tool
// calling, /api/generate for vision). No streaming capability.
type ollamaClient struct {
	cfg     ClientConfig
	baseURL string
	http    *http.Client
	options map[string]interface{}

	mu          sync.Mutex
	contextSize int
}

// NewOllama builds the Ollama adapter. The model is probed at construction
// so a missing pull surfaces immediately; nil is returned when the server
// or the model is unavailable.
func NewOllama(cfg ClientConfig) Provider {
	if cfg.BaseURL == "" {
		logger.Warnf("Ollama provider requires a base_url.")
		return nil
	}

	options := make(map[string]interface{}, len(ollamaOptimizedOptions))
	for key, value := range ollamaOptimizedOptions {
		options[key] = value
	}
	if configured, ok := cfg.ProviderOptions["options"].(map[string]interface{}); ok {
		for key, value := range configured {
			options[key] = value
		}
	}

	client := &ollamaClient{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		options: options,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.show(ctx); err != nil {
		logger.Warnf("Error initializing Ollama: %v", err)
		return nil
	}

	return client
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Images    []string         `json:"images,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaToolCallFunction `json:"function"`
}

type ollamaToolCallFunction struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  ToolParameters `json:"parameters"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Tools    []ollamaTool           `json:"tools,omitempty"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason"`
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Images  []string               `json:"images,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaShowResponse struct {
	Error     string                 `json:"error,omitempty"`
	ModelInfo map[string]interface{} `json:"model_info"`
}

func (c *ollamaClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama error: %s - %s", resp.Status, strings.TrimSpace(string(errorBody)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *ollamaClient) show(ctx context.Context) (*ollamaShowResponse, error) {
	var response ollamaShowResponse
	err := c.post(ctx, "/api/show", map[string]string{"model": c.cfg.Model}, &response)
	if err != nil {
		return nil, err
	}
	if response.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", response.Error)
	}
	return &response, nil
}

func toOllamaMessages(conversation []Message) []ollamaMessage {
	messages := make([]ollamaMessage, 0, len(conversation))
	for _, msg := range conversation {
		m := ollamaMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		// Ollama's native format carries images separately from text.
		for _, part := range msg.Parts {
			switch part.Type {
			case PartTypeText:
				m.Content = part.Text
			case PartTypeImageURL:
				if encoded, ok := strings.CutPrefix(part.ImageURL, "data:image/jpeg;base64,"); ok {
					m.Images = append(m.Images, encoded)
				}
			}
		}

		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, ollamaToolCall{
				Function: ollamaToolCallFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}

		messages = append(messages, m)
	}
	return messages
}

func (c *ollamaClient) ChatWithTools(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) NormalizedResponse {
	// Ollama has no tool_choice control; "none" is honored by simply not
	// sending the tool definitions.
	request := ollamaChatRequest{
		Model:    c.cfg.Model,
		Messages: toOllamaMessages(conversation),
		Options:  c.options,
	}
	if len(tools) > 0 && toolChoice != ToolChoiceNone {
		for _, tool := range tools {
			request.Tools = append(request.Tools, ollamaTool{
				Type: "function",
				Function: ollamaToolFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
	}

	var response ollamaChatResponse
	if err := c.post(ctx, "/api/chat", request, &response); err != nil {
		logger.Warnf("Ollama returned an error: %v", err)
		return errorResponse()
	}

	content := strings.TrimSpace(response.Message.Content)

	var toolCalls []ToolCallRequest
	for i, call := range response.Message.ToolCalls {
		arguments := call.Function.Arguments
		if arguments == nil {
			arguments = map[string]interface{}{}
		}
		// Ollama does not assign tool call ids; synthesize stable ones so
		// results can be paired with their requests.
		toolCalls = append(toolCalls, ToolCallRequest{
			ID:        fmt.Sprintf("call_%d_%d", i, time.Now().UnixNano()),
			Name:      call.Function.Name,
			Arguments: arguments,
		})
	}

	reason := FinishReason("")
	if response.Done {
		switch response.DoneReason {
		case "length":
			reason = FinishLength
		default:
			reason = FinishStop
		}
	}

	return NormalizedResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: normalizeFinish(reason, content, toolCalls),
	}
}

func (c *ollamaClient) SendVision(ctx context.Context, prompt string, images [][]byte) (string, bool) {
	encoded := make([]string, 0, len(images))
	for _, image := range images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(image))
	}

	request := ollamaGenerateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Images:  encoded,
		Options: c.options,
	}

	var response ollamaGenerateResponse
	if err := c.post(ctx, "/api/generate", request, &response); err != nil {
		logger.Warnf("Ollama returned an error: %v", err)
		return "", false
	}

	return strings.TrimSpace(response.Response), true
}

// ContextSize prefers a configured num_ctx, then the context_length
// reported by /api/show, then the Ollama default.
func (c *ollamaClient) ContextSize() int {
	if size, ok := intOption(c.options, "num_ctx"); ok && size > 0 {
		return size
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.contextSize > 0 {
		return c.contextSize
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if response, err := c.show(ctx); err == nil {
		// model_info keys are architecture-prefixed, e.g. llama.context_length.
		for key := range response.ModelInfo {
			if strings.HasSuffix(key, ".context_length") {
				if size, ok := floatOption(response.ModelInfo, key); ok && size > 0 {
					c.contextSize = int(size)
					return c.contextSize
				}
			}
		}
	} else {
		logger.Debugf("Failed to fetch model context size from API: %v, using default", err)
	}

	c.contextSize = 4096
	return c.contextSize
}
