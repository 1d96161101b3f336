package genai

import (
	"context"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xiewu/frigate/internal/logger"
)

// llamaCPPOptimizedOptions are sampling defaults tuned for small local
// models; explicit runtime options override them.
var llamaCPPOptimizedOptions = map[string]interface{}{
	"temperature":       0.7,
	"top_p":             0.8,
	"frequency_penalty": 1.05,
}

// llamaCPPClient talks to a llama.cpp server (or any OpenAI-compatible
// local server) through its /v1 chat completions endpoint.
type llamaCPPClient struct {
	openAIBase
}

// NewLlamaCPP builds the llama.cpp adapter. Returns nil when no base_url
// is configured, since there is no hosted default to fall back to.
func NewLlamaCPP(cfg ClientConfig) Provider {
	if cfg.BaseURL == "" {
		logger.Warnf("llama.cpp provider requires a base_url.")
		return nil
	}

	merged := make(map[string]interface{}, len(llamaCPPOptimizedOptions)+len(cfg.RuntimeOptions))
	for key, value := range llamaCPPOptimizedOptions {
		merged[key] = value
	}
	for key, value := range cfg.RuntimeOptions {
		merged[key] = value
	}
	cfg.RuntimeOptions = merged

	base := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = base
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &llamaCPPClient{
		openAIBase: openAIBase{
			cfg:    cfg,
			client: openai.NewClientWithConfig(clientConfig),
			label:  "llama.cpp",
		},
	}
}

func (c *llamaCPPClient) ChatWithToolsStream(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) <-chan StreamEvent {
	return c.streamChat(ctx, conversation, tools, toolChoice)
}

// ContextSize reads the manually configured context_size, since llama.cpp
// does not expose the runtime context window through the API.
func (c *llamaCPPClient) ContextSize() int {
	if size, ok := intOption(c.cfg.ProviderOptions, "context_size"); ok && size > 0 {
		return size
	}
	return 4096
}
