package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xiewu/frigate/internal/logger"
)

// openAIClient talks to api.openai.com or any OpenAI-style endpoint
// configured via base_url.
type openAIClient struct {
	openAIBase

	mu          sync.Mutex
	contextSize int
}

// NewOpenAI builds the OpenAI adapter.
func NewOpenAI(cfg ClientConfig) Provider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &openAIClient{
		openAIBase: openAIBase{
			cfg:    cfg,
			client: openai.NewClientWithConfig(clientConfig),
			label:  "OpenAI",
		},
	}
}

func (c *openAIClient) ChatWithToolsStream(ctx context.Context, conversation []Message, tools []ToolDefinition, toolChoice ToolChoice) <-chan StreamEvent {
	return c.streamChat(ctx, conversation, tools, toolChoice)
}

// ContextSize resolves the token budget once and caches it: an explicit
// context_size provider option wins, then a models-list capability probe
// (vLLM and compatible servers expose max_model_len there), then a family
// default. Probe failures fall back silently.
func (c *openAIClient) ContextSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.contextSize > 0 {
		return c.contextSize
	}

	if size, ok := intOption(c.cfg.ProviderOptions, "context_size"); ok && size > 0 {
		c.contextSize = size
		return c.contextSize
	}

	if size := c.queryMaxModelLen(); size > 0 {
		logger.Debugf("Retrieved context size %d for model %s", size, c.cfg.Model)
		c.contextSize = size
		return c.contextSize
	}

	if strings.Contains(strings.ToLower(c.cfg.Model), "gpt") {
		c.contextSize = 128000
	} else {
		c.contextSize = 8192
	}
	logger.Debugf("Using default context size %d for model %s", c.contextSize, c.cfg.Model)
	return c.contextSize
}

// queryMaxModelLen asks the models endpoint for the bound model's
// max_model_len. The official API does not report one; self-hosted
// OpenAI-style servers often do.
func (c *openAIClient) queryMaxModelLen() int {
	if c.cfg.BaseURL == "" {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+"/models", nil)
	if err != nil {
		return 0
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Debugf("Failed to fetch model context size from API: %v, using default", err)
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0
	}

	var payload struct {
		Data []struct {
			ID          string `json:"id"`
			MaxModelLen int    `json:"max_model_len"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logger.Debugf("Failed to decode models response: %v, using default", err)
		return 0
	}

	for _, model := range payload.Data {
		if model.ID == c.cfg.Model && model.MaxModelLen > 0 {
			return model.MaxModelLen
		}
	}
	return 0
}
