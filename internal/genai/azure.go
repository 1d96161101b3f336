package genai

import (
	"net/http"
	"net/url"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xiewu/frigate/internal/logger"
)

// azureClient talks to an Azure OpenAI deployment. The base_url carries
// the endpoint and an api-version query parameter, matching how Azure
// hands out connection strings. No streaming capability.
type azureClient struct {
	openAIBase
}

// NewAzureOpenAI builds the Azure OpenAI adapter. Returns nil when the
// base_url is unusable or missing the API version.
func NewAzureOpenAI(cfg ClientConfig) Provider {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Host == "" {
		logger.Warnf("Error parsing Azure OpenAI url: %v", err)
		return nil
	}

	apiVersion := parsed.Query().Get("api-version")
	if apiVersion == "" {
		logger.Warnf("Azure OpenAI url is missing API version.")
		return nil
	}

	endpoint := parsed.Scheme + "://" + parsed.Host + "/"
	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, endpoint)
	clientConfig.APIVersion = apiVersion
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &azureClient{
		openAIBase: openAIBase{
			cfg:    cfg,
			client: openai.NewClientWithConfig(clientConfig),
			label:  "Azure OpenAI",
		},
	}
}

func (c *azureClient) ContextSize() int {
	return 128000
}
