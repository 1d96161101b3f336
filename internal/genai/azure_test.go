package genai

import (
	"testing"
	"time"
)

func TestAzureRequiresAPIVersion(t *testing.T) {
	cfg := ClientConfig{
		Name:     "azure",
		Provider: ProviderAzureOpenAI,
		APIKey:   "key",
		BaseURL:  "https://example.openai.azure.com",
		Model:    "gpt-4o",
		Timeout:  time.Second,
	}
	if client := NewAzureOpenAI(cfg); client != nil {
		t.Fatalf("expected nil without api-version")
	}
}

func TestAzureRequiresHost(t *testing.T) {
	cfg := ClientConfig{
		Name:     "azure",
		Provider: ProviderAzureOpenAI,
		BaseURL:  "not a url",
		Model:    "gpt-4o",
		Timeout:  time.Second,
	}
	if client := NewAzureOpenAI(cfg); client != nil {
		t.Fatalf("expected nil for unusable url")
	}
}

func TestAzureAcceptsFullConnectionURL(t *testing.T) {
	cfg := ClientConfig{
		Name:     "azure",
		Provider: ProviderAzureOpenAI,
		APIKey:   "key",
		BaseURL:  "https://example.openai.azure.com/?api-version=2024-02-01",
		Model:    "gpt-4o",
		Timeout:  time.Second,
	}
	client := NewAzureOpenAI(cfg)
	if client == nil {
		t.Fatalf("expected client")
	}
	if got := client.ContextSize(); got != 128000 {
		t.Fatalf("expected 128000, got %d", got)
	}
	if _, ok := client.(StreamingProvider); ok {
		t.Fatalf("azure adapter must not advertise streaming")
	}
}
