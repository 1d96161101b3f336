package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xiewu/frigate/internal/genai"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleConfig = `
[chat]
max_tool_iterations = 3
search_profile = "detailed"

[cameras.front_door]
friendly_name = "Front Door"
zones = ["porch"]

[cameras.back_deck]

[providers.cloud]
provider = "OpenAI"
api_key = "${TEST_OPENAI_KEY}"
model = "gpt-4o"
roles = ["tools", "vision"]
timeout_seconds = 30

[providers.local]
provider = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1"
roles = ["embeddings"]
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.MaxToolIterations() != 3 {
		t.Fatalf("expected 3 iterations, got %d", cfg.MaxToolIterations())
	}
	if cfg.SearchLimit() != 25 {
		t.Fatalf("expected detailed limit 25, got %d", cfg.SearchLimit())
	}

	names := cfg.FriendlyNames()
	if names["front_door"] != "Front Door" {
		t.Fatalf("unexpected friendly names: %+v", names)
	}

	clients := cfg.ClientConfigs()
	if len(clients) != 2 {
		t.Fatalf("expected 2 client configs, got %d", len(clients))
	}
	// Sorted by entry name.
	if clients[0].Name != "cloud" || clients[1].Name != "local" {
		t.Fatalf("expected sorted entries, got %s, %s", clients[0].Name, clients[1].Name)
	}

	cloud := clients[0]
	if cloud.Provider != "openai" {
		t.Fatalf("expected lowercased provider, got %q", cloud.Provider)
	}
	if cloud.APIKey != "sk-test" {
		t.Fatalf("expected env-expanded key, got %q", cloud.APIKey)
	}
	if cloud.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", cloud.Timeout)
	}
}

func TestDefaultsApplied(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
[providers.local]
provider = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.MaxToolIterations() != DefaultMaxToolIterations {
		t.Fatalf("expected default iterations, got %d", cfg.MaxToolIterations())
	}
	if cfg.SearchLimit() != 10 {
		t.Fatalf("expected default limit 10, got %d", cfg.SearchLimit())
	}

	client := cfg.ClientConfigs()[0]
	if client.Timeout != DefaultTimeoutSeconds*time.Second {
		t.Fatalf("expected default timeout, got %v", client.Timeout)
	}
	if len(client.Roles) != 3 {
		t.Fatalf("expected all roles by default, got %v", client.Roles)
	}
	hasTools := false
	for _, role := range client.Roles {
		if role == genai.RoleBindingTools {
			hasTools = true
		}
	}
	if !hasTools {
		t.Fatalf("expected tools among default roles")
	}
}

func TestValidateRejectsIterationRange(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
[chat]
max_tool_iterations = 11
`))
	if err == nil {
		t.Fatalf("expected error for out-of-range iterations")
	}
}

func TestValidateRejectsMissingModel(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
[providers.bad]
provider = "openai"
`))
	if err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
[providers.bad]
provider = "openai"
model = "gpt-4o"
roles = ["pilot"]
`))
	if err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestValidateRejectsUnknownProfile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
[chat]
search_profile = "verbose"
`))
	if err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}
