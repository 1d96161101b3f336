package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xiewu/frigate/internal/genai"
)

// ProviderConfig is one named GenAI provider entry. An entry without a
// provider type is inert and skipped by the client manager.
type ProviderConfig struct {
	Provider        string                 `toml:"provider"`
	APIKey          string                 `toml:"api_key"`
	BaseURL         string                 `toml:"base_url"`
	Model           string                 `toml:"model"`
	Roles           []string               `toml:"roles"`
	TimeoutSeconds  int                    `toml:"timeout_seconds"`
	ProviderOptions map[string]interface{} `toml:"provider_options"`
	RuntimeOptions  map[string]interface{} `toml:"runtime_options"`
}

type CameraConfig struct {
	FriendlyName string   `toml:"friendly_name"`
	Zones        []string `toml:"zones"`
}

type ChatConfig struct {
	MaxToolIterations int    `toml:"max_tool_iterations"`
	SearchProfile     string `toml:"search_profile"`
}

type Config struct {
	Providers map[string]ProviderConfig `toml:"providers"`
	Cameras   map[string]CameraConfig   `toml:"cameras"`
	Chat      ChatConfig                `toml:"chat"`
}

const (
	DefaultMaxToolIterations = 5
	DefaultTimeoutSeconds    = 120

	SearchProfileDefault  = "default"
	SearchProfileDetailed = "detailed"
)

// ValidateConfig checks the loaded configuration for values the rest of the
// system depends on being sane.
func ValidateConfig(cfg *Config) error {
	if cfg.Chat.MaxToolIterations != 0 &&
		(cfg.Chat.MaxToolIterations < 1 || cfg.Chat.MaxToolIterations > 10) {
		return fmt.Errorf("chat.max_tool_iterations must be within [1,10], got %d", cfg.Chat.MaxToolIterations)
	}

	switch cfg.Chat.SearchProfile {
	case "", SearchProfileDefault, SearchProfileDetailed:
	default:
		return fmt.Errorf("chat.search_profile must be %q or %q, got %q",
			SearchProfileDefault, SearchProfileDetailed, cfg.Chat.SearchProfile)
	}

	for name, entry := range cfg.Providers {
		if entry.Provider == "" {
			continue
		}
		if entry.Model == "" {
			return fmt.Errorf("provider entry %q declares provider %q but no model", name, entry.Provider)
		}
		for _, role := range entry.Roles {
			switch role {
			case genai.RoleBindingTools, genai.RoleBindingVision, genai.RoleBindingEmbeddings:
			default:
				return fmt.Errorf("provider entry %q declares unknown role %q", name, role)
			}
		}
	}

	return nil
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MaxToolIterations returns the configured iteration cap default,
// falling back to the built-in default when unset.
func (c *Config) MaxToolIterations() int {
	if c.Chat.MaxToolIterations == 0 {
		return DefaultMaxToolIterations
	}
	return c.Chat.MaxToolIterations
}

// SearchLimit returns the default search_objects result limit for the
// configured profile.
func (c *Config) SearchLimit() int {
	if c.Chat.SearchProfile == SearchProfileDetailed {
		return 25
	}
	return 10
}

// FriendlyNames maps camera ids to their display names for the system prompt.
func (c *Config) FriendlyNames() map[string]string {
	names := make(map[string]string, len(c.Cameras))
	for id, cam := range c.Cameras {
		names[id] = cam.FriendlyName
	}
	return names
}

// ClientConfigs converts the provider entries into the shape the GenAI
// client manager consumes, sorted by entry name so role binding order is
// deterministic. API keys and base URLs support ${VAR} environment
// expansion so secrets can live in the environment or a .env file.
func (c *Config) ClientConfigs() []genai.ClientConfig {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]genai.ClientConfig, 0, len(names))
	for _, name := range names {
		entry := c.Providers[name]

		timeout := entry.TimeoutSeconds
		if timeout <= 0 {
			timeout = DefaultTimeoutSeconds
		}

		roles := entry.Roles
		if len(roles) == 0 {
			roles = []string{
				genai.RoleBindingEmbeddings,
				genai.RoleBindingVision,
				genai.RoleBindingTools,
			}
		}

		configs = append(configs, genai.ClientConfig{
			Name:            name,
			Provider:        strings.ToLower(entry.Provider),
			APIKey:          os.ExpandEnv(entry.APIKey),
			BaseURL:         os.ExpandEnv(entry.BaseURL),
			Model:           entry.Model,
			Roles:           roles,
			Timeout:         time.Duration(timeout) * time.Second,
			ProviderOptions: entry.ProviderOptions,
			RuntimeOptions:  entry.RuntimeOptions,
		})
	}
	return configs
}
