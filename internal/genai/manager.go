package genai

import (
	"sync"

	"github.com/xiewu/frigate/internal/logger"
)

// Manager owns the role-bound client handles built from configuration.
// Rebuild may be called again when configuration is reloaded; the handles
// are safe for concurrent readers.
type Manager struct {
	registry *Registry

	mu               sync.RWMutex
	toolClient       Provider
	visionClient     Provider
	embeddingsClient Provider
}

func NewManager(registry *Registry) *Manager {
	return &Manager{registry: registry}
}

// Rebuild constructs one adapter per configured provider entry and binds
// each declared role to it. Entries must arrive in a deterministic order
// (the config layer sorts by entry name): when several entries claim the
// same role the last one wins, with a warning naming the override.
func (m *Manager) Rebuild(entries []ClientConfig) {
	var toolClient, visionClient, embeddingsClient Provider
	var toolName, visionName, embeddingsName string

	for _, entry := range entries {
		if entry.Provider == "" {
			continue
		}

		constructor, ok := m.registry.Lookup(entry.Provider)
		if !ok {
			logger.Warnf("Unknown GenAI provider %s in config entry %s, skipping.", entry.Provider, entry.Name)
			continue
		}

		client := constructor(entry)
		if client == nil {
			logger.Warnf("Failed to create GenAI client for provider %s (entry %s), skipping.", entry.Provider, entry.Name)
			continue
		}

		for _, role := range entry.Roles {
			switch role {
			case RoleBindingTools:
				if toolClient != nil {
					logger.Warnf("GenAI role %s rebound from entry %s to %s", role, toolName, entry.Name)
				}
				toolClient, toolName = client, entry.Name
			case RoleBindingVision:
				if visionClient != nil {
					logger.Warnf("GenAI role %s rebound from entry %s to %s", role, visionName, entry.Name)
				}
				visionClient, visionName = client, entry.Name
			case RoleBindingEmbeddings:
				if embeddingsClient != nil {
					logger.Warnf("GenAI role %s rebound from entry %s to %s", role, embeddingsName, entry.Name)
				}
				embeddingsClient, embeddingsName = client, entry.Name
			}
		}
	}

	m.mu.Lock()
	m.toolClient = toolClient
	m.visionClient = visionClient
	m.embeddingsClient = embeddingsClient
	m.mu.Unlock()
}

// ToolClient returns the client bound to the tools role, or nil when no
// configured provider claims it.
func (m *Manager) ToolClient() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.toolClient
}

// VisionClient returns the client bound to the vision role (object and
// review description generation).
func (m *Manager) VisionClient() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visionClient
}

// EmbeddingsClient returns the client bound to the embeddings role.
func (m *Manager) EmbeddingsClient() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.embeddingsClient
}
