package genai

import (
	"sync"

	"github.com/xiewu/frigate/internal/logger"
)

// Constructor builds a provider adapter from its configuration. A nil
// return means the provider is unusable (bad URL, unreachable server) and
// the caller must treat the entry as unconfigured rather than fail.
type Constructor func(cfg ClientConfig) Provider

// Registry maps provider identifiers to adapter constructors. It is an
// owned instance populated once at startup via RegisterBuiltins, not
// ambient global state.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a constructor under the given provider id, replacing any
// previous registration.
func (r *Registry) Register(id string, fn Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[id]; exists {
		logger.Warnf("Replacing existing provider constructor: %s", id)
	}

	r.constructors[id] = fn
}

func (r *Registry) Lookup(id string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.constructors[id]
	return fn, ok
}

const (
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure_openai"
	ProviderGemini      = "gemini"
	ProviderOllama      = "ollama"
	ProviderLlamaCPP    = "llamacpp"
)

// RegisterBuiltins registers every built-in adapter constructor. Called
// once at process startup before the client manager is first built.
func RegisterBuiltins(r *Registry) {
	r.Register(ProviderOpenAI, NewOpenAI)
	r.Register(ProviderAzureOpenAI, NewAzureOpenAI)
	r.Register(ProviderGemini, NewGemini)
	r.Register(ProviderOllama, NewOllama)
	r.Register(ProviderLlamaCPP, NewLlamaCPP)
}
