package provider

import (
	"fmt"

	"turn-orchestrator/internal/config"
	"turn-orchestrator/internal/reliability"
)

// Registry resolves a provider family name (config.ProviderOpenAI and
// friends) to a constructed Adapter, built once at startup from
// config.Config.Providers and shared across every turn.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds one adapter per configured provider family. breakers
// is shared across every HTTP-backed adapter so circuit state is tracked
// per provider name, not per adapter instance.
func NewRegistry(cfg *config.Config, breakers *reliability.CircuitBreakerManager) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(cfg.Providers))}

	for name, p := range cfg.Providers {
		switch name {
		case config.ProviderOpenAI:
			r.adapters[name] = NewOpenAIClient(p.APIKey(), p.BaseURL, breakers)
		case config.ProviderAnthropic:
			r.adapters[name] = NewAnthropicClient(p.APIKey(), p.BaseURL, p.MaxTokens, breakers)
		case config.ProviderGoogle:
			r.adapters[name] = NewGoogleClient(p.APIKey(), p.BaseURL, p.StateExtractPath, breakers)
		case config.ProviderXAI:
			r.adapters[name] = NewXAIClient(p.APIKey(), p.BaseURL, breakers)
		case config.ProviderMock:
			r.adapters[name] = NewMockClient(0)
		default:
			return nil, fmt.Errorf("unrecognised provider family %q", name)
		}
	}

	if _, ok := r.adapters[config.ProviderMock]; !ok {
		return nil, fmt.Errorf("mock provider must always be configured")
	}

	return r, nil
}

// Adapter returns the adapter registered for the given provider family
// name, or false if none was configured.
func (r *Registry) Adapter(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}
