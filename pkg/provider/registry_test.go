package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turn-orchestrator/internal/config"
)

func TestNewRegistryBuildsAllConfiguredProviders(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.Provider{
			config.ProviderOpenAI:    {BaseURL: "https://example.test/v1/responses", APIKeyEnv: ""},
			config.ProviderAnthropic: {BaseURL: "https://example.test/v1/messages", APIKeyEnv: ""},
			config.ProviderGoogle:    {BaseURL: "https://example.test/v1beta", APIKeyEnv: ""},
			config.ProviderXAI:       {BaseURL: "https://example.test/v1/chat", APIKeyEnv: ""},
			config.ProviderMock:      {},
		},
	}

	reg, err := NewRegistry(cfg, nil)
	require.NoError(t, err)

	for _, name := range []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGoogle, config.ProviderXAI, config.ProviderMock} {
		a, ok := reg.Adapter(name)
		assert.True(t, ok, "expected adapter for %s", name)
		assert.NotNil(t, a)
	}
}

func TestNewRegistryRequiresMockProvider(t *testing.T) {
	cfg := &config.Config{Providers: map[string]config.Provider{}}
	_, err := NewRegistry(cfg, nil)
	require.Error(t, err)
}

func TestNewRegistryRejectsUnknownProviderFamily(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.Provider{
			config.ProviderMock: {},
			"unknown-family":    {},
		},
	}
	_, err := NewRegistry(cfg, nil)
	require.Error(t, err)
}

func TestRegistryAdapterMissingReturnsFalse(t *testing.T) {
	cfg := &config.Config{Providers: map[string]config.Provider{config.ProviderMock: {}}}
	reg, err := NewRegistry(cfg, nil)
	require.NoError(t, err)

	_, ok := reg.Adapter("nope")
	assert.False(t, ok)
}
