package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)

	assert.Equal(t, "./data/orchestrator.db", cfg.Store.Path)
	assert.Equal(t, "WAL", cfg.Store.JournalMode)

	assert.Equal(t, 50, cfg.Chunking.LineWindow)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)

	mock, ok := cfg.Providers[ProviderMock]
	require.True(t, ok)
	assert.Equal(t, "mock-echo", mock.DefaultModelID)

	anthropic := cfg.Providers[ProviderAnthropic]
	assert.Equal(t, 8192, anthropic.MaxTokens)
	assert.Equal(t, "ANTHROPIC_API_KEY", anthropic.APIKeyEnv)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsMismatchedSearchLimits(t *testing.T) {
	cfg := Default()
	cfg.Search.DefaultLimit = 200
	cfg.Search.MaxLimit = 100
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresMockProvider(t *testing.T) {
	cfg := Default()
	delete(cfg.Providers, ProviderMock)
	require.Error(t, cfg.Validate())
}

func TestProviderAPIKeyReadsEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")
	cfg := Default()
	assert.Equal(t, "sk-test-123", cfg.Providers[ProviderAnthropic].APIKey())

	mock := cfg.Providers[ProviderMock]
	assert.Empty(t, mock.APIKey())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ORCH_PORT", "9090")
	t.Setenv("ORCH_PROVIDER_MOCK_MODEL", "mock-lorem")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mock-lorem", cfg.Providers[ProviderMock].DefaultModelID)
}

func TestLoadIgnoresUnparsableOverride(t *testing.T) {
	t.Setenv("ORCH_PORT", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestProviderNamesIncludesMock(t *testing.T) {
	cfg := Default()
	names := cfg.ProviderNames()
	found := false
	for _, n := range names {
		if n == ProviderMock {
			found = true
		}
	}
	assert.True(t, found)
}
