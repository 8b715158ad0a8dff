package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turn-orchestrator/pkg/provider"
)

func TestComputeCapabilityNoteEmptyWhenNoSearchTools(t *testing.T) {
	targets := []TargetModel{{Provider: "openai", AgentID: "a"}}
	require.Empty(t, computeCapabilityNote(targets))
}

func TestComputeCapabilityNoteNamesSearchCapableAgents(t *testing.T) {
	targets := []TargetModel{
		{Provider: "openai", AgentID: "a", Name: "Scout", Options: provider.Options{Tools: []provider.Tool{{Name: "web_search"}}}},
		{Provider: "mock", AgentID: "b"},
	}
	note := computeCapabilityNote(targets)
	require.Contains(t, note, "Scout")
	require.NotContains(t, note, ":b")
}

func TestComputeCapabilityNoteFallsBackToAgentIDWithoutName(t *testing.T) {
	targets := []TargetModel{
		{Provider: "openai", AgentID: "openai:gpt-4o:0", Options: provider.Options{Tools: []provider.Tool{{Name: "search_web"}}}},
	}
	note := computeCapabilityNote(targets)
	require.Contains(t, note, "openai:gpt-4o:0")
}
