package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicRequestConverterDefaultMaxTokens(t *testing.T) {
	conv := &anthropicRequestConverter{defaultMaxTokens: AnthropicDefaultMaxTokens}
	req := SendRequest{
		Model:    "claude-test",
		System:   "be precise",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}

	out, err := conv.ConvertRequest(req, BaseConfig{})
	require.NoError(t, err)

	body := out.(map[string]interface{})
	assert.Equal(t, "be precise", body["system"])
	assert.Equal(t, float64(AnthropicDefaultMaxTokens), body["max_tokens"])
}

func TestAnthropicRequestConverterRespectsExplicitMaxTokens(t *testing.T) {
	conv := &anthropicRequestConverter{defaultMaxTokens: AnthropicDefaultMaxTokens}
	req := SendRequest{
		Model:    "claude-test",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Options:  Options{MaxTokens: 1024},
	}

	out, err := conv.ConvertRequest(req, BaseConfig{})
	require.NoError(t, err)

	body := out.(map[string]interface{})
	assert.Equal(t, float64(1024), body["max_tokens"])
}

func TestAnthropicRequestConverterInjectsThinkingBlockOnLastAssistantMessage(t *testing.T) {
	conv := &anthropicRequestConverter{defaultMaxTokens: AnthropicDefaultMaxTokens}
	providerState, err := json.Marshal(anthropicContentBlock{Type: "thinking", Thinking: "prior reasoning", Signature: "sig"})
	require.NoError(t, err)

	req := SendRequest{
		Model: "claude-test",
		Messages: []Message{
			{Role: RoleUser, Content: "first question"},
			{Role: RoleAssistant, Content: "first answer"},
			{Role: RoleUser, Content: "follow up"},
		},
		ProviderState: providerState,
	}

	out, err := conv.ConvertRequest(req, BaseConfig{})
	require.NoError(t, err)

	body := out.(map[string]interface{})
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 3)

	assistantMsg := messages[1].(map[string]interface{})
	content := assistantMsg["content"].([]interface{})
	require.Len(t, content, 2)
	assert.Equal(t, "thinking", content[0].(map[string]interface{})["type"])
	assert.Equal(t, "prior reasoning", content[0].(map[string]interface{})["thinking"])
	assert.Equal(t, "text", content[1].(map[string]interface{})["type"])
	assert.Equal(t, "first answer", content[1].(map[string]interface{})["text"])

	lastMsg := messages[2].(map[string]interface{})
	assert.Equal(t, "follow up", lastMsg["content"])
}

func TestBetaHeadersForToolsDerivesFromToolNames(t *testing.T) {
	tools := []Tool{{Name: "code_execution_v2"}, {Name: "computer_20250124"}, {Name: "search"}}
	headers := betaHeadersForTools(tools)
	assert.Contains(t, headers, "code-execution-2025-05-22")
	assert.Contains(t, headers, "computer-use-2025-01-24")
}

func TestBetaHeadersForToolsEmptyWhenNoMatch(t *testing.T) {
	assert.Equal(t, "", betaHeadersForTools([]Tool{{Name: "search"}}))
}

func TestAnthropicResponseConverterExtractsTextAndThinking(t *testing.T) {
	body := `{
		"content": [
			{"type": "thinking", "thinking": "reasoning trace", "signature": "sig"},
			{"type": "text", "text": "the answer"}
		],
		"usage": {"input_tokens": 3, "output_tokens": 4}
	}`

	conv := anthropicResponseConverter{}
	resp, err := conv.ConvertResponse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "the answer", resp.Text)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	require.NotNil(t, resp.ProviderState)

	var block anthropicContentBlock
	require.NoError(t, json.Unmarshal(resp.ProviderState, &block))
	assert.Equal(t, "reasoning trace", block.Thinking)
}

func TestAnthropicResponseConverterToolUse(t *testing.T) {
	body := `{
		"content": [
			{"type": "tool_use", "name": "lookup", "input": {"id": "42"}}
		],
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`

	conv := anthropicResponseConverter{}
	resp, err := conv.ConvertResponse([]byte(body))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "[Tool: lookup]")
	assert.Contains(t, resp.Text, "42")
}

func TestAnthropicClientSendSetsAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}], "usage": {"input_tokens": 1, "output_tokens": 1}}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient("test-key", srv.URL, 0, nil)
	resp, err := client.Send(t.Context(), SendRequest{
		Model:    "claude-test",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}
