package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"turn-orchestrator/internal/reliability"
)

// AnthropicDefaultMaxTokens is the env-overridable default maxTokens for
// Anthropic-like providers (spec §4.6's table), sourced from
// config.Provider.MaxTokens by the caller — this constant is the adapter's
// own fallback when the caller supplies zero.
const AnthropicDefaultMaxTokens = 8192

// AnthropicClient implements the Adapter contract for Anthropic-like
// providers: top-level system, tool-derived "beta" headers, thinking
// block echoed as providerState.
type AnthropicClient struct {
	base             *BaseClient
	defaultMaxTokens int
}

// NewAnthropicClient builds an Anthropic-like adapter. defaultMaxTokens
// <= 0 falls back to AnthropicDefaultMaxTokens.
func NewAnthropicClient(apiKey, baseURL string, defaultMaxTokens int, breakers *reliability.CircuitBreakerManager) *AnthropicClient {
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = AnthropicDefaultMaxTokens
	}
	conv := &anthropicRequestConverter{defaultMaxTokens: defaultMaxTokens}
	cfg := BaseConfig{Name: "anthropic", APIKey: apiKey, BaseURL: baseURL}
	base := NewBaseClient(cfg, &anthropicAuth{}, conv, &anthropicResponseConverter{}, breakers)
	return &AnthropicClient{base: base, defaultMaxTokens: defaultMaxTokens}
}

// Send implements Adapter.
func (c *AnthropicClient) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if headers := betaHeadersForTools(req.Options.Tools); headers != "" {
		extra := make(map[string]string, len(req.Options.ExtraHeaders)+1)
		for k, v := range req.Options.ExtraHeaders {
			extra[k] = v
		}
		extra["anthropic-beta"] = headers
		req.Options.ExtraHeaders = extra
	}
	resp, err := c.base.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type anthropicAuth struct{}

func (anthropicAuth) AddAuth(req *http.Request, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicThinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type anthropicRequestBody struct {
	Model     string                   `json:"model"`
	System    string                   `json:"system,omitempty"`
	Messages  []anthropicMessage       `json:"messages"`
	MaxTokens int                      `json:"max_tokens"`
	Thinking  *anthropicThinkingConfig `json:"thinking,omitempty"`
	Tools     []Tool                   `json:"tools,omitempty"`
}

type anthropicRequestConverter struct {
	defaultMaxTokens int
}

func (c *anthropicRequestConverter) ConvertRequest(req SendRequest, cfg BaseConfig) (interface{}, error) {
	system, nonSystem := splitSystem(req)

	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.defaultMaxTokens
	}

	body := anthropicRequestBody{
		Model:     req.Model,
		System:    system,
		Messages:  toAnthropicMessages(nonSystem, req.ProviderState),
		MaxTokens: maxTokens,
		Tools:     req.Options.Tools,
	}
	if req.Options.Thinking != nil {
		body.Thinking = &anthropicThinkingConfig{
			Type:         req.Options.Thinking.Type,
			BudgetTokens: req.Options.Thinking.BudgetTokens,
		}
	}

	// Beta capability headers are a side effect of which tool types are
	// requested, not part of the JSON body (spec §4.6).
	merged, err := mergeExtraBody(body, req.Options.ExtraBody)
	if err != nil {
		return nil, err
	}
	if headers := betaHeadersForTools(req.Options.Tools); headers != "" {
		if req.Options.ExtraHeaders == nil {
			req.Options.ExtraHeaders = map[string]string{}
		}
		req.Options.ExtraHeaders["anthropic-beta"] = headers
	}
	return merged, nil
}

// betaHeadersForTools derives the comma-separated "anthropic-beta" header
// value from the tool names present in the request.
func betaHeadersForTools(tools []Tool) string {
	var betas []string
	seen := map[string]bool{}
	for _, t := range tools {
		var beta string
		switch {
		case strings.Contains(t.Name, "code_execution"):
			beta = "code-execution-2025-05-22"
		case strings.Contains(t.Name, "computer"):
			beta = "computer-use-2025-01-24"
		}
		if beta != "" && !seen[beta] {
			seen[beta] = true
			betas = append(betas, beta)
		}
	}
	return strings.Join(betas, ",")
}

func splitSystem(req SendRequest) (string, []Message) {
	system, nonSystem := extractAndDedupeSystem(req)
	return system, nonSystem
}

func toAnthropicMessages(msgs []Message, providerState json.RawMessage) []anthropicMessage {
	out := make([]anthropicMessage, len(msgs))
	for i, m := range msgs {
		out[i] = anthropicMessage{Role: string(m.Role), Content: m.Content}
	}
	injectThinkingBlock(out, providerState)
	return out
}

// injectThinkingBlock echoes a prior turn's thinking/redacted_thinking
// block back onto the last assistant message, as Anthropic requires it
// to lead that message's content when the conversation continues (spec
// §4.6's "thinking block echo").
func injectThinkingBlock(msgs []anthropicMessage, providerState json.RawMessage) {
	if len(providerState) == 0 {
		return
	}
	var block anthropicContentBlock
	if err := json.Unmarshal(providerState, &block); err != nil || block.Type == "" {
		return
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != string(RoleAssistant) {
			continue
		}
		text, _ := msgs[i].Content.(string)
		msgs[i].Content = []anthropicContentBlock{block, {Type: "text", Text: text}}
		return
	}
}

type anthropicContentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	Thinking  string                 `json:"thinking,omitempty"`
	Signature string                 `json:"signature,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponseBody struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
}

type anthropicResponseConverter struct{}

func (anthropicResponseConverter) ConvertResponse(data []byte) (*SendResponse, error) {
	var resp anthropicResponseBody
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshalling anthropic-like response: %w", err)
	}

	var blocks []ContentBlock
	var thinkingBlock *anthropicContentBlock
	for i := range resp.Content {
		c := resp.Content[i]
		switch c.Type {
		case "text":
			blocks = append(blocks, ContentBlock{Type: ContentBlockText, Text: c.Text})
		case "tool_use":
			blocks = append(blocks, ContentBlock{Type: ContentBlockToolUse, ToolName: c.Name, ToolInput: c.Input})
		case "thinking", "redacted_thinking":
			thinkingBlock = &resp.Content[i]
		}
	}

	var providerState json.RawMessage
	if thinkingBlock != nil {
		providerState, _ = json.Marshal(thinkingBlock)
	}

	return &SendResponse{
		Text: ExtractText(blocks),
		Usage: &Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		ProviderState: providerState,
	}, nil
}
