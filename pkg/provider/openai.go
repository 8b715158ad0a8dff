package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"turn-orchestrator/internal/reliability"
)

// OpenAIClient implements the Adapter contract for OpenAI-like providers:
// no default maxTokens, system passed via "instructions", tools as a
// flat tools[] array, providerState carried as an assistant-role
// reasoning block with encrypted_content (spec §4.6's table).
type OpenAIClient struct {
	base *BaseClient
}

// NewOpenAIClient builds an OpenAI-like adapter. baseURL is the complete
// endpoint URL (config.Provider.BaseURL already carries the full path,
// e.g. ".../v1/responses").
func NewOpenAIClient(apiKey, baseURL string, breakers *reliability.CircuitBreakerManager) *OpenAIClient {
	cfg := BaseConfig{Name: "openai", APIKey: apiKey, BaseURL: baseURL}
	base := NewBaseClient(cfg, &bearerAuth{}, &openAIRequestConverter{}, &openAIResponseConverter{}, breakers)
	return &OpenAIClient{base: base}
}

// Send implements Adapter.
func (c *OpenAIClient) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	return c.base.Send(ctx, req)
}

type bearerAuth struct{}

func (bearerAuth) AddAuth(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

type openAIInputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIReasoningBlock struct {
	Type             string `json:"type"`
	EncryptedContent string `json:"encrypted_content"`
}

type openAIRequestBody struct {
	Model        string                 `json:"model"`
	Instructions string                 `json:"instructions,omitempty"`
	Input        []interface{}          `json:"input"`
	MaxTokens    int                    `json:"max_output_tokens,omitempty"`
	Reasoning    map[string]interface{} `json:"reasoning,omitempty"`
	Tools        []Tool                 `json:"tools,omitempty"`
}

type openAIRequestConverter struct{}

func (openAIRequestConverter) ConvertRequest(req SendRequest, cfg BaseConfig) (interface{}, error) {
	instructions, deduped := extractAndDedupeSystem(req)

	input := toOpenAIMessages(deduped)
	if reasoning := decodeOpenAIReasoningState(req.ProviderState); reasoning != nil {
		input = insertBeforeLast(input, reasoning)
	}

	body := openAIRequestBody{
		Model:        req.Model,
		Instructions: instructions,
		Input:        input,
		MaxTokens:    req.Options.MaxTokens,
		Reasoning:    req.Options.Reasoning,
		Tools:        req.Options.Tools,
	}

	return mergeExtraBody(body, req.Options.ExtraBody)
}

func toOpenAIMessages(msgs []Message) []interface{} {
	out := make([]interface{}, len(msgs))
	for i, m := range msgs {
		out[i] = openAIInputMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// decodeOpenAIReasoningState decodes a prior turn's providerState back
// into the reasoning input item OpenAI expects echoed ahead of the
// message it preceded.
func decodeOpenAIReasoningState(raw json.RawMessage) *openAIReasoningBlock {
	if len(raw) == 0 {
		return nil
	}
	var block openAIReasoningBlock
	if err := json.Unmarshal(raw, &block); err != nil || block.EncryptedContent == "" {
		return nil
	}
	if block.Type == "" {
		block.Type = "reasoning"
	}
	return &block
}

// insertBeforeLast splices item just ahead of the final input entry
// (the current turn), matching where the reasoning block preceded the
// assistant's visible output on the turn it was captured from.
func insertBeforeLast(items []interface{}, item interface{}) []interface{} {
	if len(items) == 0 {
		return append(items, item)
	}
	out := make([]interface{}, 0, len(items)+1)
	out = append(out, items[:len(items)-1]...)
	out = append(out, item)
	out = append(out, items[len(items)-1])
	return out
}

// extractAndDedupeSystem pulls system messages out of req.Messages
// (combining req.System if set), deduplicating repeated system text, and
// returns the remaining non-system messages.
func extractAndDedupeSystem(req SendRequest) (string, []Message) {
	seen := map[string]bool{}
	var systemParts []string
	if req.System != "" {
		systemParts = append(systemParts, req.System)
		seen[req.System] = true
	}

	var rest []Message
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			if !seen[m.Content] {
				seen[m.Content] = true
				systemParts = append(systemParts, m.Content)
			}
			continue
		}
		rest = append(rest, m)
	}

	system := ""
	for i, p := range systemParts {
		if i > 0 {
			system += "\n\n"
		}
		system += p
	}
	return system, rest
}

type openAIResponseOutput struct {
	Type             string `json:"type"`
	Role             string `json:"role,omitempty"`
	Content          []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content,omitempty"`
	EncryptedContent string `json:"encrypted_content,omitempty"`
	Name             string                 `json:"name,omitempty"`
	Arguments        map[string]interface{} `json:"arguments,omitempty"`
}

type openAIResponseBody struct {
	Output []openAIResponseOutput `json:"output"`
	Usage  struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIResponseConverter struct{}

func (openAIResponseConverter) ConvertResponse(data []byte) (*SendResponse, error) {
	var resp openAIResponseBody
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshalling openai-like response: %w", err)
	}

	var blocks []ContentBlock
	var reasoningBlock *openAIReasoningBlock
	for _, out := range resp.Output {
		switch out.Type {
		case "message":
			for _, c := range out.Content {
				blocks = append(blocks, ContentBlock{Type: ContentBlockText, Text: c.Text})
			}
		case "function_call":
			blocks = append(blocks, ContentBlock{Type: ContentBlockToolUse, ToolName: out.Name, ToolInput: out.Arguments})
		case "reasoning":
			if out.EncryptedContent != "" {
				reasoningBlock = &openAIReasoningBlock{Type: "reasoning", EncryptedContent: out.EncryptedContent}
			}
		}
	}

	var providerState json.RawMessage
	if reasoningBlock != nil {
		providerState, _ = json.Marshal(reasoningBlock)
	}

	return &SendResponse{
		Text: ExtractText(blocks),
		Usage: &Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		ProviderState: providerState,
	}, nil
}
