package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"turn-orchestrator/internal/reliability"
)

// GoogleClient implements the Adapter contract for Google-like providers:
// system passed as system_instruction parts, tools extending
// extraBody.tools, providerState extracted from a configurable dotted
// path into the response body (spec §4.6's table).
type GoogleClient struct {
	base              *BaseClient
	stateExtractPath  string
}

// NewGoogleClient builds a Google-like adapter. stateExtractPath is a
// dotted path (e.g. "candidates.0.content.parts.0.thoughtSignature") used
// to pull the provider-state fragment out of the raw response body; an
// empty path disables providerState capture.
func NewGoogleClient(apiKey, baseURL, stateExtractPath string, breakers *reliability.CircuitBreakerManager) *GoogleClient {
	cfg := BaseConfig{
		Name:    "google",
		APIKey:  apiKey,
		BaseURL: baseURL,
		PathFunc: func(req SendRequest) string {
			return fmt.Sprintf("/models/%s:generateContent", req.Model)
		},
	}
	conv := &googleRequestConverter{stateExtractPath: stateExtractPath}
	respConv := &googleResponseConverter{stateExtractPath: stateExtractPath}
	base := NewBaseClient(cfg, &googleAuth{}, conv, respConv, breakers)
	return &GoogleClient{base: base, stateExtractPath: stateExtractPath}
}

// Send implements Adapter.
func (c *GoogleClient) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	return c.base.Send(ctx, req)
}

// googleAuth attaches the API key as the header form of Google's
// Generative Language API key convention.
type googleAuth struct{}

func (googleAuth) AddAuth(req *http.Request, apiKey string) {
	req.Header.Set("x-goog-api-key", apiKey)
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleSystemInstruction struct {
	Parts []googlePart `json:"parts"`
}

type googleGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type googleRequestBody struct {
	SystemInstruction *googleSystemInstruction `json:"system_instruction,omitempty"`
	Contents          []googleContent          `json:"contents"`
	GenerationConfig  *googleGenerationConfig  `json:"generationConfig,omitempty"`
}

type googleRequestConverter struct {
	stateExtractPath string
}

func (c *googleRequestConverter) ConvertRequest(req SendRequest, cfg BaseConfig) (interface{}, error) {
	system, nonSystem := extractAndDedupeSystem(req)

	body := googleRequestBody{
		Contents: toGoogleContents(nonSystem),
	}
	if system != "" {
		body.SystemInstruction = &googleSystemInstruction{Parts: []googlePart{{Text: system}}}
	}
	if req.Options.MaxTokens > 0 {
		body.GenerationConfig = &googleGenerationConfig{MaxOutputTokens: req.Options.MaxTokens}
	}

	merged, err := mergeExtraBody(body, req.Options.ExtraBody)
	if err != nil {
		return nil, err
	}
	// Tools are not part of the canonical body; Google-like adapters
	// extend extraBody.tools instead of a top-level tools[] array.
	if len(req.Options.Tools) > 0 {
		existing, isList := merged["tools"].([]interface{})
		if _, present := merged["tools"]; !present || isList {
			for _, t := range req.Options.Tools {
				existing = append(existing, t)
			}
			merged["tools"] = existing
		}
	}

	if len(req.ProviderState) > 0 && c.stateExtractPath != "" && len(body.Contents) > 0 {
		var value interface{}
		if err := json.Unmarshal(req.ProviderState, &value); err == nil {
			if path := stateInjectPath(c.stateExtractPath, len(body.Contents)-1); path != "" {
				setDottedPath(merged, path, value)
			}
		}
	}

	return merged, nil
}

// stateInjectPath mirrors a response-side extraction path
// ("candidates.<n>.content.parts...") onto the equivalent location in
// the next outgoing request, where the turn lives under
// "contents.<lastIdx>..." rather than "candidates.<n>.content...".
func stateInjectPath(extractPath string, lastContentIndex int) string {
	const candidatesPrefix = "candidates."
	if !strings.HasPrefix(extractPath, candidatesPrefix) {
		return ""
	}
	rest := extractPath[len(candidatesPrefix):]
	dot := strings.Index(rest, ".")
	if dot < 0 {
		return ""
	}
	rest = strings.TrimPrefix(rest[dot+1:], "content.")
	return fmt.Sprintf("contents.%d.%s", lastContentIndex, rest)
}

func toGoogleContents(msgs []Message) []googleContent {
	out := make([]googleContent, len(msgs))
	for i, m := range msgs {
		role := string(m.Role)
		if m.Role == RoleAssistant {
			role = "model"
		}
		out[i] = googleContent{Role: role, Parts: []googlePart{{Text: m.Content}}}
	}
	return out
}

type googleResponseCandidate struct {
	Content struct {
		Parts []struct {
			Text             string `json:"text"`
			FunctionCall     *struct {
				Name string                 `json:"name"`
				Args map[string]interface{} `json:"args"`
			} `json:"functionCall,omitempty"`
		} `json:"parts"`
	} `json:"content"`
}

type googleUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type googleResponseBody struct {
	Candidates    []googleResponseCandidate `json:"candidates"`
	UsageMetadata googleUsageMetadata        `json:"usageMetadata"`
}

type googleResponseConverter struct {
	stateExtractPath string
}

func (c *googleResponseConverter) ConvertResponse(data []byte) (*SendResponse, error) {
	var resp googleResponseBody
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshalling google-like response: %w", err)
	}

	var blocks []ContentBlock
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.FunctionCall != nil {
				blocks = append(blocks, ContentBlock{Type: ContentBlockToolUse, ToolName: part.FunctionCall.Name, ToolInput: part.FunctionCall.Args})
				continue
			}
			if part.Text != "" {
				blocks = append(blocks, ContentBlock{Type: ContentBlockText, Text: part.Text})
			}
		}
	}

	var providerState json.RawMessage
	if c.stateExtractPath != "" {
		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err == nil {
			if val, ok := extractDottedPath(raw, c.stateExtractPath); ok {
				providerState, _ = json.Marshal(val)
			}
		}
	}

	return &SendResponse{
		Text: ExtractText(blocks),
		Usage: &Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		},
		ProviderState: providerState,
	}, nil
}

// extractDottedPath walks a dotted path ("candidates.0.content.parts.0.thoughtSignature")
// through nested maps and slices, returning the leaf value if every
// segment resolves.
func extractDottedPath(root interface{}, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	cur := root
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// setDottedPath writes value at the given dotted path through nested
// maps and slices, creating missing map keys as it goes. Array segments
// must already exist; it reports whether the write reached a leaf.
func setDottedPath(root interface{}, path string, value interface{}) bool {
	return setDottedPathSegments(root, strings.Split(path, "."), value)
}

func setDottedPathSegments(node interface{}, segments []string, value interface{}) bool {
	if len(segments) == 0 {
		return false
	}
	seg := segments[0]
	switch n := node.(type) {
	case map[string]interface{}:
		if len(segments) == 1 {
			n[seg] = value
			return true
		}
		child, ok := n[seg]
		if !ok {
			return false
		}
		return setDottedPathSegments(child, segments[1:], value)
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(n) {
			return false
		}
		if len(segments) == 1 {
			n[idx] = value
			return true
		}
		return setDottedPathSegments(n[idx], segments[1:], value)
	default:
		return false
	}
}
