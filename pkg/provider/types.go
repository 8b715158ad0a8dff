// Package provider implements the ProviderAdapter contract (spec §4.6):
// one adapter per model family, each exposing a single Send operation
// over a canonical request/response shape.
package provider

import (
	"context"
	"encoding/json"
)

// Role is a canonical message role.
type Role string

// Canonical roles accepted in SendRequest.Messages.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a canonical conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Tool is a tool surface an adapter may expose to its provider.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ThinkingOptions mirrors Anthropic-style extended-thinking configuration;
// adapters that don't support it ignore it.
type ThinkingOptions struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Options carries the recognised per-call option fields (spec §4.6).
type Options struct {
	MaxTokens    int                    `json:"maxTokens,omitempty"`
	Reasoning    map[string]interface{} `json:"reasoning,omitempty"`
	Thinking     *ThinkingOptions       `json:"thinking,omitempty"`
	Tools        []Tool                 `json:"tools,omitempty"`
	ExtraBody    map[string]interface{} `json:"extraBody,omitempty"`
	ExtraHeaders map[string]string      `json:"extraHeaders,omitempty"`
}

// SendRequest is the canonical input to every adapter's Send.
type SendRequest struct {
	Model         string          `json:"model"`
	System        string          `json:"system,omitempty"`
	Messages      []Message       `json:"messages"`
	Options       Options         `json:"options"`
	ProviderState json.RawMessage `json:"providerState,omitempty"`
}

// Usage is the provider's raw token accounting for one call. ThinkingTokens
// is left zero for providers (most) that don't break out a reasoning/
// thinking token count separately from output tokens.
type Usage struct {
	InputTokens    int `json:"input_tokens,omitempty"`
	OutputTokens   int `json:"output_tokens,omitempty"`
	ThinkingTokens int `json:"thinking_tokens,omitempty"`
	TotalTokens    int `json:"total_tokens,omitempty"`
}

// SendResponse is the canonical output of every adapter's Send.
type SendResponse struct {
	Text          string                 `json:"text"`
	Usage         *Usage                 `json:"usage,omitempty"`
	ProviderState json.RawMessage        `json:"providerState,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// Adapter is the single operation every provider family implements.
type Adapter interface {
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
}
