package provider

import (
	"context"

	"turn-orchestrator/internal/reliability"
)

// XAIClient implements the Adapter contract for XAI-like providers. The
// wire shape is identical to OpenAI-like (spec §4.6's table: "same as
// OpenAI-like"), so this adapter is a thin wrapper around the same
// converters under a distinct provider name/base URL/circuit breaker.
type XAIClient struct {
	base *BaseClient
}

// NewXAIClient builds an XAI-like adapter.
func NewXAIClient(apiKey, baseURL string, breakers *reliability.CircuitBreakerManager) *XAIClient {
	cfg := BaseConfig{Name: "xai", APIKey: apiKey, BaseURL: baseURL}
	base := NewBaseClient(cfg, &bearerAuth{}, &openAIRequestConverter{}, &openAIResponseConverter{}, breakers)
	return &XAIClient{base: base}
}

// Send implements Adapter.
func (c *XAIClient) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	return c.base.Send(ctx, req)
}
