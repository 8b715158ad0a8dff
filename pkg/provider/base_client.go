package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"turn-orchestrator/internal/errors"
	"turn-orchestrator/internal/reliability"
)

// AuthProvider attaches provider-specific authentication to an HTTP request.
type AuthProvider interface {
	AddAuth(req *http.Request, apiKey string)
}

// RequestConverter turns a canonical SendRequest into a provider-shaped body.
type RequestConverter interface {
	ConvertRequest(req SendRequest, cfg BaseConfig) (interface{}, error)
}

// ResponseConverter turns a provider's raw response body into the
// canonical SendResponse.
type ResponseConverter interface {
	ConvertResponse(data []byte) (*SendResponse, error)
}

// BaseConfig is the HTTP-level configuration shared by every HTTP-backed
// adapter.
type BaseConfig struct {
	Name             string // provider name used in errors/metrics/circuit breaker naming
	APIKey           string
	BaseURL          string
	Path             string // endpoint path appended to BaseURL; ignored if PathFunc is set
	PathFunc         func(req SendRequest) string // per-request path, e.g. Google's model-scoped endpoint
	DefaultMaxTokens int
	RequestTimeout   time.Duration
}

// BaseClient composes an AuthProvider/RequestConverter/ResponseConverter
// trio into a full HTTP-calling adapter, with every call running through
// a named circuit breaker (spec §4.6's "any non-success HTTP status ⇒
// AdapterError", §5's "adapters should honour a configurable request
// timeout").
type BaseClient struct {
	config            BaseConfig
	httpClient        *http.Client
	authProvider      AuthProvider
	requestConverter  RequestConverter
	responseConverter ResponseConverter
	breakers          *reliability.CircuitBreakerManager
}

// NewBaseClient builds a BaseClient. breakers may be nil, in which case a
// private manager is created (useful in tests).
func NewBaseClient(cfg BaseConfig, auth AuthProvider, reqConv RequestConverter, respConv ResponseConverter, breakers *reliability.CircuitBreakerManager) *BaseClient {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if breakers == nil {
		breakers = reliability.NewCircuitBreakerManager()
	}
	return &BaseClient{
		config:            cfg,
		httpClient:        &http.Client{Timeout: cfg.RequestTimeout},
		authProvider:      auth,
		requestConverter:  reqConv,
		responseConverter: respConv,
		breakers:          breakers,
	}
}

// Send implements the common HTTP round trip for an AdapterClient: convert
// request, POST, convert response. Non-2xx statuses and transport errors
// surface as *errors.AdapterError; the call runs through this client's
// named circuit breaker.
func (bc *BaseClient) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	providerReq, err := bc.requestConverter.ConvertRequest(req, bc.config)
	if err != nil {
		return nil, &errors.AdapterError{Provider: bc.config.Name, Detail: fmt.Sprintf("building request: %v", err)}
	}

	body, err := json.Marshal(providerReq)
	if err != nil {
		return nil, &errors.AdapterError{Provider: bc.config.Name, Detail: fmt.Sprintf("marshalling request: %v", err)}
	}

	breaker := bc.breakers.GetOrCreate(bc.config.Name, reliability.DefaultConfig(bc.config.Name))

	path := bc.config.Path
	if bc.config.PathFunc != nil {
		path = bc.config.PathFunc(req)
	}

	var respBody []byte
	var statusCode int
	execErr := breaker.Execute(ctx, func(ctx context.Context) error {
		respBody, statusCode, err = bc.doHTTP(ctx, path, body, req.Options.ExtraHeaders)
		return err
	})
	if execErr != nil {
		if reliability.IsCircuitBreakerError(execErr) {
			return nil, &errors.AdapterError{Provider: bc.config.Name, Detail: execErr.Error()}
		}
		return nil, &errors.AdapterError{Provider: bc.config.Name, Status: statusCode, Detail: excerpt(respBody, execErr)}
	}

	return bc.responseConverter.ConvertResponse(respBody)
}

func excerpt(body []byte, err error) string {
	if len(body) == 0 {
		return err.Error()
	}
	const maxLen = 512
	if len(body) > maxLen {
		return string(body[:maxLen])
	}
	return string(body)
}

func (bc *BaseClient) doHTTP(ctx context.Context, path string, body []byte, extraHeaders map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bc.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "turn-orchestrator/1.0")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	bc.authProvider.AddAuth(req, bc.config.APIKey)

	resp, err := bc.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("calling %s: %w", bc.config.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}
	return respBody, resp.StatusCode, nil
}

// ExtractText concatenates text-bearing blocks in declared order and
// serialises tool-invocation blocks per spec §4.6's uniform extraction
// rule.
func ExtractText(blocks []ContentBlock) string {
	var b []byte
	for _, blk := range blocks {
		switch blk.Type {
		case ContentBlockText:
			b = append(b, blk.Text...)
		case ContentBlockToolUse:
			args, _ := json.MarshalIndent(blk.ToolInput, "", "  ")
			b = append(b, []byte(fmt.Sprintf("\n\n[Tool: %s]\n%s\n", blk.ToolName, args))...)
		}
	}
	return string(b)
}

// ContentBlockKind discriminates ContentBlock.
type ContentBlockKind string

// Recognised content block kinds for text extraction.
const (
	ContentBlockText    ContentBlockKind = "text"
	ContentBlockToolUse ContentBlockKind = "tool_use"
)

// ContentBlock is a provider-agnostic output block used by ExtractText.
type ContentBlock struct {
	Type      ContentBlockKind
	Text      string
	ToolName  string
	ToolInput map[string]interface{}
}
