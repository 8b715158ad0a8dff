package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"turn-orchestrator/internal/errors"
)

// MockLoremText is the fixed body returned by the "mock-lorem" selector.
const MockLoremText = "Lorem ipsum dolor sit amet, consectetur adipiscing elit."

// MockErrorMessage is the error surfaced by the "mock-error" selector.
const MockErrorMessage = "Simulated mock error"

// MockClient implements the Adapter contract for the Mock provider family:
// no HTTP call, no providerState, system/tools ignored, deterministic text
// keyed by a model selector (spec §4.6's table).
type MockClient struct {
	latency time.Duration
}

// NewMockClient builds a Mock adapter. latency, if positive, is slept
// before returning, simulating provider round-trip time.
func NewMockClient(latency time.Duration) *MockClient {
	return &MockClient{latency: latency}
}

// Send implements Adapter. It never issues network I/O; the returned
// text is a pure function of req.Model.
func (c *MockClient) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch req.Model {
	case "mock-error":
		return nil, &errors.AdapterError{Provider: "mock", Detail: MockErrorMessage}
	case "mock-lorem":
		return &SendResponse{Text: MockLoremText, Usage: mockUsage(MockLoremText)}, nil
	default:
		// "mock-echo" and any other selector echo the latest user message.
		text := fmt.Sprintf("Echo: %s", lastUserMessage(req))
		return &SendResponse{Text: text, Usage: mockUsage(text)}, nil
	}
}

// lastUserMessage returns the most recent user-role message content,
// stripped of ViewBuilder's "User: " framing convention — Mock ignores
// presentation framing by contract and echoes the raw message text.
func lastUserMessage(req SendRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			const prefix = "User: "
			content := req.Messages[i].Content
			if strings.HasPrefix(content, prefix) {
				return content[len(prefix):]
			}
			return content
		}
	}
	return ""
}

func mockUsage(text string) *Usage {
	approx := (len(text) + 3) / 4
	return &Usage{InputTokens: approx, OutputTokens: approx, TotalTokens: approx * 2}
}
