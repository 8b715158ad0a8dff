package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientEchoesLastUserMessage(t *testing.T) {
	client := NewMockClient(0)
	resp, err := client.Send(context.Background(), SendRequest{
		Model: "mock-echo",
		Messages: []Message{
			{Role: RoleAssistant, Content: "ignored"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Echo: hi", resp.Text)
}

func TestMockClientEchoStripsUserFramingPrefix(t *testing.T) {
	client := NewMockClient(0)
	resp, err := client.Send(context.Background(), SendRequest{
		Model:    "mock-echo",
		Messages: []Message{{Role: RoleUser, Content: "User: hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Echo: hi", resp.Text)
}

func TestMockClientLoremReturnsFixedText(t *testing.T) {
	client := NewMockClient(0)
	resp, err := client.Send(context.Background(), SendRequest{Model: "mock-lorem"})
	require.NoError(t, err)
	assert.Equal(t, MockLoremText, resp.Text)
}

func TestMockClientErrorVariantReturnsAdapterError(t *testing.T) {
	client := NewMockClient(0)
	_, err := client.Send(context.Background(), SendRequest{Model: "mock-error"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), MockErrorMessage)
}

func TestMockClientHonoursLatency(t *testing.T) {
	client := NewMockClient(10 * time.Millisecond)
	start := time.Now()
	_, err := client.Send(context.Background(), SendRequest{Model: "mock-echo"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestMockClientRespectsContextCancellation(t *testing.T) {
	client := NewMockClient(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Send(ctx, SendRequest{Model: "mock-echo"})
	require.Error(t, err)
}
