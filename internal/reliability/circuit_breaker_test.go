package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cfg := DefaultConfig("cb-test")
	cfg.MaxFailures = 2
	cfg.RequestVolumeThreshold = 1000 // keep the rate-based path out of this test
	cb := NewCircuitBreaker(cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	assert.True(t, IsCircuitBreakerError(err))
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cfg := DefaultConfig("cb-recover")
	cfg.MaxFailures = 1
	cfg.ResetTimeout = 1 * time.Millisecond
	cfg.SuccessThreshold = 1
	cfg.RequestVolumeThreshold = 1000
	cb := NewCircuitBreaker(cfg)

	_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("fail") })
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(2 * time.Millisecond)

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerManagerReusesByName(t *testing.T) {
	mgr := NewCircuitBreakerManager()
	a := mgr.GetOrCreate("cb-provider", nil)
	b := mgr.GetOrCreate("cb-provider", nil)
	assert.Same(t, a, b)
}
