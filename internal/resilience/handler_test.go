package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandler_CircuitBreakerOpensAfterThresholdFailures(t *testing.T) {
	configs := map[Path]PathConfig{
		PathBlockchainTransaction: {
			Timeout: time.Second, CBThreshold: 2, CBTimeout: time.Minute, IsCritical: true,
		},
	}
	h := NewHandler(NewRegistry(configs), 100, zap.NewNop())

	failing := func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("rpc boom")
	}

	for i := 0; i < 2; i++ {
		_, err := h.Execute(context.Background(), PathBlockchainTransaction, "blockchain", failing)
		require.Error(t, err)
	}

	// Threshold reached: the next call must short-circuit with a
	// CircuitBreaker error and never invoke the underlying operation.
	called := false
	_, err := h.Execute(context.Background(), PathBlockchainTransaction, "blockchain", func(ctx context.Context) (interface{}, error) {
		called = true
		return nil, nil
	})
	require.Error(t, err)
	assert.False(t, called)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, KindCircuitBreaker, rerr.Kind)
}

func TestHandler_SuccessClosesBreakerAndRecordsNoError(t *testing.T) {
	h := NewHandler(NewRegistry(DefaultPathConfigs()), 100, zap.NewNop())

	res, err := h.Execute(context.Background(), PathBlockchainTransaction, "blockchain", func(ctx context.Context) (interface{}, error) {
		return "hash", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hash", res)
	assert.Empty(t, h.Errors())
	assert.Equal(t, Closed, h.Registry().State(PathBlockchainTransaction).Status)
}

func TestHandler_PanicIsRecoveredAsSystemPanic(t *testing.T) {
	h := NewHandler(NewRegistry(DefaultPathConfigs()), 100, zap.NewNop())

	_, err := h.Execute(context.Background(), PathBlockchainTransaction, "blockchain", func(ctx context.Context) (interface{}, error) {
		panic("unexpected")
	})
	require.Error(t, err)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, KindRecovery, rerr.Kind)
	assert.Equal(t, SeverityCritical, rerr.Severity)
}

func TestHandler_TimeoutProducesRetryableError(t *testing.T) {
	configs := map[Path]PathConfig{
		PathBlockchainTransaction: {
			Timeout: 10 * time.Millisecond, CBThreshold: 5, CBTimeout: time.Minute, IsCritical: true,
		},
	}
	h := NewHandler(NewRegistry(configs), 100, zap.NewNop())

	_, err := h.Execute(context.Background(), PathBlockchainTransaction, "blockchain", func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestHandler_NonCriticalPathNeverConsultsBreaker(t *testing.T) {
	h := NewHandler(NewRegistry(DefaultPathConfigs()), 100, zap.NewNop())

	for i := 0; i < 20; i++ {
		_, err := h.Execute(context.Background(), PathGeneralAPI, "api", func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("fail")
		})
		require.Error(t, err)
	}
	assert.False(t, h.Registry().IsOpen(PathGeneralAPI))
}

func TestRing_BoundedOldestFirstEviction(t *testing.T) {
	r := NewRing(2)
	r.Push(Record{ID: "1"})
	r.Push(Record{ID: "2"})
	r.Push(Record{ID: "3"})

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "2", snap[0].ID)
	assert.Equal(t, "3", snap[1].ID)
}
