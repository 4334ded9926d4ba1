package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/httpclient"
)

var errUpstream = &httpclient.StatusError{StatusCode: http.StatusBadGateway, Body: "bad gateway"}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 3, Timeout: time.Minute, HalfOpenMaxCalls: 1})

	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(func() error { return errUpstream }))
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})
	cb.now = func() time.Time { return now }

	require.Error(t, cb.Execute(func() error { return errUpstream }))
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})
	cb.now = func() time.Time { return now }

	require.Error(t, cb.Execute(func() error { return errUpstream }))
	now = now.Add(2 * time.Second)
	require.Error(t, cb.Execute(func() error { return errUpstream }))
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreakerReportsTransitions(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("chat", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})
	cb.now = func() time.Time { return now }

	var seen []State
	cb.OnStateChange(func(name string, _, to State) {
		assert.Equal(t, "chat", name)
		seen = append(seen, to)
	})

	require.Error(t, cb.Execute(func() error { return errUpstream }))
	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(func() error { return nil }))
	cb.Reset()

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, seen)
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	require.Error(t, cb.Execute(func() error { return context.Canceled }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Stats().Failures)
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute})
	require.Error(t, cb.Execute(func() error { return errUpstream }))
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Stats{Name: "test", State: "closed"}, cb.Stats())
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
			calls++
			if calls < 3 {
				return errUpstream
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non retryable error", func(t *testing.T) {
		calls := 0
		bad := &httpclient.StatusError{StatusCode: http.StatusBadRequest}
		err := RetryWithBackoff(context.Background(), fastRetry(5), func() error {
			calls++
			return bad
		})
		assert.ErrorIs(t, err, bad)
		assert.Equal(t, 1, calls)
	})

	t.Run("wraps last error when exhausted", func(t *testing.T) {
		err := RetryWithBackoff(context.Background(), fastRetry(2), func() error { return errUpstream })
		require.Error(t, err)
		assert.ErrorIs(t, err, errUpstream)
		assert.Contains(t, err.Error(), "max retry attempts (2)")
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := fastRetry(5)
		cfg.InitialDelay = time.Hour
		err := RetryWithBackoff(ctx, cfg, func() error {
			cancel()
			return errUpstream
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"circuit open", ErrCircuitOpen, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{"429", &httpclient.StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"503", fmt.Errorf("embed: %w", &httpclient.StatusError{StatusCode: http.StatusServiceUnavailable}), true},
		{"400", &httpclient.StatusError{StatusCode: http.StatusBadRequest}, false},
		{"dns", &net.DNSError{Err: "no such host", Name: "api"}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

type mockChat struct{ mock.Mock }

func (m *mockChat) Name() string { return "mock" }

func (m *mockChat) Chat(ctx context.Context, msgs []llm.Message, opts ...llm.GenerateOption) (string, error) {
	args := m.Called(ctx, msgs)
	return args.String(0), args.Error(1)
}

func (m *mockChat) Generate(ctx context.Context, prompt, system string, opts ...llm.GenerateOption) (string, error) {
	args := m.Called(ctx, prompt, system)
	return args.String(0), args.Error(1)
}

type mockEmbedder struct{ mock.Mock }

func (m *mockEmbedder) Name() string { return "mock" }

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	out, _ := args.Get(0).([][]float32)
	return out, args.Error(1)
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	out, _ := args.Get(0).([]float32)
	return out, args.Error(1)
}

func TestWrapChatRetries(t *testing.T) {
	inner := &mockChat{}
	inner.On("Generate", mock.Anything, "p", "s").Return("", errUpstream).Once()
	inner.On("Generate", mock.Anything, "p", "s").Return("done", nil).Once()

	p := WrapChat(inner, fastRetry(3), nil)
	out, err := p.Generate(context.Background(), "p", "s")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, "mock", p.Name())
	inner.AssertExpectations(t)
}

func TestWrapEmbeddingOpensBreaker(t *testing.T) {
	inner := &mockEmbedder{}
	inner.On("EmbedSingle", mock.Anything, "q").Return(nil, errUpstream)

	p := WrapEmbedding(inner, fastRetry(1), &CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	for i := 0; i < 2; i++ {
		_, err := p.EmbedSingle(context.Background(), "q")
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, p.Breaker().State())

	_, err := p.EmbedSingle(context.Background(), "q")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	inner.AssertNumberOfCalls(t, "EmbedSingle", 2)
}

func TestWrapEmbeddingBatch(t *testing.T) {
	inner := &mockEmbedder{}
	inner.On("Embed", mock.Anything, []string{"a"}).Return([][]float32{{1}}, nil)

	p := WrapEmbedding(inner, nil, nil)
	out, err := p.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}}, out)
}
