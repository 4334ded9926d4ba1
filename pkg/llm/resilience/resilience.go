// Package resilience 为 LLM 调用提供重试与熔断.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// RetryConfig 重试配置.
type RetryConfig struct {
	// MaxAttempts 最大尝试次数, 包括首次调用.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier 指数退避倍数.
	Multiplier float64
	// Retryable 判断错误是否可重试, nil 时使用 IsRetryableError.
	Retryable func(error) bool
}

// DefaultRetryConfig 返回默认重试配置.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Retryable:    IsRetryableError,
	}
}

// CircuitBreakerConfig 熔断器配置.
type CircuitBreakerConfig struct {
	// MaxFailures 连续失败达到该值时打开熔断器.
	MaxFailures int
	// Timeout 打开状态持续时间, 之后进入半开.
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的探测调用数.
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// State 熔断器状态.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen 熔断器打开时返回.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker 熔断器.
type CircuitBreaker struct {
	name   string
	config *CircuitBreakerConfig
	now    func() time.Time

	mu                sync.Mutex
	state             State
	failures          int
	openedAt          time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
	onStateChange     func(name string, from, to State)
}

// OnStateChange registers fn, called with the breaker lock held on every
// transition. fn must not call back into the breaker.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	cb.state = to
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.onStateChange != nil && from != to {
		cb.onStateChange(cb.name, from, to)
	}
}

// NewCircuitBreaker 创建熔断器, name 仅用于日志.
func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{name: name, config: config, now: time.Now}
}

// Execute 通过熔断器执行 fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
			return ErrCircuitOpen
		}
		logger.Infow("circuit breaker half-open", "breaker", cb.name)
		cb.setState(StateHalfOpen)
		cb.halfOpenCalls = 1
		cb.halfOpenSuccesses = 0
		return nil
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitOpen
		}
		cb.halfOpenCalls++
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// 上下文取消不是下游故障
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		if cb.state == StateHalfOpen {
			cb.halfOpenCalls--
		}
		return
	}

	if err == nil {
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.halfOpenCalls {
				logger.Infow("circuit breaker closed", "breaker", cb.name)
				cb.setState(StateClosed)
				cb.failures = 0
			}
		}
		return
	}

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			logger.Warnw("circuit breaker opening",
				"breaker", cb.name,
				"failures", cb.failures,
				"error", err.Error(),
			)
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		logger.Warnw("circuit breaker re-opening", "breaker", cb.name, "error", err.Error())
		cb.setState(StateOpen)
	}
}

// State 返回当前状态.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats 熔断器统计.
type Stats struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// Stats 返回当前统计.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{Name: cb.name, State: cb.state.String(), Failures: cb.failures}
}

// Reset 恢复为关闭状态.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.halfOpenCalls = 0
	cb.halfOpenSuccesses = 0
}

// RetryWithBackoff 以指数退避重试 fn.
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("max retry attempts (%d) reached: %w", attempts, err)
		}

		logger.Debugw("retrying llm call", "attempt", attempt, "delay", delay, "error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}

// RetryWithCircuitBreaker 每次尝试都经过熔断器.
func RetryWithCircuitBreaker(ctx context.Context, retry *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return RetryWithBackoff(ctx, retry, func() error {
		return cb.Execute(fn)
	})
}
