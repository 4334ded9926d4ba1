package resilience

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/BluePanda-io/ai-agent-apis/pkg/llm"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/httpclient"
)

// EmbeddingProvider 为 llm.EmbeddingProvider 增加重试和熔断.
type EmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// WrapEmbedding 包装嵌入供应商, nil 配置使用默认值.
func WrapEmbedding(p llm.EmbeddingProvider, retry *RetryConfig, cb *CircuitBreakerConfig) *EmbeddingProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &EmbeddingProvider{
		provider: p,
		retry:    retry,
		cb:       NewCircuitBreaker(p.Name()+"-embedding", cb),
	}
}

func (r *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		out, err = r.provider.Embed(ctx, texts)
		return err
	})
	return out, err
}

func (r *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		out, err = r.provider.EmbedSingle(ctx, text)
		return err
	})
	return out, err
}

func (r *EmbeddingProvider) Name() string { return r.provider.Name() }

// Breaker 返回内部熔断器.
func (r *EmbeddingProvider) Breaker() *CircuitBreaker { return r.cb }

// ChatProvider 为 llm.ChatProvider 增加重试和熔断.
type ChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// WrapChat 包装文本生成供应商, nil 配置使用默认值.
func WrapChat(p llm.ChatProvider, retry *RetryConfig, cb *CircuitBreakerConfig) *ChatProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &ChatProvider{
		provider: p,
		retry:    retry,
		cb:       NewCircuitBreaker(p.Name()+"-chat", cb),
	}
}

func (r *ChatProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	var out string
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		out, err = r.provider.Chat(ctx, messages, opts...)
		return err
	})
	return out, err
}

func (r *ChatProvider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...llm.GenerateOption) (string, error) {
	var out string
	err := RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		var err error
		out, err = r.provider.Generate(ctx, prompt, systemPrompt, opts...)
		return err
	})
	return out, err
}

func (r *ChatProvider) Name() string { return r.provider.Name() }

// Breaker 返回内部熔断器.
func (r *ChatProvider) Breaker() *CircuitBreaker { return r.cb }

// IsRetryableError 判断错误是否值得重试: 网络错误, 429 与 5xx.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

var (
	_ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ChatProvider)(nil)
)
