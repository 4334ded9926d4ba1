// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/BluePanda-io/ai-agent-apis/pkg/llm/resilience"
	"github.com/BluePanda-io/ai-agent-apis/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置.
type ProviderOptions struct {
	// Provider 供应商名称 (openai, ollama).
	Provider     string        `json:"provider" mapstructure:"provider"`
	BaseURL      string        `json:"base-url" mapstructure:"base-url"`
	APIKey       string        `json:"-" mapstructure:"api-key"`
	Model        string        `json:"model" mapstructure:"model"`
	Organization string        `json:"organization" mapstructure:"organization"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`

	// Dimensions 仅对嵌入模型生效, 0 表示模型默认维度.
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	// 供应商外层的重试与熔断.
	RetryAttempts   int           `json:"retry-attempts" mapstructure:"retry-attempts"`
	BreakerFailures int           `json:"breaker-failures" mapstructure:"breaker-failures"`
	BreakerTimeout  time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// NewProviderOptions 创建默认 LLM 供应商配置.
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:        "openai",
		BaseURL:         "https://api.openai.com/v1",
		Timeout:         60 * time.Second,
		MaxRetries:      2,
		RetryAttempts:   2,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置.
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "text-embedding-3-small"
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置.
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "gpt-4o-mini"
	return opts
}

// ToConfigMap 转换为供应商工厂使用的配置 map.
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"organization": o.Organization,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"dimensions":   o.Dimensions,
	}
}

// RetryConfig 返回外层重试配置.
func (o *ProviderOptions) RetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = o.RetryAttempts
	return cfg
}

// BreakerConfig 返回熔断器配置.
func (o *ProviderOptions) BreakerConfig() *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.MaxFailures = o.BreakerFailures
	cfg.Timeout = o.BreakerTimeout
	return cfg
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
// 未指定前缀时使用 "llm.", 否则直接使用前缀 (embedding., chat.).
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	if p == "" {
		p = "llm."
	}
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (openai, ollama).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key. Falls back to OPENAI_API_KEY.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "HTTP level retries for 5xx answers.")
	fs.IntVar(&o.Dimensions, p+"dimensions", o.Dimensions, "Embedding dimensions requested from the model (0 = model default).")
	fs.IntVar(&o.RetryAttempts, p+"retry-attempts", o.RetryAttempts, "Attempts per call including the first, with exponential backoff.")
	fs.IntVar(&o.BreakerFailures, p+"breaker-failures", o.BreakerFailures, "Consecutive failures that open the circuit breaker.")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "How long the circuit breaker stays open.")
}

// Complete fills the API key from the environment when unset.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" && o.Provider == "openai" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 1
	}
	return nil
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "openai":
		if o.APIKey == "" {
			errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
		}
	case "ollama":
	default:
		errs = append(errs, fmt.Errorf("unsupported llm provider %q", o.Provider))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max-retries must not be negative"))
	}
	if o.BreakerFailures <= 0 {
		errs = append(errs, fmt.Errorf("breaker-failures must be positive"))
	}
	return errs
}
