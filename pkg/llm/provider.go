// Package llm 定义嵌入与文本生成供应商的抽象接口, 以及按名称注册和创建供应商的注册表.
//
// 具体供应商在各自子包的 init 中注册:
//
//	import _ "github.com/BluePanda-io/ai-agent-apis/pkg/llm/openai"
//
//	embedder, err := llm.NewEmbeddingProvider("openai", map[string]any{"api_key": key})
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbeddingProvider 生成文本向量.
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量, 返回顺序与输入一致.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称.
	Name() string
}

// ChatProvider 生成文本.
type ChatProvider interface {
	// Chat 进行多轮对话.
	Chat(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// Generate 根据提示和系统提示生成文本.
	Generate(ctx context.Context, prompt string, systemPrompt string, opts ...GenerateOption) (string, error)

	// Name 返回供应商名称.
	Name() string
}

// Message 对话消息.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 消息角色.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// GenerateOptions 单次调用的生成参数, 零值表示使用供应商配置.
type GenerateOptions struct {
	Temperature *float64
	MaxTokens   int
}

// GenerateOption 设置 GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithTemperature 设置采样温度.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = &t }
}

// WithMaxTokens 设置最大生成 token 数.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

// ApplyGenerateOptions 合并调用方选项.
func ApplyGenerateOptions(opts ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// BuildMessages 把系统提示和用户提示组装成消息列表, 空系统提示会被省略.
func BuildMessages(prompt, systemPrompt string) []Message {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return append(messages, Message{Role: RoleUser, Content: prompt})
}

// Provider 同时支持嵌入和文本生成的供应商.
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory 根据配置创建供应商.
type ProviderFactory func(config map[string]any) (Provider, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}{factories: make(map[string]ProviderFactory)}

// RegisterProvider 注册供应商工厂, 同名注册会覆盖之前的工厂.
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories[name] = factory
}

// NewProvider 按名称创建供应商.
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.factories[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", name)
	}
	return factory(config)
}

// NewEmbeddingProvider 按名称创建嵌入供应商.
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	return NewProvider(name, config)
}

// NewChatProvider 按名称创建文本生成供应商.
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	return NewProvider(name, config)
}

// ListProviders 返回已注册的供应商名称, 按字母排序.
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
