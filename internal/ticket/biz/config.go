package biz

import (
	"time"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/metrics"
)

// Config 业务层参数.
type Config struct {
	// DefaultTopK topK <= 0 时使用.
	DefaultTopK int
	// MaxTopK topK 上限.
	MaxTopK int
	// IndexTimeout 文档库写入成功后, 索引阶段脱离请求 context 运行的时间上限.
	IndexTimeout time.Duration
	// ReconcileConcurrency Reconcile 与 Rebuild 的并发数.
	ReconcileConcurrency int
	// Metrics 业务指标, 为空时使用 metrics.Default().
	Metrics *metrics.TicketMetrics
}

// DefaultConfig returns the defaults used by the apiserver flags.
func DefaultConfig() *Config {
	return &Config{
		DefaultTopK:          5,
		MaxTopK:              50,
		IndexTimeout:         30 * time.Second,
		ReconcileConcurrency: 4,
	}
}

func (c *Config) complete() *Config {
	out := *DefaultConfig()
	out.Metrics = metrics.Default()
	if c == nil {
		return &out
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.DefaultTopK > 0 {
		out.DefaultTopK = c.DefaultTopK
	}
	if c.MaxTopK > 0 {
		out.MaxTopK = c.MaxTopK
	}
	if out.DefaultTopK > out.MaxTopK {
		out.DefaultTopK = out.MaxTopK
	}
	if c.IndexTimeout > 0 {
		out.IndexTimeout = c.IndexTimeout
	}
	if c.ReconcileConcurrency > 0 {
		out.ReconcileConcurrency = c.ReconcileConcurrency
	}
	return &out
}
