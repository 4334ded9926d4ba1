// Package metrics 收集工单服务的业务指标.
package metrics

import (
	"sync"
	"time"

	"github.com/BluePanda-io/ai-agent-apis/pkg/observability/metrics"
)

const namespace = "ticket"

// 熔断器状态在 gauge 中的取值, 与 resilience.State 一致.
const (
	BreakerClosed   = 0
	BreakerOpen     = 1
	BreakerHalfOpen = 2
)

// Fallback reasons.
const (
	ReasonError = "error"
	ReasonEmpty = "empty"
)

// TicketMetrics 工单服务业务指标. 所有方法对 nil 接收者安全.
type TicketMetrics struct {
	registry *metrics.Registry

	// 一致性
	partialConsistency metrics.CounterVec // operation
	reconcileResults   metrics.CounterVec // result

	// 变更描述与检索文本降级
	fallbacks metrics.CounterVec // component, reason

	// 检索
	searchesTotal  metrics.Counter
	searchErrors   metrics.Counter
	orphansDropped metrics.Counter

	// 熔断器
	breakerState metrics.GaugeVec   // breaker
	breakerOpens metrics.CounterVec // breaker

	startTime time.Time
}

var (
	globalMetrics *TicketMetrics
	metricsOnce   sync.Once
)

// Default returns the process-wide instance.
func Default() *TicketMetrics {
	metricsOnce.Do(func() {
		globalMetrics = New()
	})
	return globalMetrics
}

// New creates an instance with its own registry.
func New() *TicketMetrics {
	name := func(s string) string { return namespace + "_" + s }
	m := &TicketMetrics{
		partialConsistency: metrics.NewCounterVec(name("partial_consistency_total"),
			"Store writes whose index update failed and was recorded as a consistency event."),
		reconcileResults: metrics.NewCounterVec(name("reconcile_events_total"),
			"Consistency events replayed, by result."),
		fallbacks: metrics.NewCounterVec(name("llm_fallbacks_total"),
			"Deterministic fallbacks used in place of a chat completion."),
		searchesTotal:  metrics.NewCounter(name("searches_total"), "Semantic searches served."),
		searchErrors:   metrics.NewCounter(name("search_errors_total"), "Semantic searches that failed."),
		orphansDropped: metrics.NewCounter(name("search_orphans_dropped_total"), "Index hits dropped because the ticket no longer exists."),
		breakerState: metrics.NewGaugeVec(name("circuit_breaker_state"),
			"Circuit breaker state (0=closed, 1=open, 2=half-open)."),
		breakerOpens: metrics.NewCounterVec(name("circuit_breaker_opens_total"), "Circuit breaker opens."),
		startTime:    time.Now(),
	}
	m.registry = metrics.NewRegistry().MustRegister(
		m.partialConsistency,
		m.reconcileResults,
		m.fallbacks,
		m.searchesTotal,
		m.searchErrors,
		m.orphansDropped,
		m.breakerState,
		m.breakerOpens,
	)
	return m
}

// RecordPartialConsistency 记录一次文档库已提交但索引未同步.
func (m *TicketMetrics) RecordPartialConsistency(operation string) {
	if m == nil {
		return
	}
	m.partialConsistency.With(map[string]string{"operation": operation}).Inc()
}

// RecordReconcile 记录一次事件重放结果.
func (m *TicketMetrics) RecordReconcile(result string) {
	if m == nil {
		return
	}
	m.reconcileResults.With(map[string]string{"result": result}).Inc()
}

// RecordFallback 记录 narrator 或 projector 使用了降级结果.
func (m *TicketMetrics) RecordFallback(component, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.With(map[string]string{"component": component, "reason": reason}).Inc()
}

// RecordSearch 记录一次检索.
func (m *TicketMetrics) RecordSearch(err error) {
	if m == nil {
		return
	}
	m.searchesTotal.Inc()
	if err != nil {
		m.searchErrors.Inc()
	}
}

// RecordOrphanDropped 记录一条被丢弃的失效命中.
func (m *TicketMetrics) RecordOrphanDropped() {
	if m == nil {
		return
	}
	m.orphansDropped.Inc()
}

// RecordBreakerState 记录熔断器状态变化. 进入打开状态时累加打开次数.
func (m *TicketMetrics) RecordBreakerState(breaker string, state int) {
	if m == nil {
		return
	}
	labels := map[string]string{"breaker": breaker}
	m.breakerState.With(labels).Set(float64(state))
	if state == BreakerOpen {
		m.breakerOpens.With(labels).Inc()
	}
}

// Export 导出 Prometheus 文本格式.
func (m *TicketMetrics) Export() string {
	if m == nil {
		return ""
	}
	return m.registry.Export()
}

// Stats 当前统计, 用于 API.
type Stats struct {
	PartialConsistency map[string]uint64  `json:"partial_consistency"`
	Reconcile          map[string]uint64  `json:"reconcile"`
	Fallbacks          map[string]uint64  `json:"fallbacks"`
	Search             SearchStats        `json:"search"`
	Breakers           map[string]Breaker `json:"circuit_breakers"`
	UptimeSeconds      float64            `json:"uptime_seconds"`
}

// SearchStats 检索统计.
type SearchStats struct {
	Total          uint64 `json:"total"`
	Errors         uint64 `json:"errors"`
	OrphansDropped uint64 `json:"orphans_dropped"`
}

// Breaker 单个熔断器统计.
type Breaker struct {
	State string `json:"state"`
	Opens uint64 `json:"opens"`
}

// Stats returns a snapshot. Fallbacks are keyed "component/reason".
func (m *TicketMetrics) Stats() *Stats {
	if m == nil {
		return &Stats{}
	}

	st := &Stats{
		PartialConsistency: byLabel(m.partialConsistency.Samples(), "operation"),
		Reconcile:          byLabel(m.reconcileResults.Samples(), "result"),
		Fallbacks:          make(map[string]uint64),
		Search: SearchStats{
			Total:          uint64(m.searchesTotal.Get()),
			Errors:         uint64(m.searchErrors.Get()),
			OrphansDropped: uint64(m.orphansDropped.Get()),
		},
		Breakers:      make(map[string]Breaker),
		UptimeSeconds: time.Since(m.startTime).Seconds(),
	}
	for _, s := range m.fallbacks.Samples() {
		st.Fallbacks[s.Labels["component"]+"/"+s.Labels["reason"]] = uint64(s.Value)
	}

	opens := byLabel(m.breakerOpens.Samples(), "breaker")
	for _, s := range m.breakerState.Samples() {
		name := s.Labels["breaker"]
		st.Breakers[name] = Breaker{State: stateName(int(s.Value)), Opens: opens[name]}
	}
	return st
}

func byLabel(samples []metrics.Sample, label string) map[string]uint64 {
	out := make(map[string]uint64, len(samples))
	for _, s := range samples {
		out[s.Labels[label]] = uint64(s.Value)
	}
	return out
}

func stateName(state int) string {
	switch state {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
