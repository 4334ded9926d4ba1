package metrics

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type baseMetric struct {
	name string
	help string
	typ  MetricType
}

func (m *baseMetric) Name() string     { return m.name }
func (m *baseMetric) Help() string     { return m.help }
func (m *baseMetric) Type() MetricType { return m.typ }

func (m *baseMetric) header(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n", m.name, m.help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", m.name, m.typ)
}

// atomicFloat 以 uint64 位模式存储 float64.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) add(v float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (f *atomicFloat) set(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat) get() float64 { return math.Float64frombits(f.bits.Load()) }

// --- Counter ---

type counter struct {
	baseMetric
	val atomicFloat
}

// NewCounter creates a Counter.
func NewCounter(name, help string) Counter {
	return &counter{baseMetric: baseMetric{name: name, help: help, typ: TypeCounter}}
}

func (c *counter) Inc() { c.Add(1) }

// Add ignores negative values.
func (c *counter) Add(v float64) {
	if v < 0 {
		return
	}
	c.val.add(v)
}

func (c *counter) Get() float64 { return c.val.get() }

func (c *counter) Describe() string {
	var sb strings.Builder
	c.header(&sb)
	fmt.Fprintf(&sb, "%s %s\n", c.name, formatValue(c.Get()))
	return sb.String()
}

// --- Gauge ---

type gauge struct {
	baseMetric
	val atomicFloat
}

// NewGauge creates a Gauge.
func NewGauge(name, help string) Gauge {
	return &gauge{baseMetric: baseMetric{name: name, help: help, typ: TypeGauge}}
}

func (g *gauge) Set(v float64) { g.val.set(v) }
func (g *gauge) Inc()          { g.val.add(1) }
func (g *gauge) Dec()          { g.val.add(-1) }
func (g *gauge) Add(v float64) { g.val.add(v) }
func (g *gauge) Get() float64  { return g.val.get() }

func (g *gauge) Describe() string {
	var sb strings.Builder
	g.header(&sb)
	fmt.Fprintf(&sb, "%s %s\n", g.name, formatValue(g.Get()))
	return sb.String()
}

// --- Vectors ---

type child[T Metric] struct {
	labels map[string]string
	metric T
}

// vec 按标签串缓存子指标.
type vec[T Metric] struct {
	baseMetric
	children sync.Map // map[string]*child[T]
	newChild func(name string) T
	value    func(T) float64
}

func (v *vec[T]) with(labels map[string]string) T {
	key := formatLabels(v.name, labels)
	if c, ok := v.children.Load(key); ok {
		return c.(*child[T]).metric
	}
	c := &child[T]{labels: maps.Clone(labels), metric: v.newChild(key)}
	actual, _ := v.children.LoadOrStore(key, c)
	return actual.(*child[T]).metric
}

func (v *vec[T]) keys() []string {
	var keys []string
	v.children.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

func (v *vec[T]) Samples() []Sample {
	keys := v.keys()
	out := make([]Sample, 0, len(keys))
	for _, k := range keys {
		if c, ok := v.children.Load(k); ok {
			ch := c.(*child[T])
			out = append(out, Sample{Labels: maps.Clone(ch.labels), Value: v.value(ch.metric)})
		}
	}
	return out
}

func (v *vec[T]) Describe() string {
	var sb strings.Builder
	v.header(&sb)
	for _, k := range v.keys() {
		if c, ok := v.children.Load(k); ok {
			fmt.Fprintf(&sb, "%s %s\n", k, formatValue(v.value(c.(*child[T]).metric)))
		}
	}
	return sb.String()
}

type counterVec struct {
	*vec[Counter]
}

// NewCounterVec creates a CounterVec.
func NewCounterVec(name, help string) CounterVec {
	return &counterVec{&vec[Counter]{
		baseMetric: baseMetric{name: name, help: help, typ: TypeCounter},
		newChild:   func(key string) Counter { return NewCounter(key, help) },
		value:      func(c Counter) float64 { return c.Get() },
	}}
}

func (v *counterVec) With(labels map[string]string) Counter { return v.with(labels) }

type gaugeVec struct {
	*vec[Gauge]
}

// NewGaugeVec creates a GaugeVec.
func NewGaugeVec(name, help string) GaugeVec {
	return &gaugeVec{&vec[Gauge]{
		baseMetric: baseMetric{name: name, help: help, typ: TypeGauge},
		newChild:   func(key string) Gauge { return NewGauge(key, help) },
		value:      func(g Gauge) float64 { return g.Get() },
	}}
}

func (v *gaugeVec) With(labels map[string]string) Gauge { return v.with(labels) }

func formatLabels(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
