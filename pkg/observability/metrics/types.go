// Package metrics provides lock-free counters and gauges exported in the
// Prometheus text format.
package metrics

// MetricType represents the type of metric.
type MetricType string

const (
	TypeCounter MetricType = "counter"
	TypeGauge   MetricType = "gauge"
)

// Metric is the base interface for all metrics.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Describe returns the metric in Prometheus text format.
	Describe() string
}

// Counter only goes up.
type Counter interface {
	Metric
	Inc()
	Add(float64)
	Get() float64
}

// Gauge can go up and down.
type Gauge interface {
	Metric
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Get() float64
}

// Sample is one labelled child of a vector.
type Sample struct {
	Labels map[string]string
	Value  float64
}

// CounterVec is a family of counters keyed by label values.
type CounterVec interface {
	Metric
	With(labels map[string]string) Counter
	// Samples returns every child sorted by label string.
	Samples() []Sample
}

// GaugeVec is a family of gauges keyed by label values.
type GaugeVec interface {
	Metric
	With(labels map[string]string) Gauge
	Samples() []Sample
}
