package metrics

import (
	"sort"
	"strings"
	"sync"
)

// Registry manages a collection of metrics.
type Registry struct {
	metrics sync.Map // map[string]Metric
}

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register stores m under its name, replacing any metric with the same name.
func (r *Registry) Register(m Metric) {
	r.metrics.Store(m.Name(), m)
}

// MustRegister registers every metric and returns the registry for chaining.
func (r *Registry) MustRegister(ms ...Metric) *Registry {
	for _, m := range ms {
		r.Register(m)
	}
	return r
}

// Export returns all metrics in Prometheus text format, sorted by name.
func (r *Registry) Export() string {
	var names []string
	r.metrics.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		if val, ok := r.metrics.Load(name); ok {
			sb.WriteString(val.(Metric).Describe())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Unregister removes a metric from the registry.
func (r *Registry) Unregister(name string) {
	r.metrics.Delete(name)
}
