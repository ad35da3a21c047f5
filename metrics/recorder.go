package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-membergate/core"
)

// Labels kept on every series. Tags outside this set (emails, delivery ids)
// are dropped to keep series cardinality bounded.
var allowedLabels = []string{"operation", "status", "event"}

// PrometheusRecorder adapts a prometheus registry to the service's metrics
// contract. Counter and histogram vectors are created lazily per metric name.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

func NewPrometheusRecorder(registry *prometheus.Registry) *PrometheusRecorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &PrometheusRecorder{
		registry:   registry,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

// NewDefaultRecorder builds a recorder on a fresh registry with the standard
// process and runtime collectors attached.
func NewDefaultRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewPrometheusRecorder(registry)
}

func (r *PrometheusRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	name = sanitizeName(name)
	if name == "" {
		return
	}
	r.mu.Lock()
	vec, exists := r.counters[name]
	if !exists {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: "Counter recorded by the membergate service.",
		}, allowedLabels)
		if err := r.registry.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		r.counters[name] = vec
	}
	r.mu.Unlock()
	vec.With(labelValues(tags)).Add(float64(value))
}

func (r *PrometheusRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	name = sanitizeName(name)
	if name == "" {
		return
	}
	r.mu.Lock()
	vec, exists := r.histograms[name]
	if !exists {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    "Histogram recorded by the membergate service.",
			Buckets: prometheus.DefBuckets,
		}, allowedLabels)
		if err := r.registry.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		r.histograms[name] = vec
	}
	r.mu.Unlock()
	vec.With(labelValues(tags)).Observe(value)
}

// Handler exposes the registry for scraping.
func (r *PrometheusRecorder) Handler() http.Handler {
	if r == nil || r.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func labelValues(tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(allowedLabels))
	for _, key := range allowedLabels {
		labels[key] = strings.TrimSpace(tags[key])
	}
	return labels
}

// sanitizeName rewrites dotted metric names into the prometheus form:
// membergate.verify_customer.total becomes membergate_verify_customer_total.
func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(name))
	for index, char := range name {
		switch {
		case char >= 'a' && char <= 'z':
			builder.WriteRune(char)
		case char >= '0' && char <= '9' && index > 0:
			builder.WriteRune(char)
		default:
			builder.WriteByte('_')
		}
	}
	return builder.String()
}

// AllowedLabels reports the label keys kept on every series, sorted.
func AllowedLabels() []string {
	keys := make([]string, len(allowedLabels))
	copy(keys, allowedLabels)
	sort.Strings(keys)
	return keys
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)
