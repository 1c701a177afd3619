package resilience

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricLabels is the fixed label set of every exported series. Tags outside
// this set are dropped; missing tags are exported as empty strings.
var metricLabels = []string{"provider", "model", "operation", "error_type", "stage"}

// PrometheusMetrics implements Metrics on a Prometheus registry.
// Metric names are namespaced under "sdg" with dots mapped to underscores,
// so "llm.requests.total" is exported as "sdg_llm_requests_total".
type PrometheusMetrics struct {
	factory promauto.Factory

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusMetrics creates a collector that registers its vectors with reg
// on first use.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	return &PrometheusMetrics{
		factory:    promauto.With(reg),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// IncrementCounter adds value to the named counter.
func (p *PrometheusMetrics) IncrementCounter(name string, tags map[string]string, value float64) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = p.factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdg",
			Name:      metricName(name),
			Help:      "Counter " + name,
		}, metricLabels)
		p.counters[name] = vec
	}
	p.mu.Unlock()

	vec.WithLabelValues(labelValues(tags)...).Add(value)
}

// RecordHistogram observes value in the named histogram.
func (p *PrometheusMetrics) RecordHistogram(name string, tags map[string]string, value float64) {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = p.factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdg",
			Name:      metricName(name),
			Help:      "Histogram " + name,
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, metricLabels)
		p.histograms[name] = vec
	}
	p.mu.Unlock()

	vec.WithLabelValues(labelValues(tags)...).Observe(value)
}

// SetGauge sets the named gauge.
func (p *PrometheusMetrics) SetGauge(name string, tags map[string]string, value float64) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = p.factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sdg",
			Name:      metricName(name),
			Help:      "Gauge " + name,
		}, metricLabels)
		p.gauges[name] = vec
	}
	p.mu.Unlock()

	vec.WithLabelValues(labelValues(tags)...).Set(value)
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func labelValues(tags map[string]string) []string {
	values := make([]string, len(metricLabels))
	for i, l := range metricLabels {
		values[i] = tags[l]
	}
	return values
}
