package observability

import (
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const prometheusNamespace = "gems"

// PrometheusCollector translates Metric values into Prometheus metrics on a private registry.
type PrometheusCollector struct {
	registry        *prometheus.Registry
	mu              sync.Mutex
	counters        map[string]*prometheus.CounterVec
	counterLabels   map[string][]string
	histograms      map[string]*prometheus.HistogramVec
	histogramLabels map[string][]string
}

// NewPrometheusCollector builds a collector backed by a dedicated registry.
// Go runtime and process collectors are registered alongside the service metrics.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusCollector{
		registry:        reg,
		counters:        make(map[string]*prometheus.CounterVec),
		counterLabels:   make(map[string][]string),
		histograms:      make(map[string]*prometheus.HistogramVec),
		histogramLabels: make(map[string][]string),
	}
}

// Collect implements MetricsCollector.
func (c *PrometheusCollector) Collect(metric Metric) {
	if metric.Name == "" {
		return
	}

	switch metric.Type {
	case MetricCounter:
		c.collectCounter(metric)
	case MetricHistogram:
		c.collectHistogram(metric)
	}
}

// Registry returns the underlying registry.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler exposes the registry in the Prometheus text format.
func (c *PrometheusCollector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *PrometheusCollector) collectCounter(metric Metric) {
	value := metric.Value
	if value < 0 {
		value = 0
	}
	labels := cloneLabels(metric.Labels)
	labelNames := sortedKeys(labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	if vec, ok := c.counters[metric.Name]; ok {
		if !slices.Equal(c.counterLabels[metric.Name], labelNames) {
			return
		}
		vec.With(labels).Add(value)
		return
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: prometheusNamespace,
		Name:      metric.Name,
		Help:      helpText(metric),
	}, labelNames)
	if err := c.registry.Register(vec); err != nil {
		return
	}
	c.counters[metric.Name] = vec
	c.counterLabels[metric.Name] = labelNames
	vec.With(labels).Add(value)
}

func (c *PrometheusCollector) collectHistogram(metric Metric) {
	labels := cloneLabels(metric.Labels)
	labelNames := sortedKeys(labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	if vec, ok := c.histograms[metric.Name]; ok {
		if !slices.Equal(c.histogramLabels[metric.Name], labelNames) {
			return
		}
		vec.With(labels).Observe(metric.Value)
		return
	}

	opts := prometheus.HistogramOpts{
		Namespace: prometheusNamespace,
		Name:      metric.Name,
		Help:      helpText(metric),
	}
	if metric.Unit != "" {
		opts.ConstLabels = map[string]string{"unit": metric.Unit}
	}
	vec := prometheus.NewHistogramVec(opts, labelNames)
	if err := c.registry.Register(vec); err != nil {
		return
	}
	c.histograms[metric.Name] = vec
	c.histogramLabels[metric.Name] = labelNames
	vec.With(labels).Observe(metric.Value)
}

func helpText(metric Metric) string {
	if strings.TrimSpace(metric.Description) != "" {
		return metric.Description
	}
	if metric.Unit != "" {
		return metric.Name + " (" + metric.Unit + ")"
	}
	return metric.Name
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneLabels(labels map[string]string) prometheus.Labels {
	if len(labels) == 0 {
		return nil
	}
	cloned := make(prometheus.Labels, len(labels))
	for k, v := range labels {
		cloned[k] = v
	}
	return cloned
}

var _ MetricsCollector = (*PrometheusCollector)(nil)
