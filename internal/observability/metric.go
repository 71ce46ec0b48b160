package observability

// MetricType selects how a Metric is aggregated.
type MetricType string

const (
	MetricCounter   MetricType = "counter"
	MetricHistogram MetricType = "histogram"
)

// Metric is a single measurement emitted by a component.
type Metric struct {
	Name        string
	Type        MetricType
	Value       float64
	Labels      map[string]string
	Description string
	Unit        string
}

// MetricsCollector receives measurements. Implementations must be safe for concurrent use.
type MetricsCollector interface {
	Collect(Metric)
}

// NopCollector drops every measurement.
type NopCollector struct{}

func (NopCollector) Collect(Metric) {}

var _ MetricsCollector = NopCollector{}
