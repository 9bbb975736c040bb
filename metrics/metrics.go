package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind selects the metrics backend.
type Kind int

const (
	UnkownKind   Kind = 0
	CodaHaleKind Kind = 1 << iota
	PrometheusKind
	AllKind = CodaHaleKind | PrometheusKind
)

func (k Kind) String() string {
	switch k {
	case CodaHaleKind:
		return "codahale"
	case PrometheusKind:
		return "prometheus"
	case AllKind:
		return "all"
	default:
		return "unknown"
	}
}

// ParseMetricsKind parses a metrics flavour name. Unknown names result in
// UnkownKind.
func ParseMetricsKind(t string) Kind {
	switch strings.ToLower(t) {
	case "codahale":
		return CodaHaleKind
	case "prometheus":
		return PrometheusKind
	case "all":
		return AllKind
	default:
		return UnkownKind
	}
}

// Metrics is the generic interface that all the required backends should
// implement to be a metrics backend.
type Metrics interface {
	// MeasureSince records the time elapsed since start under key.
	MeasureSince(key string, start time.Time)

	// IncCounter increments the counter of key by one.
	IncCounter(key string)

	// IncCounterBy increments the counter of key by value.
	IncCounterBy(key string, value int64)

	// UpdateGauge sets the gauge of key to v.
	UpdateGauge(key string, v float64)

	// RegisterHandler exposes the collected metrics on path.
	RegisterHandler(path string, handler *http.ServeMux)

	// Close releases the backend.
	Close()
}

// Options for initializing metrics collection.
type Options struct {
	// Format selects the backends: codahale, prometheus, or both.
	Format Kind

	// Common prefix for the keys of the different collected metrics.
	// With the prometheus backend, it becomes the namespace, with the
	// trailing dot removed.
	Prefix string

	// If set, garbage collector metrics are collected in addition to the
	// scheduler metrics.
	EnableDebugGcMetrics bool

	// If set, Go runtime metrics are collected in addition to the
	// scheduler metrics.
	EnableRuntimeMetrics bool

	// Use exponentially decaying samples for the CodaHale timers, instead
	// of uniform samples.
	UseExpDecaySample bool

	// HistogramBuckets defines buckets into which the observations are
	// counted for the prometheus histograms. Defaults to
	// DefaultCycleBuckets.
	HistogramBuckets []float64

	// PrometheusRegistry is the prometheus registry used by the
	// prometheus backend. When not set, a new one is created.
	PrometheusRegistry *prometheus.Registry
}

// DefaultCycleBuckets are the histogram buckets used for timers: a cycle
// is expected to take well below a frame.
var DefaultCycleBuckets = []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}

var (
	// Void is a no-op backend.
	Void Metrics = NewVoid()

	// Default is the backend used when none is configured.
	Default = Void
)

// NewDefault creates the backend selected by o.Format. When no format is
// selected, the CodaHale backend is created.
func NewDefault(o Options) Metrics {
	switch o.Format {
	case AllKind:
		return NewAll(o)
	case PrometheusKind:
		return NewPrometheus(o)
	default:
		return NewCodaHale(o)
	}
}
