package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace          = "reqsched"
	promSchedulerSubsystem = "scheduler"
)

var version string

// Prometheus implements the prometheus metrics backend. Keys are exposed as
// the value of the key label.
type Prometheus struct {
	counterM   *prometheus.CounterVec
	gaugeM     *prometheus.GaugeVec
	histogramM *prometheus.HistogramVec

	opts     Options
	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metric backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	buckets := opts.HistogramBuckets
	if len(buckets) == 0 {
		buckets = DefaultCycleBuckets
	}

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promSchedulerSubsystem,
		Name:      "total",
		Help:      "Total number of scheduler events.",
	}, []string{"key", "version"})
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: promSchedulerSubsystem,
		Name:      "gauges",
		Help:      "Gauges of the scheduler state.",
	}, []string{"key", "version"})
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promSchedulerSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of scheduler operations.",
		Buckets:   buckets,
	}, []string{"key", "version"})

	p := &Prometheus{
		counterM:   counter,
		gaugeM:     gauge,
		histogramM: histogram,
		registry:   opts.PrometheusRegistry,
		opts:       opts,
	}

	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
	}

	p.registerMetrics()
	return p
}

// sinceS returns the seconds passed since the start time until now.
func (p *Prometheus) sinceS(start time.Time) float64 {
	return time.Since(start).Seconds()
}

func (p *Prometheus) registerMetrics() {
	p.registry.MustRegister(p.counterM)
	p.registry.MustRegister(p.gaugeM)
	p.registry.MustRegister(p.histogramM)

	// Register prometheus runtime collectors if required.
	if p.opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}
}

func (p *Prometheus) CreateHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) getHandler() http.Handler {
	if p.handler != nil {
		return p.handler
	}

	p.handler = p.CreateHandler()
	return p.handler
}

// RegisterHandler satisfies Metrics interface.
func (p *Prometheus) RegisterHandler(path string, mux *http.ServeMux) {
	promHandler := p.getHandler()
	mux.Handle(path, promHandler)
}

// MeasureSince satisfies Metrics interface.
func (p *Prometheus) MeasureSince(key string, start time.Time) {
	t := p.sinceS(start)
	p.histogramM.WithLabelValues(key, version).Observe(t)
}

// IncCounter satisfies Metrics interface.
func (p *Prometheus) IncCounter(key string) {
	p.counterM.WithLabelValues(key, version).Inc()
}

// IncCounterBy satisfies Metrics interface.
func (p *Prometheus) IncCounterBy(key string, value int64) {
	f := float64(value)
	p.counterM.WithLabelValues(key, version).Add(f)
}

// UpdateGauge satisfies Metrics interface.
func (p *Prometheus) UpdateGauge(key string, v float64) {
	p.gaugeM.WithLabelValues(key, version).Set(v)
}

func (p *Prometheus) Close() {}
