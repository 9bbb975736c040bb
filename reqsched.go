package reqsched

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/framekeeper/reqsched/circuit"
	"github.com/framekeeper/reqsched/cycle"
	"github.com/framekeeper/reqsched/logging"
	"github.com/framekeeper/reqsched/metrics"
	"github.com/framekeeper/reqsched/request"
	"github.com/framekeeper/reqsched/scheduler"
	"github.com/framekeeper/reqsched/tracing"
	"github.com/framekeeper/reqsched/transport"
)

const (
	DefaultMaxAttempts = 100

	metricsPath           = "/metrics"
	metricsReadTimeout    = 5 * time.Second
	serverShutdownTimeout = 5 * time.Second
)

// Options to start reqsched.
type Options struct {

	// TargetsFile is a YAML file listing the targets to fetch.
	TargetsFile string

	// Targets are fetched in addition to the ones in TargetsFile.
	Targets []Target

	// MaxRequests limits the number of concurrently running fetches.
	// Defaults to scheduler.DefaultMaximumRequests.
	MaxRequests int

	// DisableThrottle fetches every target immediately.
	DisableThrottle bool

	// DebugShowStatistics logs the number of submitted requests per cycle.
	DebugShowStatistics bool

	// CycleInterval is the time between two scheduling cycles. Defaults
	// to cycle.DefaultInterval.
	CycleInterval time.Duration

	// MaxAttempts limits how many times a target is submitted when it is
	// not admitted or dropped. Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// RequestTimeout limits the duration of a single fetch.
	RequestTimeout time.Duration

	// MaxIdleConnsPerHost is passed to the HTTP transport.
	MaxIdleConnsPerHost int

	// BreakerFailures is the number of consecutive failures opening the
	// circuit breaker of a host. Zero disables the breakers.
	BreakerFailures int

	// BreakerTimeout is the time an open breaker waits before letting
	// trial requests through.
	BreakerTimeout time.Duration

	// BreakerHalfOpenRequests is the number of trial requests of a
	// half-open breaker.
	BreakerHalfOpenRequests int

	// RequestsPerSecond limits the rate of starting fetches. Zero means
	// no limit.
	RequestsPerSecond float64

	// RequestBurst is the number of fetches that may start at once under
	// the rate limit.
	RequestBurst int

	// Breakers override the breaker settings of individual hosts.
	Breakers []circuit.BreakerSettings

	// Network address of the metrics listener. Empty disables it.
	MetricsListener string

	// Prefix for the metrics keys.
	MetricsPrefix string

	// Selects the metrics formats: codahale, prometheus or both.
	MetricsFlavours []string

	// Enables Go runtime and process metrics.
	EnableRuntimeMetrics bool

	// Enables garbage collector metrics.
	EnableDebugGcMetrics bool

	// Use exponentially decaying samples in the CodaHale timers.
	MetricsUseExpDecaySample bool

	// Histogram buckets of the prometheus timers.
	HistogramMetricBuckets []float64

	// Tracer for the fetches. When not set, Run creates one from the
	// OpenTracing options, and Fetch uses the opentracing no-op tracer.
	Tracer opentracing.Tracer

	// OpenTracing selects and configures the tracer, e.g. "jaeger
	// sampler-type=const". See the tracing package.
	OpenTracing []string

	// PluginDir is the directory of the tracer plugins.
	PluginDir string

	// Output file for the application log. Default value: /dev/stderr.
	//
	// When /dev/stderr or /dev/stdout is passed in, it will be resolved
	// to os.Stderr or os.Stdout.
	//
	// Warning: passing an arbitrary file will try to open it append
	// on start and use it, or fail on start, but the current
	// implementation doesn't support any more proper handling
	// of temporary failures or log-rolling.
	ApplicationLogOutput string

	// Application log prefix. Default value: "[APP]".
	ApplicationLogPrefix string

	// Application log level. Default value: INFO.
	ApplicationLogLevel log.Level

	// Enables logs in JSON format.
	ApplicationLogJSONEnabled bool

	// Output file for the request log. Default value: /dev/stderr.
	RequestLogOutput string

	// Disables the request log.
	RequestLogDisabled bool

	// Enables the request log in JSON format.
	RequestLogJSONEnabled bool
}

// Result is the outcome of fetching a target.
type Result struct {
	Target   Target
	Response *transport.Response
	State    request.State
	Attempts int
	Err      error
}

func getLogOutput(name string) (io.Writer, error) {
	if name == "" || name == "/dev/stderr" {
		return os.Stderr, nil
	}

	if name == "/dev/stdout" {
		return os.Stdout, nil
	}

	return os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
}

func initLog(o Options) error {
	var (
		logOutput        io.Writer
		requestLogOutput io.Writer
		err              error
	)

	if logOutput, err = getLogOutput(o.ApplicationLogOutput); err != nil {
		return err
	}

	if !o.RequestLogDisabled {
		if requestLogOutput, err = getLogOutput(o.RequestLogOutput); err != nil {
			return err
		}
	}

	logging.Init(logging.Options{
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogOutput:      logOutput,
		ApplicationLogLevel:       o.ApplicationLogLevel,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
		RequestLogOutput:          requestLogOutput,
		RequestLogDisabled:        o.RequestLogDisabled,
		RequestLogJSONEnabled:     o.RequestLogJSONEnabled,
	})

	return nil
}

func metricsKind(flavours []string) metrics.Kind {
	var kind metrics.Kind
	for _, f := range flavours {
		kind |= metrics.ParseMetricsKind(f)
	}

	return kind
}

func (o Options) metricsOptions() metrics.Options {
	return metrics.Options{
		Format:               metricsKind(o.MetricsFlavours),
		Prefix:               o.MetricsPrefix,
		EnableDebugGcMetrics: o.EnableDebugGcMetrics,
		EnableRuntimeMetrics: o.EnableRuntimeMetrics,
		UseExpDecaySample:    o.MetricsUseExpDecaySample,
		HistogramBuckets:     o.HistogramMetricBuckets,
	}
}

func (o Options) targets() ([]Target, error) {
	targets := o.Targets
	if o.TargetsFile != "" {
		t, err := LoadTargets(o.TargetsFile)
		if err != nil {
			return nil, err
		}

		targets = append(t, targets...)
	}

	return targets, nil
}

// Run reqsched: fetches every target, and logs a summary. It returns an
// error when any of the targets could not be fetched. A SIGINT or SIGTERM
// cancels the pending fetches.
func Run(o Options) error {
	if err := initLog(o); err != nil {
		return err
	}

	if o.Tracer == nil && len(o.OpenTracing) > 0 {
		tracer, closer, err := tracing.New(o.PluginDir, o.OpenTracing, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer closer.Close()
		o.Tracer = tracer
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := Fetch(ctx, o)
	if err != nil {
		return err
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.Errorf("%s: %s after %d attempt(s): %v", r.Target.URL, r.State, r.Attempts, r.Err)
			continue
		}

		log.Infof("%s: %s after %d attempt(s), %d bytes", r.Target.URL, r.State, r.Attempts, len(r.Response.Body))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(results))
	}

	return nil
}

// Fetch fetches every target through the scheduler, and returns the
// results in the order of the targets. When ctx is done, the pending
// fetches are cancelled.
func Fetch(ctx context.Context, o Options) ([]Result, error) {
	targets, err := o.targets()
	if err != nil {
		return nil, err
	}

	mtr := metrics.NewDefault(o.metricsOptions())
	defer mtr.Close()

	client := transport.New(transport.Options{
		Timeout:                 o.RequestTimeout,
		MaxIdleConnsPerHost:     o.MaxIdleConnsPerHost,
		BreakerFailures:         o.BreakerFailures,
		BreakerTimeout:          o.BreakerTimeout,
		BreakerHalfOpenRequests: o.BreakerHalfOpenRequests,
		RequestsPerSecond:       o.RequestsPerSecond,
		RequestBurst:            o.RequestBurst,
		Breakers:                o.Breakers,
		Tracer:                  o.Tracer,
	})
	defer client.Close()

	starts := new(sync.Map)
	sched := scheduler.New(scheduler.Options{
		MaximumRequests:     o.MaxRequests,
		DisableThrottle:     o.DisableThrottle,
		DebugShowStatistics: o.DebugShowStatistics,
		Metrics:             mtr,
		OnComplete:          logCompleted(starts),
	})

	interval := o.CycleInterval
	if interval <= 0 {
		interval = cycle.DefaultInterval
	}

	driver := cycle.New(cycle.Options{
		Interval:   interval,
		Reconciler: sched,
		Metrics:    mtr,
	})
	defer driver.Close()

	maxAttempts := o.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	p := &producer{
		scheduler:   sched,
		client:      client,
		starts:      starts,
		interval:    interval,
		maxAttempts: maxAttempts,
	}

	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	g, gctx := errgroup.WithContext(fetchCtx)
	if o.MetricsListener != "" {
		l, err := net.Listen("tcp", o.MetricsListener)
		if err != nil {
			return nil, fmt.Errorf("failed to listen for metrics: %w", err)
		}

		g.Go(func() error { return serveMetrics(gctx, l, mtr) })
	}

	results := make([]Result, len(targets))
	var fetches sync.WaitGroup
	for i, t := range targets {
		fetches.Add(1)
		g.Go(func() error {
			defer fetches.Done()
			results[i] = p.fetch(gctx, t)
			return nil
		})
	}

	g.Go(func() error {
		fetches.Wait()
		cancelFetch()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := sched.Statistics()
	log.Infof(
		"Requests attempted: %d, bypassed: %d, started: %d, not admitted: %d, dropped: %d, succeeded: %d, failed: %d",
		st.Attempted, st.Bypassed, st.Started, st.NotAdmitted, st.Dropped, st.Succeeded, st.Failed,
	)

	return results, nil
}

func serveMetrics(ctx context.Context, l net.Listener, mtr metrics.Metrics) error {
	mux := http.NewServeMux()
	mtr.RegisterHandler(metricsPath, mux)
	mtr.RegisterHandler(metricsPath+"/", mux)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shut down the metrics listener: %v", err)
		}
	}()

	log.Infof("Metrics listener on %s%s", l.Addr(), metricsPath)
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func logCompleted(starts *sync.Map) func(*request.Request, error) {
	return func(r *request.Request, err error) {
		entry := &logging.RequestEntry{
			ID:       r.ID,
			Target:   r.Target,
			Category: r.Category.String(),
			State:    r.State().String(),
			Err:      err,
		}

		if start, ok := starts.LoadAndDelete(r.ID); ok {
			entry.StartTime = start.(time.Time)
			entry.Duration = time.Since(entry.StartTime)
		}

		if op := r.Operation(); op != nil {
			if v, _ := op.Result(); v != nil {
				if rsp, ok := v.(*transport.Response); ok {
					entry.ResponseSize = int64(len(rsp.Body))
				}
			}
		}

		logging.LogRequest(entry)
	}
}
