package config

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/framekeeper/reqsched"
	"github.com/framekeeper/reqsched/circuit"
	"github.com/framekeeper/reqsched/cycle"
	"github.com/framekeeper/reqsched/metrics"
	"github.com/framekeeper/reqsched/scheduler"
	"github.com/framekeeper/reqsched/transport"
)

type Config struct {
	ConfigFile   string
	Flags        *flag.FlagSet
	PrintVersion bool `yaml:"version"`

	// targets:
	TargetsFile string            `yaml:"targets-file"`
	TargetURLs  *urlFlag          `yaml:"target"`
	Targets     []reqsched.Target `yaml:"-"`
	TargetsYAML *targetsFlag      `yaml:"targets"`
	MaxAttempts int               `yaml:"max-attempts"`

	// scheduling:
	MaxRequests         int           `yaml:"max-requests"`
	DisableThrottle     bool          `yaml:"disable-throttle"`
	DebugShowStatistics bool          `yaml:"debug-show-statistics"`
	CycleInterval       time.Duration `yaml:"cycle-interval"`

	// transport:
	RequestTimeout          time.Duration `yaml:"request-timeout"`
	MaxIdleConnsPerHost     int           `yaml:"max-idle-connection-per-host"`
	RequestsPerSecond       float64       `yaml:"requests-per-second"`
	RequestBurst            int           `yaml:"request-burst"`
	BreakerFailures         int           `yaml:"breaker-failures"`
	BreakerTimeout          time.Duration `yaml:"breaker-timeout"`
	BreakerHalfOpenRequests int           `yaml:"breaker-half-open-requests"`
	Breakers                breakerFlags  `yaml:"breakers"`

	// logging, metrics:
	MetricsListener              string    `yaml:"metrics-listener"`
	MetricsPrefix                string    `yaml:"metrics-prefix"`
	MetricsFlavour               *listFlag `yaml:"metrics-flavour"`
	EnableRuntimeMetrics         bool      `yaml:"runtime-metrics"`
	EnableDebugGcMetrics         bool      `yaml:"debug-gc-metrics"`
	MetricsUseExpDecaySample     bool      `yaml:"metrics-exp-decay-sample"`
	OpenTracing                  string    `yaml:"opentracing"`
	PluginDir                    string    `yaml:"plugindir"`
	HistogramMetricBucketsString string    `yaml:"histogram-metric-buckets"`
	HistogramMetricBuckets       []float64 `yaml:"-"`
	ApplicationLog               string    `yaml:"application-log"`
	ApplicationLogLevel          log.Level `yaml:"-"`
	ApplicationLogLevelString    string    `yaml:"application-log-level"`
	ApplicationLogPrefix         string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled    bool      `yaml:"application-log-json-enabled"`
	RequestLog                   string    `yaml:"request-log"`
	RequestLogDisabled           bool      `yaml:"request-log-disabled"`
	RequestLogJSONEnabled        bool      `yaml:"request-log-json-enabled"`
}

const (
	defaultMetricsListener      = ":9911"
	defaultMetricsPrefix        = "reqsched."
	defaultApplicationLogPrefix = "[APP]"
	defaultApplicationLogLevel  = "INFO"
	defaultBreakerFailures      = 5
	defaultOpenTracing          = "noop"
)

func NewConfig() *Config {
	cfg := new(Config)
	cfg.MetricsFlavour = commaListFlag("codahale", "prometheus")
	cfg.TargetURLs = &urlFlag{}
	cfg.TargetsYAML = newTargetsFlag(&cfg.Targets)

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")
	flag.BoolVar(&cfg.PrintVersion, "version", false, "print reqsched version")

	// targets:
	flag.StringVar(&cfg.TargetsFile, "targets-file", "", "yaml file listing the targets to fetch, with their url, priority, distance, category and throttle fields")
	flag.Var(cfg.TargetURLs, "target", "url of a target to fetch with the default priority, can be repeated")
	flag.Var(cfg.TargetsYAML, "targets", "yaml list of targets to fetch, in the format of the targets file")
	flag.IntVar(&cfg.MaxAttempts, "max-attempts", reqsched.DefaultMaxAttempts, "maximum number of times a target is submitted when it was not admitted or was dropped")

	// scheduling:
	flag.IntVar(&cfg.MaxRequests, "max-requests", scheduler.DefaultMaximumRequests, "maximum number of concurrently running throttled requests, and of queued requests")
	flag.BoolVar(&cfg.DisableThrottle, "disable-throttle", false, "start every request immediately, without queueing")
	flag.BoolVar(&cfg.DebugShowStatistics, "debug-show-statistics", false, "log the number of requests attempted during each scheduling cycle")
	flag.DurationVar(&cfg.CycleInterval, "cycle-interval", cycle.DefaultInterval, "time between two scheduling cycles")

	// transport:
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", transport.DefaultTimeout, "timeout of a single fetch, including reading the response")
	flag.IntVar(&cfg.MaxIdleConnsPerHost, "max-idle-connection-per-host", 0, "maximum idle connections per host, 0 means the default of the HTTP transport")
	flag.Var(&cfg.Breakers, "breaker", breakerUsage)
	flag.Float64Var(&cfg.RequestsPerSecond, "requests-per-second", 0, "limits the rate of starting fetches across all hosts, 0 means no limit")
	flag.IntVar(&cfg.RequestBurst, "request-burst", 1, "number of fetches that may start at once under the rate limit")
	flag.IntVar(&cfg.BreakerFailures, "breaker-failures", defaultBreakerFailures, "consecutive failures opening the circuit breaker of a host, 0 disables the breakers")
	flag.DurationVar(&cfg.BreakerTimeout, "breaker-timeout", transport.DefaultBreakerTimeout, "time an open circuit breaker waits before letting trial requests through")
	flag.IntVar(&cfg.BreakerHalfOpenRequests, "breaker-half-open-requests", transport.DefaultBreakerHalfOpenRequests, "number of trial requests allowed by a half-open circuit breaker")

	// logging, metrics:
	flag.StringVar(&cfg.MetricsListener, "metrics-listener", defaultMetricsListener, "network address used for exposing the /metrics endpoint, empty disables it")
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", defaultMetricsPrefix, "allows setting a custom path prefix for metrics export")
	flag.Var(cfg.MetricsFlavour, "metrics-flavour", "Metrics flavour is used to change the exposed metrics format. Supported metric formats: 'codahale' and 'prometheus', you can select both of them by using one option with ',' separated values")
	flag.BoolVar(&cfg.EnableRuntimeMetrics, "runtime-metrics", false, "enables reporting the Go runtime statistics")
	flag.BoolVar(&cfg.EnableDebugGcMetrics, "debug-gc-metrics", false, "enables reporting the Go garbage collector statistics")
	flag.BoolVar(&cfg.MetricsUseExpDecaySample, "metrics-exp-decay-sample", false, "use exponentially decaying sample in the codahale timers")
	flag.StringVar(&cfg.OpenTracing, "opentracing", defaultOpenTracing, "list of arguments for opentracing (space separated), first argument is the tracer implementation: noop, basic, jaeger or the name of a plugin")
	flag.StringVar(&cfg.PluginDir, "plugindir", "", "directory of the tracer plugins")
	flag.StringVar(&cfg.HistogramMetricBucketsString, "histogram-metric-buckets", "", "use custom buckets for prometheus histograms, must be a comma-separated list of numbers")
	flag.StringVar(&cfg.ApplicationLog, "application-log", "", "output file for the application log. When not set, /dev/stderr is used")
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", defaultApplicationLogLevel, "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", defaultApplicationLogPrefix, "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.StringVar(&cfg.RequestLog, "request-log", "", "output file for the request log. When not set, /dev/stderr is used")
	flag.BoolVar(&cfg.RequestLogDisabled, "request-log-disabled", false, "when this flag is set, no request log is created")
	flag.BoolVar(&cfg.RequestLogJSONEnabled, "request-log-json-enabled", false, "when this flag is set, the request log is printed in JSON format")

	cfg.Flags = flag
	return cfg
}

func validate(c *Config) error {
	_, err := log.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return err
	}

	_, err = c.parseHistogramBuckets(c.HistogramMetricBucketsString, metrics.DefaultCycleBuckets)
	if err != nil {
		return err
	}

	if c.MaxRequests < 0 {
		return fmt.Errorf("invalid max-requests: %d", c.MaxRequests)
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid requests-per-second: %v", c.RequestsPerSecond)
	}

	if c.BreakerFailures < 0 {
		return fmt.Errorf("invalid breaker-failures: %d", c.BreakerFailures)
	}

	if !c.PrintVersion && c.TargetsFile == "" && len(*c.TargetURLs) == 0 && len(c.Targets) == 0 {
		return fmt.Errorf("no targets: use -targets-file, -targets or -target")
	}

	return nil
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		// repeated flags are appended to the values of the config file
		*c.TargetURLs = nil
		c.Breakers = nil
		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		// flags override the values of the config file
		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}
	}

	if err := validate(c); err != nil {
		return err
	}

	c.ApplicationLogLevel, _ = log.ParseLevel(c.ApplicationLogLevelString)
	c.HistogramMetricBuckets, _ = c.parseHistogramBuckets(c.HistogramMetricBucketsString, metrics.DefaultCycleBuckets)
	return nil
}

func (c *Config) openTracing() []string {
	if c.OpenTracing == "" {
		return nil
	}

	return strings.Split(c.OpenTracing, " ")
}

func (c *Config) targets() []reqsched.Target {
	targets := append([]reqsched.Target(nil), c.Targets...)
	for _, u := range *c.TargetURLs {
		targets = append(targets, reqsched.Target{URL: u})
	}

	return targets
}

func (c *Config) ToOptions() reqsched.Options {
	return reqsched.Options{
		// targets:
		TargetsFile: c.TargetsFile,
		Targets:     c.targets(),
		MaxAttempts: c.MaxAttempts,

		// scheduling:
		MaxRequests:         c.MaxRequests,
		DisableThrottle:     c.DisableThrottle,
		DebugShowStatistics: c.DebugShowStatistics,
		CycleInterval:       c.CycleInterval,

		// transport:
		RequestTimeout:          c.RequestTimeout,
		MaxIdleConnsPerHost:     c.MaxIdleConnsPerHost,
		RequestsPerSecond:       c.RequestsPerSecond,
		RequestBurst:            c.RequestBurst,
		BreakerFailures:         c.BreakerFailures,
		BreakerTimeout:          c.BreakerTimeout,
		BreakerHalfOpenRequests: c.BreakerHalfOpenRequests,
		Breakers:                []circuit.BreakerSettings(c.Breakers),

		// logging, metrics:
		MetricsListener:           c.MetricsListener,
		MetricsPrefix:             c.MetricsPrefix,
		MetricsFlavours:           c.MetricsFlavour.values,
		EnableRuntimeMetrics:      c.EnableRuntimeMetrics,
		EnableDebugGcMetrics:      c.EnableDebugGcMetrics,
		MetricsUseExpDecaySample:  c.MetricsUseExpDecaySample,
		HistogramMetricBuckets:    c.HistogramMetricBuckets,
		OpenTracing:               c.openTracing(),
		PluginDir:                 c.PluginDir,
		ApplicationLogOutput:      c.ApplicationLog,
		ApplicationLogLevel:       c.ApplicationLogLevel,
		ApplicationLogPrefix:      c.ApplicationLogPrefix,
		ApplicationLogJSONEnabled: c.ApplicationLogJSONEnabled,
		RequestLogOutput:          c.RequestLog,
		RequestLogDisabled:        c.RequestLogDisabled,
		RequestLogJSONEnabled:     c.RequestLogJSONEnabled,
	}
}

func (c *Config) parseHistogramBuckets(bucketString string, defaultBuckets []float64) ([]float64, error) {
	if bucketString == "" {
		return defaultBuckets, nil
	}

	var result []float64
	thresholds := strings.Split(bucketString, ",")
	for _, v := range thresholds {
		bucket, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse histogram-metric-buckets: %w", err)
		}
		result = append(result, bucket)
	}
	sort.Float64s(result)
	return result, nil
}
