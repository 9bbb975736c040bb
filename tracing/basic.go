package tracing

import (
	"strconv"
	"strings"

	basic "github.com/opentracing/basictracer-go"
	ot "github.com/opentracing/opentracing-go"

	"github.com/framekeeper/reqsched/logging"
)

// logRecorder prints the sampled spans to the application log at debug
// level.
type logRecorder struct {
	log logging.Logger
}

func (r logRecorder) RecordSpan(span basic.RawSpan) {
	r.log.Debugf(
		"span %s trace=%x span=%x parent=%x duration=%v tags=%v",
		span.Operation,
		span.Context.TraceID,
		span.Context.SpanID,
		span.ParentSpanID,
		span.Duration,
		span.Tags,
	)
}

func newBasic(opts []string, log logging.Logger) (ot.Tracer, error) {
	var (
		dropAllLogs    bool
		sampleModulo   uint64 = 1
		maxLogsPerSpan int
		err            error
	)

	for _, o := range opts {
		k, v, _ := strings.Cut(o, "=")
		switch k {
		case "drop-all-logs":
			dropAllLogs = true

		case "sample-modulo":
			if v == "" {
				return nil, missingArg(k)
			}

			sampleModulo, err = strconv.ParseUint(v, 10, 64)
			if err == nil && sampleModulo == 0 {
				err = strconv.ErrRange
			}

			if err != nil {
				return nil, invalidArg(k, err)
			}

		case "max-logs-per-span":
			if v == "" {
				return nil, missingArg(k)
			}

			maxLogsPerSpan, err = strconv.Atoi(v)
			if err != nil {
				return nil, invalidArg(k, err)
			}
		}
	}

	return basic.NewWithOptions(basic.Options{
		DropAllLogs:    dropAllLogs,
		ShouldSample:   func(traceID uint64) bool { return traceID%sampleModulo == 0 },
		MaxLogsPerSpan: maxLogsPerSpan,
		Recorder:       logRecorder{log: log},
	}), nil
}
