package tracing

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ot "github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics/prometheus"
)

const defaultServiceName = "reqsched"

func newJaeger(opts []string) (ot.Tracer, io.Closer, error) {
	conf, err := parseJaegerOptions(opts)
	if err != nil {
		return nil, nil, err
	}

	return conf.NewTracer(config.Metrics(prometheus.New()))
}

func parseJaegerOptions(opts []string) (*config.Configuration, error) {
	conf := &config.Configuration{
		ServiceName: defaultServiceName,
		Sampler:     &config.SamplerConfig{},
		Reporter:    &config.ReporterConfig{},
	}

	for _, o := range opts {
		k, v, hasValue := strings.Cut(o, "=")
		switch k {
		case "service-name":
			if hasValue {
				conf.ServiceName = v
			}

		case "use-rpc-metrics":
			conf.RPCMetrics = true

		case "sampler-type":
			if !hasValue {
				return nil, missingArg(k)
			}

			samplerType, param, hasParam := strings.Cut(v, ":")
			conf.Sampler.Type = samplerType
			switch samplerType {
			case "const":
				conf.Sampler.Param = 1.0
			case "probabilistic", "rateLimiting", "remote":
				if !hasParam {
					return nil, missingArg(samplerType)
				}

				p, err := strconv.ParseFloat(param, 64)
				if err != nil {
					return nil, invalidArg(samplerType, err)
				}

				conf.Sampler.Param = p
			default:
				return nil, invalidArg(k, errors.New("invalid sampler type"))
			}

		case "sampler-url":
			if !hasValue {
				return nil, missingArg(k)
			}

			conf.Sampler.SamplingServerURL = v

		case "reporter-queue":
			if !hasValue {
				return nil, missingArg(k)
			}

			q, err := strconv.Atoi(v)
			if err != nil {
				return nil, invalidArg(k, err)
			}

			conf.Reporter.QueueSize = q

		case "reporter-interval":
			if !hasValue {
				return nil, missingArg(k)
			}

			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, invalidArg(k, err)
			}

			conf.Reporter.BufferFlushInterval = d

		case "local-agent":
			if !hasValue {
				return nil, missingArg(k)
			}

			conf.Reporter.LocalAgentHostPort = v

		case "tag":
			if hasValue {
				tk, tv, ok := strings.Cut(v, "=")
				if !ok {
					return nil, fmt.Errorf("missing value for tag %s", tk)
				}

				conf.Tags = append(conf.Tags, ot.Tag{Key: tk, Value: tv})
			}
		}
	}

	return conf, nil
}
