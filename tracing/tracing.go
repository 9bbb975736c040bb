// Package tracing creates the opentracing tracer of the fetches.
//
// The tracer is selected by the first of the options, the rest of them is
// passed to the tracer implementation:
//
//	noop
//	basic sample-modulo=10 max-logs-per-span=5
//	jaeger service-name=reqsched sampler-type=const local-agent=localhost:6831
//
// Any other name is loaded as a Go plugin from the plugin directory, e.g.
// lightstep loads <plugindir>/lightstep.so, which needs to export a Tracer
// symbol implementing the Tracer interface.
package tracing

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"plugin"

	ot "github.com/opentracing/opentracing-go"

	"github.com/framekeeper/reqsched/logging"
)

var (
	// ErrMissingArguments is returned when an empty list is passed to New()
	ErrMissingArguments = errors.New("no arguments passed")
)

// Tracer is required to be implemented by the tracer plugins.
type Tracer interface {
	InitTracer(opts []string) (ot.Tracer, error)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates the tracer selected by opts. The returned closer needs to be
// called when the tracer is not used anymore. log defaults to
// logging.New().
func New(pluginDir string, opts []string, log logging.Logger) (ot.Tracer, io.Closer, error) {
	if len(opts) == 0 {
		return nil, nil, ErrMissingArguments
	}

	if log == nil {
		log = logging.New()
	}

	impl, opts := opts[0], opts[1:]
	switch impl {
	case "noop":
		return &ot.NoopTracer{}, nopCloser{}, nil
	case "basic":
		t, err := newBasic(opts, log)
		return t, nopCloser{}, err
	case "jaeger":
		return newJaeger(opts)
	default:
		t, err := loadPlugin(pluginDir, impl, opts)
		return t, nopCloser{}, err
	}
}

func loadPlugin(pluginDir, impl string, opts []string) (ot.Tracer, error) {
	mod, err := plugin.Open(filepath.Join(pluginDir, impl+".so"))
	if err != nil {
		return nil, fmt.Errorf("open module %s: %w", impl, err)
	}

	sym, err := mod.Lookup("Tracer")
	if err != nil {
		return nil, fmt.Errorf("check module symbols %s: %w", impl, err)
	}

	pluggedTracer, ok := sym.(Tracer)
	if !ok {
		return nil, fmt.Errorf("module %s does not implement Tracer", impl)
	}

	tracer, err := pluggedTracer.InitTracer(opts)
	if err != nil {
		return nil, fmt.Errorf("module %s returned: %w", impl, err)
	}

	return tracer, nil
}

func missingArg(opt string) error {
	return fmt.Errorf("missing argument for %s option", opt)
}

func invalidArg(opt string, err error) error {
	return fmt.Errorf("invalid argument for %s option: %w", opt, err)
}
