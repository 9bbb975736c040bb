// Package transport fetches request targets over HTTP.
//
// The client returns request.Func values that can be submitted to the
// scheduler. Every fetch runs in its own goroutine and can be aborted,
// which cancels the underlying HTTP request. Hosts that fail repeatedly are
// protected by a circuit breaker, and every fetch is traced with an
// opentracing span.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"golang.org/x/time/rate"

	"github.com/framekeeper/reqsched/circuit"
	"github.com/framekeeper/reqsched/logging"
	"github.com/framekeeper/reqsched/request"
)

const (
	DefaultTimeout                 = 30 * time.Second
	DefaultBreakerTimeout          = time.Minute
	DefaultBreakerHalfOpenRequests = 1

	spanName = "fetch"
)

// StatusError is returned when the response of a fetch has a non-2xx
// status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

// Response is the result of a successful fetch.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Options are used to create a client. The zero value results in a client
// without circuit breakers, using the DefaultTimeout.
type Options struct {

	// Timeout limits the duration of a single fetch, including reading
	// the response body.
	Timeout time.Duration

	// MaxIdleConns see https://golang.org/pkg/net/http/#Transport.MaxIdleConns
	MaxIdleConns int

	// MaxIdleConnsPerHost see https://golang.org/pkg/net/http/#Transport.MaxIdleConnsPerHost
	MaxIdleConnsPerHost int

	// BreakerFailures is the number of consecutive failures that open the
	// circuit breaker of a host. Zero disables the breakers.
	BreakerFailures int

	// BreakerTimeout is the time an open breaker waits before letting
	// trial requests through.
	BreakerTimeout time.Duration

	// BreakerHalfOpenRequests is the number of trial requests allowed
	// while the breaker is half-open.
	BreakerHalfOpenRequests int

	// RequestsPerSecond limits the rate of starting fetches across all
	// hosts. Zero means no limit.
	RequestsPerSecond float64

	// RequestBurst is the number of fetches that can start at once when
	// the rate is limited. Defaults to 1.
	RequestBurst int

	// Breakers override the breaker settings of individual hosts. An
	// entry without a host overrides the defaults above.
	Breakers []circuit.BreakerSettings

	// Tracer can be nil to get the
	// https://godoc.org/github.com/opentracing/opentracing-go#NoopTracer.
	Tracer opentracing.Tracer

	// Log defaults to logging.New().
	Log logging.Logger
}

// Client fetches targets over HTTP.
type Client struct {
	options  Options
	client   *http.Client
	breakers *circuit.Registry
	limiter  *rate.Limiter
}

// New creates a client.
func New(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}

	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = DefaultBreakerTimeout
	}

	if o.BreakerHalfOpenRequests <= 0 {
		o.BreakerHalfOpenRequests = DefaultBreakerHalfOpenRequests
	}

	if o.Tracer == nil {
		o.Tracer = &opentracing.NoopTracer{}
	}

	if o.Log == nil {
		o.Log = logging.New()
	}

	var limiter *rate.Limiter
	if o.RequestsPerSecond > 0 {
		if o.RequestBurst <= 0 {
			o.RequestBurst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(o.RequestsPerSecond), o.RequestBurst)
	}

	return &Client{
		options: o,
		client: &http.Client{
			Timeout: o.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        o.MaxIdleConns,
				MaxIdleConnsPerHost: o.MaxIdleConnsPerHost,
				IdleConnTimeout:     o.Timeout,
			},
		},
		breakers: circuit.NewRegistry(o.Log, o.breakerSettings()...),
		limiter:  limiter,
	}
}

func (o Options) breakerSettings() []circuit.BreakerSettings {
	defaults := circuit.BreakerSettings{
		Timeout:          o.BreakerTimeout,
		HalfOpenRequests: o.BreakerHalfOpenRequests,
	}

	if o.BreakerFailures > 0 {
		defaults.Type = circuit.ConsecutiveFailures
		defaults.Failures = o.BreakerFailures
	}

	return append([]circuit.BreakerSettings{defaults}, o.Breakers...)
}

// Get returns a function that starts fetching the url when called. The
// returned operation supports request.Aborter, and results in a *Response.
func (c *Client) Get(url string) request.Func {
	return func() request.Operation {
		return request.Async(func(ctx context.Context) (interface{}, error) {
			return c.fetch(ctx, url)
		})
	}
}

// allow returns the function reporting the outcome of the fetch to the
// breaker of the host, or the error of an open breaker.
func (c *Client) allow(host string) (func(bool), error) {
	b := c.breakers.Get(circuit.BreakerSettings{Host: host})
	if b == nil {
		return func(bool) {}, nil
	}

	return b.Allow()
}

func (c *Client) fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	done, err := c.allow(req.URL.Host)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.URL.Host, err)
	}

	span := c.options.Tracer.StartSpan(spanName)
	defer span.Finish()
	ext.SpanKindRPCClient.Set(span)
	ext.HTTPMethod.Set(span, http.MethodGet)
	ext.HTTPUrl.Set(span, url)
	_ = c.options.Tracer.Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))

	rsp, body, err := c.do(req)
	if err != nil {
		// aborted fetches do not count against the host
		done(errors.Is(err, context.Canceled))
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
		return nil, err
	}

	ext.HTTPStatusCode.Set(span, uint16(rsp.StatusCode))
	done(rsp.StatusCode < http.StatusInternalServerError)

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		ext.Error.Set(span, true)
		return nil, &StatusError{URL: url, StatusCode: rsp.StatusCode}
	}

	return &Response{
		URL:        url,
		StatusCode: rsp.StatusCode,
		Header:     rsp.Header,
		Body:       body,
	}, nil
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	rsp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}

	defer rsp.Body.Close()
	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, nil, err
	}

	return rsp, body, nil
}

// Close releases the idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
