/*
Package metrics implements collection of the scheduler metrics.

Two backends are available. The CodaHale backend uses the Go implementation
of the Coda Hale metrics library:

https://github.com/dropwizard/metrics

and the Prometheus backend uses the Prometheus Go client:

https://github.com/prometheus/client_golang

Both can be enabled at the same time with the All backend.

The collected metrics include the number of active and queued requests, the
configured capacity, counters of every request outcome (attempted, bypassed,
queued, not admitted, dropped, started, cancelled, succeeded, failed), and
the duration of each scheduling cycle.

To expose the metrics, register the handler of the backend on an HTTP mux
with RegisterHandler. The CodaHale handler serves all metrics as JSON on
the registered path, and a single metric or a group of metrics with a
common key prefix on sub-paths, e.g. /metrics/scheduler.requests.
*/
package metrics
