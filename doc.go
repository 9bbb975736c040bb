/*
Package reqsched provides a bounded-concurrency request scheduler, and a
program fetching prioritized HTTP targets through it.

# Scheduler

Producers create requests with the request package, and submit them to a
scheduler.Scheduler. Requests that are throttled wait in a bounded
priority queue, and a limited number of them, by default 50, runs at the
same time. Once per cycle, the scheduler releases the slots of the
concluded and cancelled requests, and starts the highest ranked queued
requests in the free slots. A request ranks higher when its priority score
is higher, or, with equal scores, when its distance is smaller.

When the queue is full, a submitted request either replaces the lowest
ranked queued request, which is dropped, or it is not admitted at all.
Requests that were not admitted or were dropped are not retried by the
scheduler. The producer may submit a new request on a later cycle.

Requests that are not throttled, and requests whose target is local data,
like data: and blob: URIs, are started immediately on submission.

# Cycles

The cycle package calls the scheduler periodically, by default every 16
milliseconds. Programs that have their own frame loop may call Reconcile
on the scheduler directly.

# Transport

The transport package provides request functions fetching URLs over HTTP.
The fetches can be aborted, their start rate can be limited, and failing
hosts are protected by the circuit breakers of the circuit package. Every
fetch is traced with the tracer selected through the tracing package:

	reqsched -targets-file targets.yaml -opentracing "jaeger sampler-type=const"

# Running

The Run function of this package fetches the targets listed in a YAML
file, or passed in the options, and logs a summary. The executable in
cmd/reqsched wraps it with the command line options defined by the config
package:

	reqsched -targets-file targets.yaml -max-requests 8

The targets file is a list of targets:

  - url: https://tiles.example.org/0/0/0.png
    priority: 2
    distance: 10
    category: imagery
  - url: https://tiles.example.org/terrain/0/0/0.terrain
    throttle: false

Targets that are not admitted, or that are dropped, are submitted again on
the following cycles, up to the maximum number of attempts.

# Metrics

The scheduler reports the number of active and queued requests, and the
counters of its decisions, through the metrics package, in the CodaHale or
the Prometheus format. The metrics are exposed on the /metrics endpoint of
the metrics listener, by default :9911.

# Logging

The application log uses logrus. The request log prints one entry for each
concluded request. Both can be redirected to files, or printed in JSON
format.
*/
package reqsched
