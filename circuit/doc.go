/*
Package circuit implements the circuit breakers protecting the target hosts.

Breakers are always assigned to target hosts, so that the outcome of fetches from one host never affects the
breaker of another host. A consecutive breaker opens when fetching from its host failed with a connection error
or a >=500 status code at least N times in a row. While open, fetches fail immediately with ErrOpen during the
configured timeout. After the timeout, the breaker goes half-open and lets M trial fetches through. If any of
them fails, it opens again, if all succeed, it closes.

The registry holds the breakers, merges the host settings with the defaults, and releases the breakers that
were idle for longer than their IdleTTL. Settings can be passed in the YAML configuration:

	breakers:
	- type: consecutive
	  failures: 5
	  timeout: 30s
	- host: tiles.example.org
	  failures: 20
	- host: localhost:9090
	  type: disabled
*/
package circuit
