package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/framekeeper/reqsched/circuit"
)

const breakerUsage = `set global or host specific circuit breakers, e.g. -breaker type=consecutive,host=tiles.example.org,failures=10,timeout=30s
	possible breaker properties:
	type: consecutive/disabled (defaults to the global type)
	host: a host name that overrides the global for a host
	failures: the number of failures for consecutive breakers
	timeout: duration string or milliseconds while the breaker stays open
	half-open-requests: the number of requests in half-open state to succeed before getting closed again
	idle-ttl: duration string or milliseconds after the breaker is considered idle and reset
	(see also: https://pkg.go.dev/github.com/framekeeper/reqsched/circuit)`

type breakerFlags []circuit.BreakerSettings

var errInvalidBreakerConfig = errors.New("invalid breaker config")

func (b *breakerFlags) String() string {
	s := make([]string, len(*b))
	for i, bi := range *b {
		s[i] = bi.String()
	}

	return strings.Join(s, " ")
}

func parseDurationOrMillis(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}

	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}

	return time.Duration(ms) * time.Millisecond, nil
}

func (b *breakerFlags) Set(value string) error {
	var s circuit.BreakerSettings

	for _, vi := range strings.Split(value, ",") {
		k, v, found := strings.Cut(vi, "=")
		if !found {
			return fmt.Errorf("%w: %q", errInvalidBreakerConfig, vi)
		}

		var err error
		switch k {
		case "type":
			switch v {
			case "consecutive":
				s.Type = circuit.ConsecutiveFailures
			case "disabled":
				s.Type = circuit.BreakerDisabled
			default:
				return fmt.Errorf("%w: invalid breaker type %q", errInvalidBreakerConfig, v)
			}
		case "host":
			s.Host = v
		case "failures":
			s.Failures, err = strconv.Atoi(v)
		case "timeout":
			s.Timeout, err = parseDurationOrMillis(v)
		case "half-open-requests":
			s.HalfOpenRequests, err = strconv.Atoi(v)
		case "idle-ttl":
			s.IdleTTL, err = parseDurationOrMillis(v)
		default:
			return fmt.Errorf("%w: invalid key %q", errInvalidBreakerConfig, k)
		}

		if err != nil {
			return fmt.Errorf("%w: %s: %v", errInvalidBreakerConfig, k, err)
		}
	}

	*b = append(*b, s)
	return nil
}

func (b *breakerFlags) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var settings []circuit.BreakerSettings
	if err := unmarshal(&settings); err != nil {
		return err
	}

	*b = settings
	return nil
}
