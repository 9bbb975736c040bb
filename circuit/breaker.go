package circuit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/framekeeper/reqsched/logging"
)

// BreakerType defines the type of the used breaker: consecutive or disabled.
type BreakerType int

const (
	BreakerNone BreakerType = iota
	ConsecutiveFailures
	BreakerDisabled
)

// ErrOpen is returned by Allow when the breaker does not let the fetch
// through.
var ErrOpen = errors.New("circuit breaker open")

func (b *BreakerType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}

	switch value {
	case "consecutive":
		*b = ConsecutiveFailures
	case "disabled":
		*b = BreakerDisabled
	default:
		return fmt.Errorf("invalid breaker type %v (allowed values are: consecutive or disabled)", value)
	}

	return nil
}

// BreakerSettings contains the settings of the breakers of the target
// hosts. Settings without a Host serve as defaults.
type BreakerSettings struct {
	Type             BreakerType   `yaml:"type"`
	Host             string        `yaml:"host"`
	Failures         int           `yaml:"failures"`
	Timeout          time.Duration `yaml:"timeout"`
	HalfOpenRequests int           `yaml:"half-open-requests"`
	IdleTTL          time.Duration `yaml:"idle-ttl"`
}

// Breaker is the circuit breaker of a single target host.
//
// Use the Get() method of the Registry to request fully initialized breakers.
type Breaker struct {
	settings BreakerSettings
	ts       time.Time
	gb       *gobreaker.TwoStepCircuitBreaker
}

func (to BreakerSettings) mergeSettings(from BreakerSettings) BreakerSettings {
	if to.Type == BreakerNone {
		to.Type = from.Type
		if from.Type == ConsecutiveFailures && to.Failures == 0 {
			to.Failures = from.Failures
		}
	}

	if to.Timeout == 0 {
		to.Timeout = from.Timeout
	}

	if to.HalfOpenRequests == 0 {
		to.HalfOpenRequests = from.HalfOpenRequests
	}

	if to.IdleTTL == 0 {
		to.IdleTTL = from.IdleTTL
	}

	return to
}

// String returns the string representation of a particular set of settings.
//
//lint:ignore ST1016 "s" makes sense here and mergeSettings has "to"
func (s BreakerSettings) String() string {
	switch s.Type {
	case ConsecutiveFailures:
	case BreakerDisabled:
		return "disabled"
	default:
		return "none"
	}

	ss := []string{"type=consecutive"}
	if s.Host != "" {
		ss = append(ss, "host="+s.Host)
	}

	if s.Failures > 0 {
		ss = append(ss, "failures="+strconv.Itoa(s.Failures))
	}

	if s.Timeout > 0 {
		ss = append(ss, "timeout="+s.Timeout.String())
	}

	if s.HalfOpenRequests > 0 {
		ss = append(ss, "half-open-requests="+strconv.Itoa(s.HalfOpenRequests))
	}

	if s.IdleTTL > 0 {
		ss = append(ss, "idle-ttl="+s.IdleTTL.String())
	}

	return strings.Join(ss, ",")
}

func newBreaker(s BreakerSettings, log logging.Logger) *Breaker {
	failures := uint32(s.Failures)
	return &Breaker{
		settings: s,
		gb: gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:        s.Host,
			MaxRequests: uint32(s.HalfOpenRequests),
			Timeout:     s.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Infof("circuit breaker for %s changed from %s to %s", name, from, to)
			},
		}),
	}
}

// Allow returns a callback function for reporting the outcome of the fetch,
// or ErrOpen when the breaker is not closed. The callback expects true when
// the fetch succeeded.
func (b *Breaker) Allow() (func(bool), error) {
	done, err := b.gb.Allow()

	// this error can only indicate that the breaker is not closed
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	return done, nil
}

// Closed tells whether the breaker lets fetches through without limits.
func (b *Breaker) Closed() bool {
	return b.gb.State() == gobreaker.StateClosed
}

func (b *Breaker) idle(now time.Time) bool {
	return now.Sub(b.ts) > b.settings.IdleTTL
}
