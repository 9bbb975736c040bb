package circuit

import (
	"sync"
	"time"

	"github.com/framekeeper/reqsched/logging"
)

const DefaultIdleTTL = time.Hour

// Registry objects hold the active circuit breakers, ensure synchronized access to them, apply default settings
// and recycle the idle breakers.
type Registry struct {
	defaults     BreakerSettings
	hostSettings map[string]BreakerSettings
	lookup       map[BreakerSettings]*Breaker
	log          logging.Logger
	mx           sync.Mutex
}

// NewRegistry initializes a registry with the provided settings. Settings with an empty Host field are
// considered as defaults. Settings with the same Host field are merged together. The state changes of the
// breakers are logged to log, which defaults to logging.New().
func NewRegistry(log logging.Logger, settings ...BreakerSettings) *Registry {
	if log == nil {
		log = logging.New()
	}

	var (
		defaults     BreakerSettings
		hostSettings []BreakerSettings
	)

	for _, s := range settings {
		if s.Host == "" {
			defaults = defaults.mergeSettings(s)
			continue
		}

		hostSettings = append(hostSettings, s)
	}

	if defaults.IdleTTL <= 0 {
		defaults.IdleTTL = DefaultIdleTTL
	}

	hs := make(map[string]BreakerSettings)
	for _, s := range hostSettings {
		if sh, ok := hs[s.Host]; ok {
			hs[s.Host] = s.mergeSettings(sh)
		} else {
			hs[s.Host] = s.mergeSettings(defaults)
		}
	}

	return &Registry{
		defaults:     defaults,
		hostSettings: hs,
		lookup:       make(map[BreakerSettings]*Breaker),
		log:          log,
	}
}

func (r *Registry) mergeDefaults(s BreakerSettings) BreakerSettings {
	defaults, ok := r.hostSettings[s.Host]
	if !ok {
		defaults = r.defaults
	}

	return s.mergeSettings(defaults)
}

func (r *Registry) dropIdle(now time.Time) {
	for s, b := range r.lookup {
		if b.idle(now) {
			delete(r.lookup, s)
		}
	}
}

func (r *Registry) get(s BreakerSettings) *Breaker {
	r.mx.Lock()
	defer r.mx.Unlock()

	now := time.Now()

	b, ok := r.lookup[s]
	if !ok || b.idle(now) {
		r.dropIdle(now)
		b = newBreaker(s, r.log)
		r.lookup[s] = b
	}

	b.ts = now
	return b
}

// Get returns the circuit breaker of a target host, or nil when the host has no breaker:
//
//	r.Get(BreakerSettings{Host: u.Host})
//
// The key is filled up with the defaults, and the matching breaker is returned if it exists, or a new one is
// created if not.
func (r *Registry) Get(s BreakerSettings) *Breaker {
	if s.Type == BreakerDisabled || s.Host == "" {
		return nil
	}

	s = r.mergeDefaults(s)
	if s.Type != ConsecutiveFailures || s.Failures <= 0 {
		return nil
	}

	return r.get(s)
}

// Len returns the number of live breakers.
func (r *Registry) Len() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.lookup)
}
