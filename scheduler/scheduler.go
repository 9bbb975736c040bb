// Package scheduler implements an admission controller for asynchronous
// requests with a global limit on the number of concurrently running
// requests.
//
// Producers submit requests with Submit. Requests that are not throttled,
// that target local data, or that are submitted while throttling is
// disabled, are started immediately. Other requests wait in a bounded
// priority queue. Once per cycle, the driver calls Reconcile, which releases
// the slots of the concluded and cancelled requests, and starts the highest
// ranked queued requests into the free slots.
//
// The ranking inputs of queued requests may change between cycles. The
// queue is reordered at the beginning of every cycle, so the updates take
// effect on the next Reconcile.
//
// Independent Scheduler instances share no state.
package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/framekeeper/reqsched/logging"
	"github.com/framekeeper/reqsched/metrics"
	"github.com/framekeeper/reqsched/queue"
	"github.com/framekeeper/reqsched/request"
	"github.com/framekeeper/reqsched/target"
)

// DefaultMaximumRequests is the default limit of concurrently running
// requests.
const DefaultMaximumRequests = 50

// Metrics keys.
const (
	KeyActive      = "scheduler.requests.active"
	KeyQueued      = "scheduler.requests.queued"
	KeyCapacity    = "scheduler.requests.capacity"
	KeyAttempted   = "scheduler.requests.attempted"
	KeyBypassed    = "scheduler.requests.bypassed"
	KeyAdmitted    = "scheduler.requests.admitted"
	KeyNotAdmitted = "scheduler.requests.notadmitted"
	KeyDropped     = "scheduler.requests.dropped"
	KeyStarted     = "scheduler.requests.started"
	KeyCancelled   = "scheduler.requests.cancelled"
	KeySucceeded   = "scheduler.requests.succeeded"
	KeyFailed      = "scheduler.requests.failed"
)

var (
	// ErrNotAdmitted is returned by Submit when the queue is full and the
	// request does not outrank any of the queued requests. It is not a
	// failure: the producer may submit a new request on a later cycle.
	ErrNotAdmitted = errors.New("request not admitted")

	// ErrInvalidRequest is returned by Submit for nil requests, requests
	// without an Execute function, and requests that were already
	// submitted.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPanic wraps the value of a panic raised by the Execute function of
	// a request.
	ErrPanic = errors.New("request function panicked")
)

// Options are used to create a scheduler.
type Options struct {

	// MaximumRequests limits the number of concurrently running throttled
	// requests, and the number of queued requests. Defaults to
	// DefaultMaximumRequests.
	MaximumRequests int

	// DisableThrottle starts every submitted request immediately.
	DisableThrottle bool

	// DebugShowStatistics logs the number of requests submitted during
	// each cycle, when it is not zero.
	DebugShowStatistics bool

	// IsLocal tells whether a target refers to local data. Requests with
	// local targets bypass throttling. Defaults to target.IsLocal.
	IsLocal func(target string) bool

	// OnComplete, when set, is called once for every started request,
	// when its operation has concluded. It is called from a separate
	// goroutine, with the error of the operation.
	OnComplete func(r *request.Request, err error)

	// Metrics receives the scheduler metrics. Defaults to metrics.Default.
	Metrics metrics.Metrics

	// Log is used for diagnostics. Defaults to logging.New().
	Log logging.Logger
}

// Status reports the current number of running and queued requests. It can
// be used for metrics.
type Status struct {

	// Active represents the number of throttled requests running, or
	// concluded since the last cycle.
	Active int

	// Queued represents the number of requests waiting to be started.
	Queued int
}

// Scheduler is the admission controller. Its methods are safe to call from
// multiple goroutines.
type Scheduler struct {
	mu                  sync.Mutex
	pending             *queue.Queue[*request.Request]
	active              []*request.Request
	maximumRequests     int
	throttle            bool
	debugShowStatistics bool
	submitted           int

	isLocal    func(string) bool
	onComplete func(*request.Request, error)
	metrics    metrics.Metrics
	log        logging.Logger
	stats      counters
}

// New creates a scheduler.
func New(o Options) *Scheduler {
	if o.MaximumRequests <= 0 {
		o.MaximumRequests = DefaultMaximumRequests
	}

	if o.IsLocal == nil {
		o.IsLocal = target.IsLocal
	}

	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	if o.Log == nil {
		o.Log = logging.New()
	}

	return &Scheduler{
		pending:             queue.New(o.MaximumRequests, request.Higher),
		maximumRequests:     o.MaximumRequests,
		throttle:            !o.DisableThrottle,
		debugShowStatistics: o.DebugShowStatistics,
		isLocal:             o.IsLocal,
		onComplete:          o.OnComplete,
		metrics:             o.Metrics,
		log:                 o.Log,
	}
}

// Submit offers a request to the scheduler.
//
// Requests that bypass throttling are started before Submit returns, and
// their operation is returned as is. Other requests are queued, and their
// completion handle is returned. The handle is settled with the outcome of
// the operation once the request was started and has concluded, or
// rejected when the request is cancelled or dropped before that.
//
// When the queue is full and the request does not outrank the lowest
// ranked queued request, Submit returns ErrNotAdmitted and the request
// stays unissued. When it does, the lowest ranked request is dropped.
func (s *Scheduler) Submit(r *request.Request) (request.Operation, error) {
	if r == nil || r.Execute == nil || !r.Claim() {
		return nil, ErrInvalidRequest
	}

	s.mu.Lock()
	s.submitted++
	s.stats.attempted.Add(1)
	s.metrics.IncCounter(KeyAttempted)

	if !s.throttle || !r.Throttle || s.isLocal(r.Target) {
		s.mu.Unlock()
		return s.bypass(r)
	}

	defer s.mu.Unlock()
	dropped, ok := s.pending.Insert(r)
	if !ok {
		r.Unclaim()
		s.stats.notAdmitted.Add(1)
		s.metrics.IncCounter(KeyNotAdmitted)
		return nil, ErrNotAdmitted
	}

	p := r.Issue()
	s.stats.admitted.Add(1)
	s.metrics.IncCounter(KeyAdmitted)
	for _, d := range dropped {
		s.drop(d)
	}

	return p, nil
}

func (s *Scheduler) bypass(r *request.Request) (request.Operation, error) {
	op, err := execute(r)
	if err != nil {
		r.Unclaim()
		s.stats.failed.Add(1)
		s.metrics.IncCounter(KeyFailed)
		return nil, err
	}

	s.stats.bypassed.Add(1)
	s.metrics.IncCounter(KeyBypassed)
	r.Start(op)
	go s.complete(r, op)
	return op, nil
}

// Reconcile runs one scheduling cycle. It releases the slots of the
// concluded requests, rejects and aborts the cancelled running requests,
// reorders the queue, and starts the highest ranked queued requests while
// there are free slots.
func (s *Scheduler) Reconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reap()
	s.pending.Rebuild()
	s.admit()
	s.report()
}

func (s *Scheduler) reap() {
	var n int
	for _, r := range s.active {
		switch {
		case r.Cancelled():
			if r.Terminate(request.Cancelled, request.ErrCancelled) {
				s.stats.cancelledActive.Add(1)
				s.metrics.IncCounter(KeyCancelled)
			}

			if err := r.Abort(); err != nil {
				s.log.Debugf("Failed to abort request %s: %v", r.ID, err)
			}
		case r.Finished():
		default:
			s.active[n] = r
			n++
		}
	}

	clear(s.active[n:])
	s.active = s.active[:n]
}

func (s *Scheduler) admit() {
	for slots := s.maximumRequests - len(s.active); slots > 0; {
		r, ok := s.pending.PopMax()
		if !ok {
			return
		}

		if r.Cancelled() {
			if r.Terminate(request.Cancelled, request.ErrCancelled) {
				s.stats.cancelled.Add(1)
				s.metrics.IncCounter(KeyCancelled)
			}

			continue
		}

		op, err := execute(r)
		if err != nil {
			s.log.Errorf("Failed to start request %s: %v", r.ID, err)
			r.Terminate(request.Failed, err)
			s.stats.failed.Add(1)
			s.metrics.IncCounter(KeyFailed)
			continue
		}

		r.Start(op)
		s.active = append(s.active, r)
		slots--
		s.stats.started.Add(1)
		s.metrics.IncCounter(KeyStarted)
		go s.complete(r, op)
	}
}

func (s *Scheduler) report() {
	if s.debugShowStatistics && s.submitted > 0 {
		s.log.Infof("Number of requests attempted: %d", s.submitted)
	}

	s.submitted = 0
	s.metrics.UpdateGauge(KeyActive, float64(len(s.active)))
	s.metrics.UpdateGauge(KeyQueued, float64(s.pending.Len()))
	s.metrics.UpdateGauge(KeyCapacity, float64(s.maximumRequests))
}

func (s *Scheduler) drop(r *request.Request) {
	if r.Terminate(request.Dropped, request.ErrDropped) {
		s.stats.dropped.Add(1)
		s.metrics.IncCounter(KeyDropped)
	}
}

// complete waits for the operation of a started request, and settles the
// request with its outcome. It does not access the state guarded by the
// scheduler mutex.
func (s *Scheduler) complete(r *request.Request, op request.Operation) {
	<-op.Done()
	v, err := op.Result()
	if r.Finish(v, err) {
		if err != nil {
			s.stats.failed.Add(1)
			s.metrics.IncCounter(KeyFailed)
		} else {
			s.stats.succeeded.Add(1)
			s.metrics.IncCounter(KeySucceeded)
		}
	}

	if s.onComplete != nil {
		s.onComplete(r, err)
	}
}

func execute(r *request.Request) (op request.Operation, err error) {
	defer func() {
		if p := recover(); p != nil {
			op, err = nil, fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()

	op = r.Execute()
	if op == nil {
		err = request.ErrNoOperation
	}

	return
}

// SetMaximumRequests changes the limit of concurrently running requests,
// and the capacity of the queue. When the queue holds more requests than
// the new limit, the lowest ranked requests are dropped. Running requests
// are not affected: the new limit applies to the following cycles.
func (s *Scheduler) SetMaximumRequests(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n = max(n, 0)
	s.maximumRequests = n
	for _, d := range s.pending.Resize(n) {
		s.drop(d)
	}
}

// MaximumRequests returns the limit of concurrently running requests.
func (s *Scheduler) MaximumRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maximumRequests
}

// SetThrottle enables or disables throttling. While disabled, every
// submitted request is started immediately, and the requests that were
// already queued are still started by the following cycles.
func (s *Scheduler) SetThrottle(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle = enabled
}

// Throttle tells whether throttling is enabled.
func (s *Scheduler) Throttle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.throttle
}

// SetDebugShowStatistics enables or disables logging the number of
// requests submitted during each cycle.
func (s *Scheduler) SetDebugShowStatistics(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugShowStatistics = enabled
}

// Status returns the current status of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Active: len(s.active),
		Queued: s.pending.Len(),
	}
}
