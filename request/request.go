// Package request defines the unit of deferred work handled by the
// scheduler, its lifecycle and its completion handle.
//
// A request is created by a producer for a single attempt. The producer may
// update its priority inputs and request cancellation at any time, from any
// goroutine, until the request reaches a terminal state. A request that was
// not admitted or that was dropped is not retried: the producer creates a
// new one on a later cycle if the work is still needed.
package request

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	// ErrCancelled is the rejection reason of requests cancelled while
	// queued or active.
	ErrCancelled = errors.New("request cancelled")

	// ErrDropped is the rejection reason of queued requests evicted by
	// higher priority requests or by a reduced capacity.
	ErrDropped = errors.New("request dropped")

	// ErrNoOperation is the rejection reason of requests whose Execute
	// function returned no operation.
	ErrNoOperation = errors.New("request function returned no operation")
)

// Category classifies requests for diagnostics.
type Category int

const (
	Other Category = iota
	Terrain
	Imagery
	Tiles3D
)

func (c Category) String() string {
	switch c {
	case Terrain:
		return "terrain"
	case Imagery:
		return "imagery"
	case Tiles3D:
		return "tiles3d"
	default:
		return "other"
	}
}

// ParseCategory returns the category with the given name, or Other.
func ParseCategory(s string) Category {
	switch s {
	case "terrain":
		return Terrain
	case "imagery":
		return Imagery
	case "tiles3d":
		return Tiles3D
	default:
		return Other
	}
}

// State is the lifecycle state of a request.
type State int32

const (
	// Unissued requests were not submitted, or were not admitted.
	Unissued State = iota

	// Issued requests wait in the queue.
	Issued

	// Active requests were started and did not conclude yet.
	Active

	// Received requests concluded successfully.
	Received

	// Failed requests concluded with an error.
	Failed

	// Cancelled requests were cancelled before they concluded.
	Cancelled

	// Dropped requests were evicted from the queue.
	Dropped
)

func (s State) String() string {
	switch s {
	case Unissued:
		return "unissued"
	case Issued:
		return "issued"
	case Active:
		return "active"
	case Received:
		return "received"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Terminal tells whether no further transitions follow the state.
func (s State) Terminal() bool {
	return s >= Received
}

// Options are used to create a request.
type Options struct {

	// Target identifies what the request fetches. It is used only to
	// detect local targets that bypass throttling.
	Target string

	// Execute starts the work. Required.
	Execute Func

	// Category is used for diagnostics.
	Category Category

	// Throttle subjects the request to the queue and the concurrency
	// limit. When false, the request is started immediately.
	Throttle bool

	// Distance is the initial distance. Closer requests win among
	// requests with the same priority score.
	Distance float64

	// PriorityScore is the initial priority score. Higher scores win.
	PriorityScore float64
}

// Request is a single attempt of a unit of deferred work.
type Request struct {
	ID       string
	Target   string
	Execute  Func
	Category Category
	Throttle bool

	distance      atomic.Uint64
	priorityScore atomic.Uint64
	cancel        atomic.Bool
	finished      atomic.Bool
	claimed       atomic.Bool
	state         atomic.Int32

	mu        sync.Mutex
	promise   *Promise
	operation Operation
}

// New creates a request.
func New(o Options) *Request {
	r := &Request{
		ID:       uuid.NewString(),
		Target:   o.Target,
		Execute:  o.Execute,
		Category: o.Category,
		Throttle: o.Throttle,
	}

	r.SetDistance(o.Distance)
	r.SetPriorityScore(o.PriorityScore)
	return r
}

// Distance returns the current distance.
func (r *Request) Distance() float64 {
	return math.Float64frombits(r.distance.Load())
}

// SetDistance updates the distance. It takes effect on the next cycle.
func (r *Request) SetDistance(d float64) {
	r.distance.Store(math.Float64bits(d))
}

// PriorityScore returns the current priority score.
func (r *Request) PriorityScore() float64 {
	return math.Float64frombits(r.priorityScore.Load())
}

// SetPriorityScore updates the priority score. It takes effect on the next
// cycle.
func (r *Request) SetPriorityScore(s float64) {
	r.priorityScore.Store(math.Float64bits(s))
}

// Cancel requests the cancellation of the request. A queued request is
// rejected on the next cycle without being started. An active request is
// rejected on the next cycle, and its operation is aborted when it supports
// it.
func (r *Request) Cancel() {
	r.cancel.Store(true)
}

// Cancelled tells whether cancellation was requested.
func (r *Request) Cancelled() bool {
	return r.cancel.Load()
}

// Finished tells whether the operation of the request has concluded.
func (r *Request) Finished() bool {
	return r.finished.Load()
}

// State returns the current lifecycle state.
func (r *Request) State() State {
	return State(r.state.Load())
}

// Promise returns the completion handle of an issued request, or nil when
// the request was never issued.
func (r *Request) Promise() *Promise {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.promise
}

// Operation returns the operation of a started request.
func (r *Request) Operation() Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operation
}

// Claim reserves an unissued request for a single submission. It returns
// false when the request is already claimed or left the unissued state.
func (r *Request) Claim() bool {
	if r.State() != Unissued {
		return false
	}

	return r.claimed.CompareAndSwap(false, true)
}

// Unclaim releases the claim of a request that was neither issued nor
// started.
func (r *Request) Unclaim() {
	r.claimed.Store(false)
}

// Issue moves an unissued request into the issued state and creates its
// completion handle.
func (r *Request) Issue() *Promise {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.promise = NewPromise()
	r.state.Store(int32(Issued))
	return r.promise
}

// Start records the operation of a request that began executing.
func (r *Request) Start(op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operation = op
	r.state.Store(int32(Active))
}

// Abort aborts the operation of the request when it supports it. Requests
// without an abortable operation return nil.
func (r *Request) Abort() error {
	a, ok := r.Operation().(Aborter)
	if !ok {
		return nil
	}

	return a.Abort()
}

// Finish settles the request with the outcome of its operation and marks
// it finished. The completion handle is settled before the finished flag is
// set. When the request was already settled, e.g. cancelled, only the
// finished flag changes. It returns whether the outcome was accepted.
func (r *Request) Finish(v interface{}, err error) bool {
	accepted := true
	if p := r.Promise(); p != nil {
		if err != nil {
			accepted = p.Reject(err)
		} else {
			accepted = p.Resolve(v)
		}
	}

	if accepted {
		next := Received
		if err != nil {
			next = Failed
		}

		accepted = r.state.CompareAndSwap(int32(Active), int32(next))
	}

	r.finished.Store(true)
	return accepted
}

// Terminate rejects the request with err and moves it into the given
// terminal state, unless it was already settled.
func (r *Request) Terminate(s State, err error) bool {
	if p := r.Promise(); p != nil && !p.Reject(err) {
		return false
	}

	for {
		current := r.state.Load()
		if State(current).Terminal() {
			return false
		}

		if r.state.CompareAndSwap(current, int32(s)) {
			return true
		}
	}
}

// Higher reports whether a outranks b: a higher priority score wins, and
// among equal scores the closer request wins.
func Higher(a, b *Request) bool {
	as, bs := a.PriorityScore(), b.PriorityScore()
	if as != bs {
		return as > bs
	}

	return a.Distance() < b.Distance()
}
