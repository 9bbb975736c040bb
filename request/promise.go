package request

import (
	"context"
	"sync"
)

// Operation is the asynchronous outcome of a unit of work. Done is closed
// once the operation has concluded, after which Result returns its value or
// its error.
type Operation interface {
	Done() <-chan struct{}
	Result() (interface{}, error)
}

// Aborter is implemented by operations that can be stopped before they
// conclude. Aborting is best effort: an operation may still conclude with
// its original outcome.
type Aborter interface {
	Abort() error
}

// Func starts a unit of work and returns its operation. It must not block.
type Func func() Operation

// Promise is a single-resolution completion handle. It implements
// Operation. Only the first call to Resolve or Reject has an effect.
type Promise struct {
	once  sync.Once
	done  chan struct{}
	value interface{}
	err   error
}

// NewPromise creates an unsettled promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

func (p *Promise) settle(v interface{}, err error) bool {
	var settled bool
	p.once.Do(func() {
		p.value, p.err = v, err
		settled = true
		close(p.done)
	})

	return settled
}

// Resolve settles the promise with a value. It returns false when the
// promise was already settled.
func (p *Promise) Resolve(v interface{}) bool { return p.settle(v, nil) }

// Reject settles the promise with an error. It returns false when the
// promise was already settled.
func (p *Promise) Reject(err error) bool { return p.settle(nil, err) }

// Done returns a channel that is closed when the promise is settled.
func (p *Promise) Done() <-chan struct{} { return p.done }

// Settled tells whether the promise was resolved or rejected.
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result blocks until the promise is settled.
func (p *Promise) Result() (interface{}, error) {
	<-p.done
	return p.value, p.err
}

// Wait blocks until the promise is settled or the context is done.
func (p *Promise) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type asyncOperation struct {
	*Promise
	cancel context.CancelFunc
}

func (o *asyncOperation) Abort() error {
	o.cancel()
	return nil
}

// Async runs f in a new goroutine and returns its outcome as an abortable
// operation. Aborting cancels the context passed to f.
func Async(f func(context.Context) (interface{}, error)) Operation {
	ctx, cancel := context.WithCancel(context.Background())
	o := &asyncOperation{Promise: NewPromise(), cancel: cancel}
	go func() {
		defer cancel()
		v, err := f(ctx)
		if err != nil {
			o.Reject(err)
			return
		}

		o.Resolve(v)
	}()

	return o
}

// Resolved returns an operation that has already succeeded with v.
func Resolved(v interface{}) Operation {
	p := NewPromise()
	p.Resolve(v)
	return p
}

// Rejected returns an operation that has already failed with err.
func Rejected(err error) Operation {
	p := NewPromise()
	p.Reject(err)
	return p
}
