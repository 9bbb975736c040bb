package reqsched

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/framekeeper/reqsched/request"
	"github.com/framekeeper/reqsched/scheduler"
	"github.com/framekeeper/reqsched/transport"
)

// producer submits the requests of the targets, and submits a new request
// on a later cycle when one was not admitted or was dropped.
type producer struct {
	scheduler   *scheduler.Scheduler
	client      *transport.Client
	starts      *sync.Map
	interval    time.Duration
	maxAttempts int
}

func (p *producer) newRequest(t Target) *request.Request {
	o := t.requestOptions()
	get := p.client.Get(t.URL)
	r := request.New(o)
	r.Execute = func() request.Operation {
		p.starts.Store(r.ID, time.Now())
		return get()
	}

	return r
}

func (p *producer) fetch(ctx context.Context, t Target) Result {
	result := Result{Target: t}
	for result.Attempts < p.maxAttempts {
		result.Attempts++

		r := p.newRequest(t)
		op, err := p.scheduler.Submit(r)
		switch {
		case errors.Is(err, scheduler.ErrNotAdmitted):
			log.Debugf("%s not admitted, attempt %d", t.URL, result.Attempts)
			if !p.waitCycle(ctx) {
				result.State, result.Err = request.Cancelled, ctx.Err()
				return result
			}

			continue
		case err != nil:
			result.State, result.Err = request.Failed, err
			return result
		}

		v, err := p.wait(ctx, r, op)
		if errors.Is(err, request.ErrDropped) {
			log.Debugf("%s dropped, attempt %d", t.URL, result.Attempts)
			continue
		}

		result.State, result.Err = outcome(err), err
		if rsp, ok := v.(*transport.Response); ok {
			result.Response = rsp
		}

		return result
	}

	result.State, result.Err = request.Unissued, scheduler.ErrNotAdmitted
	return result
}

// wait waits for the outcome of a submitted request. When ctx is done, it
// cancels the request, and waits for the scheduler to reject it.
func (p *producer) wait(ctx context.Context, r *request.Request, op request.Operation) (interface{}, error) {
	select {
	case <-op.Done():
	case <-ctx.Done():
		r.Cancel()

		// bypassed requests are not tracked by the scheduler
		if a, ok := op.(request.Aborter); ok {
			a.Abort()
		}

		<-op.Done()
	}

	return op.Result()
}

// outcome returns the final state of a request settled with err. The state
// of the request itself may be updated only after its completion handle was
// settled.
func outcome(err error) request.State {
	switch {
	case err == nil:
		return request.Received
	case errors.Is(err, request.ErrCancelled), errors.Is(err, context.Canceled):
		return request.Cancelled
	default:
		return request.Failed
	}
}

func (p *producer) waitCycle(ctx context.Context) bool {
	select {
	case <-time.After(p.interval):
		return true
	case <-ctx.Done():
		return false
	}
}
