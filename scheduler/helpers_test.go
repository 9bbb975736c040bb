package scheduler_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framekeeper/reqsched/request"
)

var errAborted = errors.New("aborted")

type testOperation struct {
	*request.Promise
	aborted atomic.Bool
}

func (o *testOperation) Abort() error {
	o.aborted.Store(true)
	o.Reject(errAborted)
	return nil
}

// testTransport records the started requests by target, and lets the tests
// conclude their operations.
type testTransport struct {
	mu      sync.Mutex
	ops     map[string]*testOperation
	started []string
}

func newTestTransport(t *testing.T) *testTransport {
	tt := &testTransport{ops: make(map[string]*testOperation)}
	t.Cleanup(tt.settleAll)
	return tt
}

func (tt *testTransport) execute(target string) request.Func {
	return func() request.Operation {
		tt.mu.Lock()
		defer tt.mu.Unlock()
		op := &testOperation{Promise: request.NewPromise()}
		tt.ops[target] = op
		tt.started = append(tt.started, target)
		return op
	}
}

func (tt *testTransport) request(target string, score, distance float64) *request.Request {
	return request.New(request.Options{
		Target:        target,
		Execute:       tt.execute(target),
		Throttle:      true,
		PriorityScore: score,
		Distance:      distance,
	})
}

func (tt *testTransport) op(target string) *testOperation {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.ops[target]
}

func (tt *testTransport) startedTargets() []string {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return append([]string(nil), tt.started...)
}

func (tt *testTransport) settleAll() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	for _, op := range tt.ops {
		op.Resolve(nil)
	}
}

func waitFinished(t *testing.T, r *request.Request) {
	t.Helper()
	require.Eventually(t, r.Finished, time.Second, time.Millisecond)
}

func requireRejected(t *testing.T, op request.Operation, want error) {
	t.Helper()
	select {
	case <-op.Done():
	case <-time.After(time.Second):
		t.Fatal("operation not settled")
	}

	_, err := op.Result()
	require.ErrorIs(t, err, want)
}

func requirePending(t *testing.T, op request.Operation) {
	t.Helper()
	select {
	case <-op.Done():
		t.Fatal("operation settled unexpectedly")
	default:
	}
}
