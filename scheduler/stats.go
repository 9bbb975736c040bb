package scheduler

import "sync/atomic"

// Statistics contains the cumulative counters of a scheduler.
type Statistics struct {

	// Attempted counts every Submit call with a valid request.
	Attempted int64

	// Bypassed counts the requests started immediately by Submit.
	Bypassed int64

	// Admitted counts the requests inserted into the queue.
	Admitted int64

	// NotAdmitted counts the requests refused by a full queue.
	NotAdmitted int64

	// Dropped counts the queued requests evicted by higher ranked
	// requests or by a reduced capacity.
	Dropped int64

	// Started counts the queued requests started by Reconcile.
	Started int64

	// Cancelled counts the queued requests cancelled before they were
	// started.
	Cancelled int64

	// CancelledActive counts the running requests cancelled before they
	// concluded.
	CancelledActive int64

	// Succeeded and Failed count the concluded operations of both the
	// bypassed and the started requests. Failed also contains the requests
	// whose operation could not be started.
	Succeeded int64
	Failed    int64

	// SubmittedThisCycle counts the Submit calls since the last Reconcile.
	SubmittedThisCycle int
}

type counters struct {
	attempted, bypassed, admitted, notAdmitted, dropped atomic.Int64
	started, cancelled, cancelledActive                 atomic.Int64
	succeeded, failed                                   atomic.Int64
}

// Statistics returns a snapshot of the scheduler counters.
func (s *Scheduler) Statistics() Statistics {
	s.mu.Lock()
	submitted := s.submitted
	s.mu.Unlock()

	return Statistics{
		Attempted:          s.stats.attempted.Load(),
		Bypassed:           s.stats.bypassed.Load(),
		Admitted:           s.stats.admitted.Load(),
		NotAdmitted:        s.stats.notAdmitted.Load(),
		Dropped:            s.stats.dropped.Load(),
		Started:            s.stats.started.Load(),
		Cancelled:          s.stats.cancelled.Load(),
		CancelledActive:    s.stats.cancelledActive.Load(),
		Succeeded:          s.stats.succeeded.Load(),
		Failed:             s.stats.failed.Load(),
		SubmittedThisCycle: submitted,
	}
}
