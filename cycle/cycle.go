// Package cycle drives the scheduling cycles of a scheduler at a fixed
// interval.
package cycle

import (
	"sync"
	"time"

	"github.com/framekeeper/reqsched/logging"
	"github.com/framekeeper/reqsched/metrics"
)

// DefaultInterval is the default time between two cycles, about one frame
// at 60 frames per second.
const DefaultInterval = 16 * time.Millisecond

// KeyCycle is the metrics key of the cycle duration.
const KeyCycle = "scheduler.cycle"

// Reconciler runs a single scheduling cycle.
type Reconciler interface {
	Reconcile()
}

// Options are used to create a driver.
type Options struct {

	// Interval defines the time between the start of two cycles.
	// Defaults to DefaultInterval.
	Interval time.Duration

	// Reconciler is called once per cycle. Required.
	Reconciler Reconciler

	// Metrics receives the duration of each cycle. Defaults to
	// metrics.Default.
	Metrics metrics.Metrics

	// Log defaults to logging.New().
	Log logging.Logger
}

// Driver calls Reconcile periodically from a background goroutine, until
// it is closed.
type Driver struct {
	options Options
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates a driver and starts its goroutine.
func New(o Options) *Driver {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}

	if o.Metrics == nil {
		o.Metrics = metrics.Default
	}

	if o.Log == nil {
		o.Log = logging.New()
	}

	d := &Driver{
		options: o,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go d.run()
	return d
}

func (d *Driver) run() {
	defer close(d.done)

	d.options.Log.Debugf("Starting scheduling cycles every %v", d.options.Interval)
	ticker := time.NewTicker(d.options.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			d.options.Reconciler.Reconcile()
			d.options.Metrics.MeasureSince(KeyCycle, start)
		case <-d.quit:
			d.options.Log.Debug("Stopped scheduling cycles")
			return
		}
	}
}

// Close stops the driver and waits until the running cycle, if any, has
// completed. It is safe to call it multiple times.
func (d *Driver) Close() {
	d.once.Do(func() { close(d.quit) })
	<-d.done
}
