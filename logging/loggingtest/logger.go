// Package loggingtest provides a Logger that records the logged entries, so
// tests can wait for and count them.
package loggingtest

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/framekeeper/reqsched/logging"
)

type logSubscription struct {
	exp      string
	n        int
	response chan<- struct{}
}

type countMessage struct {
	expression string
	response   chan<- int
}

type logWatch struct {
	entries []string
	reqs    []*logSubscription
	mute    bool
}

// TestLogger implements logging.Logger. Entries are also printed with the
// standard library logger unless muted.
type TestLogger struct {
	save   chan string
	notify chan<- logSubscription
	count  chan<- countMessage
	clear  chan struct{}
	mute   chan bool
	quit   chan<- struct{}
}

// ErrWaitTimeout is returned when the expected entries were not logged in
// time.
var ErrWaitTimeout = errors.New("timeout")

var _ logging.Logger = (*TestLogger)(nil)

func (lw *logWatch) save(e string) {
	log.Println(e)
	lw.entries = append(lw.entries, e)
	for i := len(lw.reqs) - 1; i >= 0; i-- {
		req := lw.reqs[i]
		if strings.Contains(e, req.exp) {
			req.n--
			if req.n <= 0 {
				close(req.response)
				lw.reqs = append(lw.reqs[:i], lw.reqs[i+1:]...)
			}
		}
	}
}

func (lw *logWatch) notify(req logSubscription) {
	for i := len(lw.entries) - 1; i >= 0; i-- {
		if strings.Contains(lw.entries[i], req.exp) {
			req.n--
			if req.n == 0 {
				break
			}
		}
	}

	if req.n <= 0 {
		close(req.response)
	} else {
		lw.reqs = append(lw.reqs, &req)
	}
}

func (lw *logWatch) count(m countMessage) {
	var count int
	for _, e := range lw.entries {
		if strings.Contains(e, m.expression) {
			count++
		}
	}

	m.response <- count
}

func (lw *logWatch) clear() {
	lw.entries = nil
	lw.reqs = nil
}

// New creates a test logger. Close must be called to release it.
func New() *TestLogger {
	lw := &logWatch{}
	save := make(chan string)
	notify := make(chan logSubscription)
	count := make(chan countMessage)
	clear := make(chan struct{})
	mute := make(chan bool)
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case e := <-save:
				if !lw.mute {
					lw.save(e)
				}
			case req := <-notify:
				lw.notify(req)
			case m := <-count:
				lw.count(m)
			case <-clear:
				lw.clear()
			case m := <-mute:
				lw.mute = m
			case <-quit:
				return
			}
		}
	}()

	return &TestLogger{save, notify, count, clear, mute, quit}
}

func (tl *TestLogger) logf(f string, a ...interface{}) {
	tl.save <- fmt.Sprintf(f, a...)
}

func (tl *TestLogger) log(a ...interface{}) {
	tl.save <- fmt.Sprint(a...)
}

// WaitForN blocks until the expression was logged n times, or the timeout
// expires.
func (tl *TestLogger) WaitForN(exp string, n int, to time.Duration) error {
	found := make(chan struct{}, 1)
	tl.notify <- logSubscription{exp, n, found}

	select {
	case <-found:
		return nil
	case <-time.After(to):
		return ErrWaitTimeout
	}
}

// WaitFor blocks until the expression was logged, or the timeout expires.
func (tl *TestLogger) WaitFor(exp string, to time.Duration) error {
	return tl.WaitForN(exp, 1, to)
}

// Count returns how many entries contain the expression.
func (tl *TestLogger) Count(expression string) int {
	r := make(chan int)
	tl.count <- countMessage{expression, r}
	return <-r
}

// Reset clears the recorded entries.
func (tl *TestLogger) Reset() {
	tl.clear <- struct{}{}
}

// Mute stops recording entries.
func (tl *TestLogger) Mute() {
	tl.mute <- true
}

// Unmute resumes recording entries.
func (tl *TestLogger) Unmute() {
	tl.mute <- false
}

// Close releases the logger.
func (tl *TestLogger) Close() {
	close(tl.quit)
}

func (tl *TestLogger) Error(a ...interface{})            { tl.log(a...) }
func (tl *TestLogger) Errorf(f string, a ...interface{}) { tl.logf(f, a...) }
func (tl *TestLogger) Warn(a ...interface{})             { tl.log(a...) }
func (tl *TestLogger) Warnf(f string, a ...interface{})  { tl.logf(f, a...) }
func (tl *TestLogger) Info(a ...interface{})             { tl.log(a...) }
func (tl *TestLogger) Infof(f string, a ...interface{})  { tl.logf(f, a...) }
func (tl *TestLogger) Debug(a ...interface{})            { tl.log(a...) }
func (tl *TestLogger) Debugf(f string, a ...interface{}) { tl.logf(f, a...) }

// WithFields returns the same logger, fields are ignored.
func (tl *TestLogger) WithFields(map[string]interface{}) logging.Logger { return tl }
