// Package shutdown provides a process-wide, write-once shutdown request flag
// that OS signals can set and the poll loop reads cooperatively.
//
// The goroutine receiving OS signals only flips the flag. Anything visible,
// such as logging that shutdown began, is left to the code observing it.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// DefaultSignals are the signals that request shutdown when Notify is called
// without an explicit list.
var DefaultSignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}

// Signal is a shutdown request flag. Once requested it stays requested.
// The zero value is not usable; create one with New.
type Signal struct {
	requested atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// New returns a Signal that has not been requested.
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Request marks shutdown as requested. It is idempotent and safe to call
// from any goroutine.
func (s *Signal) Request() {
	s.requested.Store(true)
	s.once.Do(func() { close(s.done) })
}

// Requested reports whether shutdown has been requested.
func (s *Signal) Requested() bool {
	return s.requested.Load()
}

// Done returns a channel that is closed on the first Request.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Notify requests shutdown on s whenever one of signals is delivered to the
// process. With no signals it uses DefaultSignals. The returned function
// stops delivery; it is safe to call more than once.
func Notify(s *Signal, signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = DefaultSignals
	}

	ch := make(chan os.Signal, 1)
	quit := make(chan struct{})
	signal.Notify(ch, signals...)

	go func() {
		for {
			select {
			case <-ch:
				s.Request()
			case <-quit:
				return
			}
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
