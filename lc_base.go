package opool

import (
	"errors"
	"github.com/opoolio/opool/internal"
	"sync/atomic"
	"time"
)

const (
	stopped = iota
	started
)

var (
	// ErrDoubleStarted is returned when Start is called on a component that
	// has already been started.
	//
	// Janitors and registry janitors managed by opool follow a strict lifecycle
	// and must not be started more than once without being stopped.
	ErrDoubleStarted = errors.New("opool: double start")

	// ErrDoubleStopped is returned when Stop is called on a worker that
	// is not currently running.
	ErrDoubleStopped = errors.New("opool: double stop")

	// ErrStopTimeout is returned when a component fails to shut down within
	// the provided timeout during Stop.
	//
	// In this case, the component may still be terminating in the background.
	ErrStopTimeout = errors.New("opool: stop timeout")
)

type lcBase struct {
	state atomic.Int32
}

func (lb *lcBase) tryStart() error {
	if !lb.state.CompareAndSwap(stopped, started) {
		return ErrDoubleStarted
	}
	return nil
}

func (lb *lcBase) tryStop(timeout time.Duration, df internal.DoneFunc) error {
	if !lb.state.CompareAndSwap(started, stopped) {
		return ErrDoubleStopped
	}
	done := df()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}
