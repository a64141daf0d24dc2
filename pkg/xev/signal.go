/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// Signal runs a handler on the loop goroutine when the process receives a
// signal. The Go runtime owns signal delivery, so a helper goroutine
// receives from os/signal and wakes the loop through an eventfd.
type Signal struct {
	handleBase
	wake    bridge
	sig     os.Signal
	handler SignalHandler
	ch      chan os.Signal
	done    chan struct{}
	wg      sync.WaitGroup
	count   atomic.Int64
}

// NewSignal creates a signal handle that is not yet watching anything.
func NewSignal(loop *Loop) (*Signal, error) {
	s := &Signal{wake: bridge{fd: -1}}
	return open(loop, s, "signal", func() error {
		return wrapErr("signal_init", s.wake.open(loop, s.onWake))
	})
}

// Start watches sig. Restarting replaces the previous signal and handler.
func (s *Signal) Start(sig os.Signal, handler SignalHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if s.closing {
		return ErrClosing
	}
	s.stopWatch()
	s.sig = sig
	s.handler = handler
	s.ch = make(chan os.Signal, 1)
	s.done = make(chan struct{})
	signal.Notify(s.ch, sig)
	s.wg.Add(1)
	go s.forward(s.ch, s.done)
	s.setActive(true)
	return nil
}

// StartFunc watches sig with a callback function.
func (s *Signal) StartFunc(sig os.Signal, fn func(s *Signal, sig os.Signal) Action) error {
	return s.Start(sig, SignalFunc(fn))
}

// Stop stops watching. Signals received but not yet handled are dropped.
func (s *Signal) Stop() error {
	s.stopWatch()
	s.setActive(false)
	return nil
}

// Signum returns the watched signal, or nil.
func (s *Signal) Signum() os.Signal { return s.sig }

func (s *Signal) forward(ch <-chan os.Signal, done <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-ch:
			s.count.Add(1)
			_ = s.wake.signal()
		}
	}
}

func (s *Signal) stopWatch() {
	if s.ch == nil {
		return
	}
	signal.Stop(s.ch)
	close(s.done)
	s.wg.Wait()
	s.ch = nil
	s.done = nil
	s.count.Store(0)
}

func (s *Signal) onWake() {
	for n := s.count.Swap(0); n > 0; n-- {
		if s.closing || s.ch == nil {
			return
		}
		if s.handler.OnSignal(s, s.sig) == Stop {
			_ = s.Stop()
			return
		}
	}
}

func (s *Signal) release() {
	s.stopWatch()
	s.wake.close(s.loop)
}

func (s *Signal) finish() { s.handler = nil }
