/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"sync"

	"github.com/crrow/polyipc-go/pkg/cev"
)

// bridge forwards wakeups from other goroutines onto the loop goroutine
// through an eventfd registered with the loop's poller.
type bridge struct {
	mu sync.Mutex
	fd int
}

func (b *bridge) open(l *Loop, onWake func()) error {
	fd, err := cev.EventfdOpen()
	if err != nil {
		return err
	}
	err = l.poller.Add(fd, cev.EventRead, func(cev.Events) {
		if _, derr := cev.EventfdDrain(fd); derr != nil {
			l.log.Debug().Err(derr).Msg("loop: eventfd drain failed")
		}
		onWake()
	})
	if err != nil {
		_ = cev.Close(fd)
		return err
	}
	b.fd = fd
	return nil
}

// signal may be called from any goroutine.
func (b *bridge) signal() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return ErrClosing
	}
	return cev.EventfdSignal(b.fd)
}

func (b *bridge) close(l *Loop) {
	b.mu.Lock()
	fd := b.fd
	b.fd = -1
	b.mu.Unlock()
	if fd < 0 {
		return
	}
	if l.poller.Registered(fd) {
		_ = l.poller.Remove(fd)
	}
	_ = cev.Close(fd)
}

// Async wakes its loop from any goroutine. Sends that happen before the
// loop gets to run the handler are coalesced into a single call.
//
// An Async handle is active from creation until it is closed, so a loop
// with an open Async never runs out of work on its own.
//
// Example:
//
//	stop, _ := xev.NewAsync(loop, xev.AsyncFunc(func(a *xev.Async) {
//	    a.Loop().Stop()
//	}))
//	go func() { <-ctx.Done(); stop.Send() }()
type Async struct {
	handleBase
	wake    bridge
	handler AsyncHandler
}

// NewAsync creates an async handle that runs handler on the loop goroutine
// after each Send.
func NewAsync(loop *Loop, handler AsyncHandler) (*Async, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	a := &Async{handler: handler, wake: bridge{fd: -1}}
	return open(loop, a, "async", func() error {
		if err := a.wake.open(loop, a.onWake); err != nil {
			return wrapErr("async_init", err)
		}
		a.setActive(true)
		return nil
	})
}

// Send schedules the handler. It is safe to call from any goroutine and
// returns ErrClosing once the handle has been closed.
func (a *Async) Send() error {
	return a.wake.signal()
}

func (a *Async) onWake() {
	if a.closing || a.handler == nil {
		return
	}
	a.handler.OnAsync(a)
}

func (a *Async) release() { a.wake.close(a.loop) }

func (a *Async) finish() { a.handler = nil }
