/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Package xev provides a single-threaded, callback-driven event loop with a
// Go-idiomatic handle API.
//
// The package wraps the low-level cev backend with:
//   - Go-style error handling (error returns instead of error codes)
//   - time.Duration instead of raw milliseconds
//   - Handler interfaces and functional callbacks
//   - Handles that keep themselves alive until their close completes
//
// # Quick Start
//
//	loop, _ := xev.NewLoop()
//	defer loop.Close()
//
//	timer, _ := xev.NewTimer(loop)
//	timer.StartFunc(100*time.Millisecond, 0, func(t *xev.Timer, err error) xev.Action {
//	    fmt.Println("Timer fired!")
//	    t.Close(nil)
//	    return xev.Stop
//	})
//
//	loop.Run()
//
// # Handle Lifetime
//
// Every handle is registered in its loop when created and stays alive
// whether or not the caller keeps a reference. [Handle.Close] is the only
// way to end a handle: it releases the OS resource at once and delivers the
// close callback on a later loop iteration, after which the loop forgets the
// handle and drops all of its callbacks.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│  Your Application                   │
//	├─────────────────────────────────────┤
//	│  xev (handles, callbacks)           │  <- This package
//	├─────────────────────────────────────┤
//	│  cev (epoll, timerfd, eventfd, fds) │
//	├─────────────────────────────────────┤
//	│  golang.org/x/sys/unix              │
//	└─────────────────────────────────────┘
//
// # Thread Safety
//
// A loop and its handles belong to the goroutine that calls [Loop.Run].
// The only method safe to call from other goroutines is [Async.Send].
package xev

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/crrow/polyipc-go/pkg/cev"
)

// DefaultReadBufferSize is the size of the loop's shared read buffer.
const DefaultReadBufferSize = 64 * 1024

type runMode int

const (
	runDefault runMode = iota
	runOnce
	runNoWait
)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLogger sets the logger used for loop diagnostics.
func WithLogger(log zerolog.Logger) LoopOption {
	return func(l *Loop) { l.log = log }
}

// WithReadBufferSize sets the size of the buffer passed to [ReadHandler.OnData].
func WithReadBufferSize(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.readBuf = make([]byte, n)
		}
	}
}

// Loop is a single-threaded reactor owning one epoll instance and every
// handle created on it.
type Loop struct {
	poller  cev.Poller
	handles cev.Table[Handle]
	active  int
	pending []func()
	closing []*handleBase
	readBuf []byte
	log     zerolog.Logger

	start    time.Time
	now      time.Duration
	stopFlag bool
	running  bool
	closed   bool
}

// NewLoop creates and initializes a new event loop.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	l := &Loop{log: zerolog.Nop(), start: time.Now()}
	for _, opt := range opts {
		opt(l)
	}
	if l.readBuf == nil {
		l.readBuf = make([]byte, DefaultReadBufferSize)
	}
	if err := l.poller.Init(); err != nil {
		return nil, wrapErr("loop_init", err)
	}
	return l, nil
}

// Run processes events until [Loop.Stop] is called or nothing is left to
// wait for: no active handle, no pending close and no pending completion.
func (l *Loop) Run() error {
	return l.run(runDefault)
}

// RunOnce blocks until at least one event is ready, processes it, then returns.
// Useful for integrating with other event sources or custom loop logic.
func (l *Loop) RunOnce() error {
	return l.run(runOnce)
}

// Poll processes whatever is ready without blocking.
func (l *Loop) Poll() error {
	return l.run(runNoWait)
}

// Stop makes the current Run return after the iteration in progress.
// It must be called from a callback on the loop goroutine; use an [Async]
// handle to stop a loop from elsewhere.
func (l *Loop) Stop() {
	l.stopFlag = true
}

// Now returns the loop's cached monotonic time, measured from loop creation.
// The value is sampled once per iteration, so every callback of the same
// iteration observes the same instant.
func (l *Loop) Now() time.Duration {
	return l.now
}

// UpdateNow re-samples the cached time.
func (l *Loop) UpdateNow() {
	l.now = time.Since(l.start)
}

// Alive reports whether Run would block waiting for something.
func (l *Loop) Alive() bool {
	return l.active > 0 || len(l.closing) > 0 || len(l.pending) > 0
}

// Walk calls fn for every handle registered on the loop, including handles
// that are closing, in creation order.
func (l *Loop) Walk(fn func(h Handle)) {
	l.handles.Each(func(_ cev.ID, h Handle) bool {
		fn(h)
		return true
	})
}

// DebugHandleCount returns the number of handles the loop still owns.
// It drops to zero once every handle has been closed and its close
// completion has run.
func (l *Loop) DebugHandleCount() int {
	return l.handles.Len()
}

// Close closes every handle, runs the loop until all close completions
// have been delivered, then releases the epoll instance.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}
	if l.running {
		return ErrLoopRunning
	}
	l.Walk(func(h Handle) { h.Close(nil) })
	for len(l.pending) > 0 || len(l.closing) > 0 {
		l.runPending()
		l.runClosing()
	}
	l.closed = true
	if err := l.poller.Close(); err != nil {
		return wrapErr("loop_close", err)
	}
	return nil
}

func (l *Loop) run(mode runMode) error {
	if l.closed {
		return ErrLoopClosed
	}
	if l.running {
		return ErrLoopRunning
	}
	l.running = true
	defer func() {
		l.running = false
		l.stopFlag = false
	}()

	l.UpdateNow()
	for l.Alive() && !l.stopFlag {
		l.runPending()

		timeout := time.Duration(-1)
		if mode == runNoWait || l.active == 0 || len(l.pending) > 0 || len(l.closing) > 0 || l.stopFlag {
			timeout = 0
		}
		n, err := l.poller.Wait(timeout)
		if err != nil {
			return wrapErr("poll", err)
		}
		l.UpdateNow()
		l.poller.Dispatch(n)

		l.runPending()
		l.runClosing()

		if mode != runDefault {
			break
		}
	}
	return nil
}

// queue defers fn to the next completion pass of the loop. It is how
// results that are known immediately are still delivered asynchronously.
func (l *Loop) queue(fn func()) {
	l.pending = append(l.pending, fn)
}

func (l *Loop) runPending() {
	if len(l.pending) == 0 {
		return
	}
	batch := l.pending
	l.pending = nil
	for _, fn := range batch {
		fn()
	}
}

func (l *Loop) runClosing() {
	for len(l.closing) > 0 {
		batch := l.closing
		l.closing = nil
		for _, h := range batch {
			h.finishClose()
		}
	}
}
