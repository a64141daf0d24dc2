/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"time"

	"github.com/crrow/polyipc-go/pkg/cev"
)

// Timer fires a handler after a timeout and, optionally, at a fixed repeat
// interval afterwards. Each timer owns one timerfd.
//
// Create with [NewTimer], schedule with [Timer.Start] or [Timer.StartFunc].
type Timer struct {
	handleBase
	fd      int
	timeout time.Duration
	repeat  time.Duration
	handler TimerHandler
	armed   bool
	gen     uint64
}

// NewTimer creates a stopped timer on loop.
func NewTimer(loop *Loop) (*Timer, error) {
	t := &Timer{fd: -1}
	return open(loop, t, "timer", func() error {
		fd, err := cev.TimerOpen()
		if err != nil {
			return wrapErr("timer_init", err)
		}
		t.fd = fd
		return nil
	})
}

// Start arms the timer. The handler first runs after timeout and then every
// repeat if repeat is non-zero. Starting an armed timer restarts it.
func (t *Timer) Start(timeout, repeat time.Duration, handler TimerHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if t.closing {
		return ErrClosing
	}
	t.handler = handler
	t.timeout = timeout
	t.repeat = repeat
	return t.arm(timeout, repeat)
}

// StartFunc arms the timer with a callback function.
// This is the most common and convenient way to use timers.
//
// Return Stop to fire once, or Continue for a repeating timer.
func (t *Timer) StartFunc(timeout, repeat time.Duration, fn func(t *Timer, result error) Action) error {
	return t.Start(timeout, repeat, TimerFunc(fn))
}

// Again restarts a timer that has a repeat interval, using that interval as
// the timeout. It does nothing for timers without one.
func (t *Timer) Again() error {
	if t.closing {
		return ErrClosing
	}
	if t.handler == nil || t.repeat == 0 {
		return nil
	}
	return t.arm(t.repeat, t.repeat)
}

// SetRepeat changes the repeat interval used from the next expiry of a
// one-shot timer, or from the next [Timer.Again].
func (t *Timer) SetRepeat(repeat time.Duration) { t.repeat = repeat }

// Repeat returns the repeat interval.
func (t *Timer) Repeat() time.Duration { return t.repeat }

// Stop disarms the timer. The handler is kept for Again.
func (t *Timer) Stop() error {
	t.armed = false
	t.setActive(false)
	if t.fd < 0 {
		return nil
	}
	err := cev.TimerDisarm(t.fd)
	if t.loop.poller.Registered(t.fd) {
		if rerr := t.loop.poller.Remove(t.fd); err == nil {
			err = rerr
		}
	}
	return wrapErr("timer_stop", err)
}

func (t *Timer) arm(timeout, repeat time.Duration) error {
	if err := cev.TimerArm(t.fd, timeout, repeat); err != nil {
		return wrapErr("timer_start", err)
	}
	if !t.loop.poller.Registered(t.fd) {
		if err := t.loop.poller.Add(t.fd, cev.EventRead, t.onReady); err != nil {
			_ = cev.TimerDisarm(t.fd)
			return wrapErr("timer_start", err)
		}
	}
	t.armed = true
	t.gen++
	t.setActive(true)
	return nil
}

func (t *Timer) onReady(cev.Events) {
	count, err := cev.TimerRead(t.fd)
	if err == nil && count == 0 {
		return
	}
	gen := t.gen
	handler := t.handler
	if t.repeat == 0 {
		// A one-shot timerfd is disarmed by the kernel once it fires.
		t.armed = false
	}

	if err != nil {
		_ = t.Stop()
		handler.OnTimer(t, wrapErr("timer_read", err))
		return
	}

	action := handler.OnTimer(t, nil)
	if t.closing || t.gen != gen {
		// Closed or restarted from inside the handler.
		return
	}
	switch {
	case action == Stop:
		_ = t.Stop()
	case t.repeat == 0:
		if rerr := t.arm(t.timeout, 0); rerr != nil {
			t.loop.log.Debug().Err(rerr).Msg("loop: timer re-arm failed")
			_ = t.Stop()
		}
	case !t.armed:
		// SetRepeat was called on a one-shot timer.
		if rerr := t.arm(t.repeat, t.repeat); rerr != nil {
			_ = t.Stop()
		}
	}
}

func (t *Timer) release() {
	_ = t.Stop()
	if t.fd >= 0 {
		_ = cev.Close(t.fd)
		t.fd = -1
	}
}

func (t *Timer) finish() {
	t.handler = nil
}
