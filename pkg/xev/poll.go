/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import "github.com/crrow/polyipc-go/pkg/cev"

// Events is a bitmask of readiness conditions.
type Events = cev.Events

// Readiness conditions reported to a [PollHandler].
const (
	EventRead   = cev.EventRead
	EventWrite  = cev.EventWrite
	EventError  = cev.EventError
	EventHangup = cev.EventHangup
)

// Poll watches an externally owned file descriptor for readiness. The
// descriptor is not closed when the handle is.
type Poll struct {
	handleBase
	fd      int
	events  Events
	handler PollHandler
}

// NewPoll creates a poll handle for fd.
func NewPoll(loop *Loop, fd int) (*Poll, error) {
	p := &Poll{fd: fd}
	return open(loop, p, "poll", nil)
}

// Start watches for events (EventRead and/or EventWrite). Calling Start on
// a started handle changes the event set and handler.
func (p *Poll) Start(events Events, handler PollHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if p.closing {
		return ErrClosing
	}
	var err error
	if p.loop.poller.Registered(p.fd) {
		err = p.loop.poller.Modify(p.fd, events)
	} else {
		err = p.loop.poller.Add(p.fd, events, p.onReady)
	}
	if err != nil {
		return wrapErr("poll_start", err)
	}
	p.events = events
	p.handler = handler
	p.setActive(true)
	return nil
}

// StartFunc watches for events with a callback function.
func (p *Poll) StartFunc(events Events, fn func(p *Poll, events Events, err error) Action) error {
	return p.Start(events, PollFunc(fn))
}

// Stop stops watching the descriptor.
func (p *Poll) Stop() error {
	p.setActive(false)
	if !p.loop.poller.Registered(p.fd) {
		return nil
	}
	return wrapErr("poll_stop", p.loop.poller.Remove(p.fd))
}

// Fd returns the watched descriptor.
func (p *Poll) Fd() int { return p.fd }

func (p *Poll) onReady(events Events) {
	handler := p.handler
	if events&EventError != 0 {
		p.Close(nil)
		handler.OnPoll(p, events, ErrPollFailed)
		return
	}
	if handler.OnPoll(p, events, nil) == Stop && !p.closing {
		_ = p.Stop()
	}
}

func (p *Poll) release() { _ = p.Stop() }

func (p *Poll) finish() { p.handler = nil }
