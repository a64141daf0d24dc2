//go:build linux

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package cev

import (
	"time"

	"golang.org/x/sys/unix"
)

const maxEvents = 128

type registration struct {
	cb     Callback
	events Events
	gen    int32
}

// Poller is an epoll instance with one callback per registered descriptor.
//
// Each registration carries a generation number stored alongside the fd in
// the kernel event. A callback that closes a descriptor which the kernel
// then hands back to a new registration in the same batch cannot receive
// the stale readiness of the old one.
type Poller struct {
	epfd   int
	buf    [maxEvents]unix.EpollEvent
	fds    map[int]*registration
	gen    int32
	closed bool
}

// Init creates the epoll instance.
func (p *Poller) Init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	p.fds = make(map[int]*registration)
	return nil
}

// Close releases the epoll instance. Registered descriptors are not closed.
func (p *Poller) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.fds = nil
	return unix.Close(p.epfd)
}

// Add starts watching fd for events and dispatches readiness to cb.
func (p *Poller) Add(fd int, events Events, cb Callback) error {
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; ok {
		return ErrAlreadyRegistered
	}
	p.gen++
	r := &registration{cb: cb, events: events, gen: p.gen}
	ev := unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd), Pad: r.gen}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.fds[fd] = r
	return nil
}

// Modify replaces the interest set of a registered descriptor.
func (p *Poller) Modify(fd int, events Events) error {
	if p.closed {
		return ErrPollerClosed
	}
	r, ok := p.fds[fd]
	if !ok {
		return ErrNotRegistered
	}
	if r.events == events {
		return nil
	}
	ev := unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd), Pad: r.gen}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return err
	}
	r.events = events
	return nil
}

// Remove stops watching fd. It must be called before the descriptor is closed.
func (p *Poller) Remove(fd int) error {
	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.fds[fd]; !ok {
		return ErrNotRegistered
	}
	delete(p.fds, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Registered reports whether fd is currently watched.
func (p *Poller) Registered(fd int) bool {
	_, ok := p.fds[fd]
	return ok
}

// Len returns the number of watched descriptors.
func (p *Poller) Len() int { return len(p.fds) }

// Wait blocks until at least one descriptor is ready or timeout elapses.
// A negative timeout blocks indefinitely. EINTR is reported as zero events.
func (p *Poller) Wait(timeout time.Duration) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, p.buf[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Dispatch runs the callbacks for the first n events returned by Wait.
// Callbacks may add, modify or remove registrations, including their own.
func (p *Poller) Dispatch(n int) {
	for i := 0; i < n; i++ {
		ev := p.buf[i]
		r, ok := p.fds[int(ev.Fd)]
		if !ok || r.gen != ev.Pad {
			continue
		}
		r.cb(epollToEvents(ev.Events))
	}
}

func eventsToEpoll(events Events) uint32 {
	var ep uint32
	if events&EventRead != 0 {
		ep |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&EventWrite != 0 {
		ep |= unix.EPOLLOUT
	}
	return ep
}

func epollToEvents(ep uint32) Events {
	var events Events
	if ep&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if ep&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if ep&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if ep&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= EventHangup
	}
	return events
}
