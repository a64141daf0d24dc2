/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Package cev provides the low-level operating system backend for the xev
// event loop.
//
// It owns every raw syscall the loop needs and nothing else: an epoll
// readiness poller, timerfd and eventfd helpers, AF_UNIX stream sockets,
// named pipes, and the slot table the loop uses to keep handles alive. The
// higher-level xev package never imports golang.org/x/sys directly.
//
// # Architecture
//
//	┌──────────────────────────────────────┐
//	│  xev (handles, callbacks, lifetime)  │
//	├──────────────────────────────────────┤
//	│  cev (poller, fds, slot table)       │  <- This package
//	├──────────────────────────────────────┤
//	│  golang.org/x/sys/unix               │
//	├──────────────────────────────────────┤
//	│  epoll / timerfd / eventfd / AF_UNIX │
//	└──────────────────────────────────────┘
//
// Linux is the only supported platform. On other platforms every function
// returns [ErrUnsupported] so the rest of the module still compiles.
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use except
// [EventfdSignal], which may be called from any goroutine to wake a loop.
package cev

import "errors"

// Events is a bitmask of readiness conditions on a file descriptor.
type Events uint32

const (
	// EventRead means the descriptor is readable (or a listener has a
	// pending connection).
	EventRead Events = 1 << iota
	// EventWrite means the descriptor is writable (or a connect finished).
	EventWrite
	// EventError reports an error condition. Always delivered, never requested.
	EventError
	// EventHangup reports that the peer closed. Always delivered, never requested.
	EventHangup
)

// Has reports whether all bits of o are set in e.
func (e Events) Has(o Events) bool { return e&o == o }

// String renders the mask for logs.
func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	s := ""
	add := func(bit Events, name string) {
		if e&bit == 0 {
			return
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	add(EventRead, "read")
	add(EventWrite, "write")
	add(EventError, "error")
	add(EventHangup, "hangup")
	return s
}

// Callback receives the readiness mask of a registered descriptor.
type Callback func(Events)

var (
	// ErrUnsupported is returned on platforms without an epoll backend.
	ErrUnsupported = errors.New("cev: platform not supported")
	// ErrPollerClosed is returned after Close.
	ErrPollerClosed = errors.New("cev: poller closed")
	// ErrAlreadyRegistered is returned by Add for a descriptor already being watched.
	ErrAlreadyRegistered = errors.New("cev: fd already registered")
	// ErrNotRegistered is returned by Modify and Remove for unknown descriptors.
	ErrNotRegistered = errors.New("cev: fd not registered")
)
