/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import "errors"

var (
	// ErrLoopRunning is returned by Run and Close while the loop is already running.
	ErrLoopRunning = errors.New("xev: loop is running")
	// ErrLoopClosed is returned when using a loop after Close.
	ErrLoopClosed = errors.New("xev: loop is closed")
	// ErrClosing is returned by operations on a handle that is closing.
	ErrClosing = errors.New("xev: handle is closing")
	// ErrNotOpen is returned by stream operations on a pipe without a descriptor.
	ErrNotOpen = errors.New("xev: pipe is not open")
	// ErrAlreadyOpen is returned when a pipe that already has a descriptor is
	// used as an accept target or opened again.
	ErrAlreadyOpen = errors.New("xev: pipe is already open")
	// ErrAlreadyActive is returned when starting an operation that is in progress.
	ErrAlreadyActive = errors.New("xev: operation already in progress")
	// ErrNoPendingConnection is returned by Accept outside OnConnection.
	ErrNoPendingConnection = errors.New("xev: no pending connection")
	// ErrShutdown is returned by Write after Shutdown.
	ErrShutdown = errors.New("xev: pipe is shut down for writing")
	// ErrEmptyBuffer is returned when a write is issued with an empty buffer.
	ErrEmptyBuffer = errors.New("xev: buffer cannot be empty")
	// ErrCanceled completes requests that were still pending when their handle closed.
	ErrCanceled = errors.New("xev: operation canceled")
	// ErrNilHandler is returned when a required handler is nil.
	ErrNilHandler = errors.New("xev: handler cannot be nil")
	// ErrPollFailed is reported to a PollHandler when its descriptor signals an error.
	ErrPollFailed = errors.New("xev: poll error condition")
)

// Error records a failed operation and the OS error that caused it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "xev: " + e.Op + ": " + e.Err.Error() }

// Unwrap returns the underlying error, usually a syscall.Errno.
func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
