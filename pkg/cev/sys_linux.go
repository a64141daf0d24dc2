//go:build linux

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package cev

import (
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// Read reads from fd, retrying on EINTR.
func Read(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// Write writes to fd, retrying on EINTR. It may write fewer bytes than len(buf).
func Write(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Write(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// Close closes fd.
func Close(fd int) error { return unix.Close(fd) }

// SetNonblock puts fd into non-blocking mode.
func SetNonblock(fd int) error { return unix.SetNonblock(fd, true) }

// IsAgain reports whether err means the operation would block.
func IsAgain(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// IsInProgress reports whether a non-blocking connect is still pending.
func IsInProgress(err error) bool {
	return errors.Is(err, unix.EINPROGRESS)
}

// TimerOpen creates a non-blocking monotonic timerfd.
func TimerOpen() (int, error) {
	return unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
}

// TimerArm arms a timerfd to expire after timeout and then every repeat.
// A zero repeat makes it one-shot. A zero timeout expires on the next poll.
func TimerArm(fd int, timeout, repeat time.Duration) error {
	if timeout <= 0 {
		// An all-zero value disarms a timerfd.
		timeout = time.Nanosecond
	}
	spec := unix.ItimerSpec{
		Value:    unix.NsecToTimespec(int64(timeout)),
		Interval: unix.NsecToTimespec(int64(repeat)),
	}
	return unix.TimerfdSettime(fd, 0, &spec, nil)
}

// TimerDisarm stops a timerfd.
func TimerDisarm(fd int) error {
	var spec unix.ItimerSpec
	return unix.TimerfdSettime(fd, 0, &spec, nil)
}

// TimerRead consumes the expiration count of a timerfd. It returns zero when
// the timer has not expired since the last read.
func TimerRead(fd int) (uint64, error) {
	return readCounter(fd)
}

// EventfdOpen creates a non-blocking eventfd used as a cross-goroutine wakeup.
func EventfdOpen() (int, error) {
	return unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
}

// EventfdSignal increments the eventfd counter. Safe from any goroutine.
func EventfdSignal(fd int) error {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	_, err := Write(fd, b[:])
	if IsAgain(err) {
		// Counter saturated: a wakeup is already pending.
		return nil
	}
	return err
}

// EventfdDrain resets the eventfd counter and returns its previous value.
func EventfdDrain(fd int) (uint64, error) {
	return readCounter(fd)
}

func readCounter(fd int) (uint64, error) {
	var b [8]byte
	n, err := Read(fd, b[:])
	if err != nil {
		if IsAgain(err) {
			return 0, nil
		}
		return 0, err
	}
	if n != len(b) {
		return 0, unix.EIO
	}
	return binary.NativeEndian.Uint64(b[:]), nil
}

// UnixSocket creates a non-blocking AF_UNIX stream socket.
func UnixSocket() (int, error) {
	return unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
}

// Bind binds a unix socket to a filesystem path.
func Bind(fd int, path string) error {
	return unix.Bind(fd, &unix.SockaddrUnix{Name: path})
}

// Listen marks a bound socket as accepting connections.
func Listen(fd, backlog int) error { return unix.Listen(fd, backlog) }

// Accept takes one pending connection off a listening socket. The returned
// descriptor is non-blocking. It fails with EAGAIN when nothing is pending.
func Accept(fd int) (int, error) {
	for {
		nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == unix.EINTR || err == unix.ECONNABORTED {
			continue
		}
		return nfd, err
	}
}

// Connect starts connecting a unix socket to path. A non-blocking socket may
// return an error matched by IsInProgress, in which case completion is
// signalled by writability and the result read with SocketError.
func Connect(fd int, path string) error {
	for {
		err := unix.Connect(fd, &unix.SockaddrUnix{Name: path})
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// SocketError returns the pending error on a socket (SO_ERROR), or nil.
func SocketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

// ShutdownWrite shuts down the sending side of a socket.
func ShutdownWrite(fd int) error { return unix.Shutdown(fd, unix.SHUT_WR) }

// Mkfifo creates a named pipe at path.
func Mkfifo(path string, mode uint32) error { return unix.Mkfifo(path, mode) }

// OpenFIFO opens the read end of a named pipe without blocking for a writer.
func OpenFIFO(path string) (int, error) {
	return unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
}
