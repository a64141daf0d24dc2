/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package barmsg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/crrow/polyipc-go/pkg/ipcproto"
)

// ErrNoProcess is returned by SocketForPID when the pid is not running.
var ErrNoProcess = errors.New("barmsg: no process with pid")

// ErrNoChannel is returned by SocketForPID when the process has no socket.
var ErrNoChannel = errors.New("barmsg: no channel available for pid")

var procDir = "/proc"

func processExists(pid int) bool {
	_, err := os.Stat(filepath.Join(procDir, strconv.Itoa(pid)))
	return err == nil
}

// Sockets returns the sockets matching glob whose owning process is still
// running. Sockets left behind by processes that are gone are removed and
// returned in stale; a removal failure is reported in err but does not
// hide the live sockets. Paths without a pid are kept.
func Sockets(glob string) (live, stale []string, err error) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, nil, fmt.Errorf("barmsg: glob %q: %w", glob, err)
	}
	var errs []error
	for _, path := range paths {
		pid := ipcproto.PIDFromSocket(path)
		if pid <= 0 || processExists(pid) {
			live = append(live, path)
			continue
		}
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("barmsg: remove stale channel: %w", rerr))
			continue
		}
		stale = append(stale, path)
	}
	return live, stale, errors.Join(errs...)
}

// SocketForPID returns the socket of the instance running as pid.
func SocketForPID(pid int) (string, error) {
	if !processExists(pid) {
		return "", fmt.Errorf("%w %d", ErrNoProcess, pid)
	}
	path := ipcproto.SocketPath(pid)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w %d", ErrNoChannel, pid)
	}
	return path, nil
}
