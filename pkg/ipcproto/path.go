/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipcproto

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const socketSuffix = ".sock"

// RuntimeDir returns $XDG_RUNTIME_DIR/polybar, or /tmp/polybar-<uid> when
// XDG_RUNTIME_DIR is unset.
func RuntimeDir() string {
	if dir, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok {
		return filepath.Join(dir, "polybar")
	}
	return fmt.Sprintf("/tmp/polybar-%d", os.Getuid())
}

// EnsureRuntimeDir creates RuntimeDir with mode 0700 if it does not exist
// and returns it. Losing a creation race to another process is not an error.
func EnsureRuntimeDir() (string, error) {
	dir := RuntimeDir()
	if err := os.Mkdir(dir, 0o700); err != nil && !errors.Is(err, fs.ErrExist) {
		if _, statErr := os.Stat(dir); statErr != nil {
			return "", fmt.Errorf("ipcproto: create runtime dir: %w", err)
		}
	}
	return dir, nil
}

// SocketPath returns the IPC socket path for the process with the given pid.
func SocketPath(pid int) string {
	return socketPath(strconv.Itoa(pid))
}

// GlobSocketPath returns a glob matching every instance's socket.
func GlobSocketPath() string {
	return socketPath("*")
}

func socketPath(id string) string {
	return filepath.Join(RuntimeDir(), "ipc."+id+socketSuffix)
}

// PIDFromSocket extracts the pid from a path of the form ".../ipc.<pid>.sock".
// It returns -1 when the path does not carry a pid.
func PIDFromSocket(path string) int {
	stripped, ok := strings.CutSuffix(path, socketSuffix)
	if !ok {
		return -1
	}
	i := strings.LastIndexByte(stripped, '.')
	if i < 0 {
		return -1
	}
	pid, err := strconv.Atoi(stripped[i+1:])
	if err != nil {
		return -1
	}
	return pid
}
