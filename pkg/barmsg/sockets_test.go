/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package barmsg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/polyipc-go/pkg/ipcproto"
)

func fakeProc(t *testing.T, pids ...string) {
	t.Helper()
	dir := t.TempDir()
	for _, pid := range pids {
		require.NoError(t, os.Mkdir(filepath.Join(dir, pid), 0o755))
	}
	old := procDir
	procDir = dir
	t.Cleanup(func() { procDir = old })
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, nil, 0o600))
}

func TestSocketsRemovesStaleChannels(t *testing.T) {
	fakeProc(t, "100")
	dir := t.TempDir()
	live := filepath.Join(dir, "ipc.100.sock")
	stale := filepath.Join(dir, "ipc.200.sock")
	odd := filepath.Join(dir, "ipc.x.sock")
	for _, p := range []string{live, stale, odd} {
		touch(t, p)
	}

	gotLive, gotStale, err := Sockets(filepath.Join(dir, "ipc.*.sock"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{live, odd}, gotLive)
	assert.Equal(t, []string{stale}, gotStale)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, live)
}

func TestSocketsBadGlob(t *testing.T) {
	_, _, err := Sockets("[")
	assert.Error(t, err)
}

func TestSocketForPID(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	fakeProc(t, "100", "300")
	dir, err := ipcproto.EnsureRuntimeDir()
	require.NoError(t, err)
	touch(t, filepath.Join(dir, "ipc.100.sock"))

	path, err := SocketForPID(100)
	require.NoError(t, err)
	assert.Equal(t, ipcproto.SocketPath(100), path)

	_, err = SocketForPID(200)
	assert.ErrorIs(t, err, ErrNoProcess)
	_, err = SocketForPID(300)
	assert.ErrorIs(t, err, ErrNoChannel)
}
