//go:build linux

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package barmsg

import (
	"errors"
	"net"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/polyipc-go/pkg/ipc"
	"github.com/crrow/polyipc-go/pkg/xev"
)

// startServer runs an ipc.Server on its own goroutine and returns the
// socket path, the received payloads and a function stopping the server.
func startServer(t *testing.T) (string, <-chan string, func()) {
	t.Helper()
	loop, err := xev.NewLoop()
	require.NoError(t, err)

	msgs := make(chan string, 16)
	path := filepath.Join(t.TempDir(), "ipc.1.sock")
	srv, err := ipc.Listen(loop, path, ipc.WithHandler(ipc.HandlerFunc(func(p []byte) {
		msgs <- string(p)
	})))
	require.NoError(t, err)

	stopper, err := xev.NewAsync(loop, xev.AsyncFunc(func(a *xev.Async) {
		srv.Close(nil)
		a.Close(nil)
	}))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()
	return path, msgs, func() {
		require.NoError(t, stopper.Send())
		require.NoError(t, <-done)
		require.NoError(t, loop.Close())
	}
}

func TestSenderDeliversAndReportsFailures(t *testing.T) {
	path, msgs, stop := startServer(t)
	defer stop()
	missing := filepath.Join(t.TempDir(), "ipc.2.sock")

	err := NewSender(WithTimeout(5*time.Second)).Send([]string{path, missing}, "cmd:restart")
	require.Error(t, err)

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, missing, sendErr.Path)
	assert.ErrorIs(t, err, syscall.ENOENT)

	select {
	case got := <-msgs:
		assert.Equal(t, "cmd:restart", got)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestSenderMultipleInstances(t *testing.T) {
	path1, msgs1, stop1 := startServer(t)
	defer stop1()
	path2, msgs2, stop2 := startServer(t)
	defer stop2()

	require.NoError(t, NewSender().Send([]string{path1, path2}, "action:#date.toggle"))
	assert.Equal(t, "action:#date.toggle", <-msgs1)
	assert.Equal(t, "action:#date.toggle", <-msgs2)
}

func TestSenderTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.3.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	start := time.Now()
	err = NewSender(WithTimeout(50*time.Millisecond)).Send([]string{path}, "cmd:hide")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSenderNoChannels(t *testing.T) {
	assert.ErrorIs(t, NewSender().Send(nil, "cmd:quit"), ErrNoChannels)
}
