//go:build linux

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package cev

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoller(t *testing.T) *Poller {
	t.Helper()
	p := &Poller{}
	require.NoError(t, p.Init())
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPollerEventfdWakeup(t *testing.T) {
	p := newPoller(t)
	efd, err := EventfdOpen()
	require.NoError(t, err)
	defer Close(efd)

	var got Events
	require.NoError(t, p.Add(efd, EventRead, func(ev Events) { got = ev }))
	assert.ErrorIs(t, p.Add(efd, EventRead, func(Events) {}), ErrAlreadyRegistered)

	n, err := p.Wait(0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	go func() { _ = EventfdSignal(efd) }()
	n, err = p.Wait(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	p.Dispatch(n)
	assert.True(t, got.Has(EventRead))

	v, err := EventfdDrain(efd)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	require.NoError(t, p.Remove(efd))
	assert.ErrorIs(t, p.Remove(efd), ErrNotRegistered)
	assert.False(t, p.Registered(efd))
}

func TestPollerStaleRegistrationSkipped(t *testing.T) {
	p := newPoller(t)
	efd, err := EventfdOpen()
	require.NoError(t, err)
	defer Close(efd)

	calls := 0
	require.NoError(t, p.Add(efd, EventRead, func(Events) { calls++ }))
	require.NoError(t, EventfdSignal(efd))

	n, err := p.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Re-register between Wait and Dispatch: the pending event belongs to
	// the old generation.
	require.NoError(t, p.Remove(efd))
	require.NoError(t, p.Add(efd, EventRead, func(Events) { calls += 10 }))
	p.Dispatch(n)
	assert.Equal(t, 0, calls)
}

func TestTimerfdExpires(t *testing.T) {
	p := newPoller(t)
	tfd, err := TimerOpen()
	require.NoError(t, err)
	defer Close(tfd)

	fired := false
	require.NoError(t, p.Add(tfd, EventRead, func(Events) { fired = true }))
	require.NoError(t, TimerArm(tfd, 5*time.Millisecond, 0))

	n, err := p.Wait(2 * time.Second)
	require.NoError(t, err)
	p.Dispatch(n)
	require.True(t, fired)

	count, err := TimerRead(tfd)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	count, err = TimerRead(tfd)
	require.NoError(t, err)
	assert.Zero(t, count)
	require.NoError(t, TimerDisarm(tfd))
}

func TestUnixSocketAcceptConnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.sock")

	lfd, err := UnixSocket()
	require.NoError(t, err)
	defer Close(lfd)
	require.NoError(t, Bind(lfd, path))
	require.NoError(t, Listen(lfd, 4))

	_, err = Accept(lfd)
	require.True(t, IsAgain(err), "nothing pending yet: %v", err)

	cfd, err := UnixSocket()
	require.NoError(t, err)
	defer Close(cfd)
	err = Connect(cfd, path)
	if err != nil {
		require.True(t, IsInProgress(err), "connect: %v", err)
	}
	require.NoError(t, SocketError(cfd))

	sfd, err := Accept(lfd)
	require.NoError(t, err)
	defer Close(sfd)

	n, err := Write(cfd, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	buf := make([]byte, 16)
	n, err = Read(sfd, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestEventsString(t *testing.T) {
	assert.Equal(t, "none", Events(0).String())
	assert.Equal(t, "read|hangup", (EventRead | EventHangup).String())
}
