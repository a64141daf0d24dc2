//go:build linux

/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	loop, err := NewLoop()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	return loop
}

func TestLoopRunWithoutHandlesReturns(t *testing.T) {
	loop := newTestLoop(t)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked with nothing to do")
	}
}

func TestLoopNowCachedPerIteration(t *testing.T) {
	loop := newTestLoop(t)

	var seen []time.Duration
	for i := 0; i < 2; i++ {
		timer, err := NewTimer(loop)
		require.NoError(t, err)
		require.NoError(t, timer.StartFunc(0, 0, func(tm *Timer, err error) Action {
			require.NoError(t, err)
			seen = append(seen, tm.Loop().Now())
			time.Sleep(5 * time.Millisecond)
			tm.Close(nil)
			return Stop
		}))
	}
	require.NoError(t, loop.Run())

	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1], "callbacks of one iteration share the same now")

	before := loop.Now()
	time.Sleep(2 * time.Millisecond)
	loop.UpdateNow()
	assert.Greater(t, loop.Now(), before)
}

func TestLoopStopFromCallback(t *testing.T) {
	loop := newTestLoop(t)

	timer, err := NewTimer(loop)
	require.NoError(t, err)
	fired := 0
	require.NoError(t, timer.StartFunc(time.Millisecond, time.Millisecond, func(tm *Timer, _ error) Action {
		fired++
		tm.Loop().Stop()
		return Continue
	}))

	require.NoError(t, loop.Run())
	assert.Equal(t, 1, fired)
	assert.True(t, timer.IsActive(), "Stop leaves handles alone")

	require.NoError(t, loop.Run())
	assert.Equal(t, 2, fired, "a stopped loop can be run again")
}

func TestLoopRunIsNotReentrant(t *testing.T) {
	loop := newTestLoop(t)

	timer, err := NewTimer(loop)
	require.NoError(t, err)
	var inner error
	require.NoError(t, timer.StartFunc(0, 0, func(tm *Timer, _ error) Action {
		inner = tm.Loop().Run()
		return Stop
	}))
	require.NoError(t, loop.Run())
	assert.ErrorIs(t, inner, ErrLoopRunning)
}

func TestLoopCloseClosesEveryHandle(t *testing.T) {
	loop, err := NewLoop()
	require.NoError(t, err)

	closed := 0
	for i := 0; i < 3; i++ {
		timer, err := NewTimer(loop)
		require.NoError(t, err)
		require.NoError(t, timer.StartFunc(time.Hour, 0, func(*Timer, error) Action { return Stop }))
	}
	async, err := NewAsync(loop, AsyncFunc(func(*Async) {}))
	require.NoError(t, err)
	pipe, err := NewPipe(loop)
	require.NoError(t, err)
	pipe.Close(func(Handle) { closed++ })

	var kinds []string
	loop.Walk(func(h Handle) { kinds = append(kinds, h.Kind()) })
	assert.Equal(t, []string{"timer", "timer", "timer", "async", "pipe"}, kinds)

	require.NoError(t, loop.Close())
	assert.Equal(t, 1, closed)
	assert.True(t, async.IsClosing())
	assert.Zero(t, loop.DebugHandleCount())

	_, err = NewTimer(loop)
	assert.ErrorIs(t, err, ErrLoopClosed)
	assert.ErrorIs(t, loop.Run(), ErrLoopClosed)
	assert.NoError(t, loop.Close(), "closing twice is harmless")
}
