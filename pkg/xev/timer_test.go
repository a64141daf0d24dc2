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

type countingTimer struct {
	count int
	max   int
}

func (c *countingTimer) OnTimer(t *Timer, err error) Action {
	c.count++
	if c.count >= c.max {
		t.Close(nil)
		return Stop
	}
	return Continue
}

func TestTimerOneShot(t *testing.T) {
	loop := newTestLoop(t)

	timer, err := NewTimer(loop)
	require.NoError(t, err)

	fired := 0
	start := time.Now()
	require.NoError(t, timer.StartFunc(10*time.Millisecond, 0, func(tm *Timer, result error) Action {
		require.NoError(t, result)
		fired++
		return Stop
	}))
	assert.True(t, timer.IsActive())

	require.NoError(t, loop.Run())
	assert.Equal(t, 1, fired)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.False(t, timer.IsActive())
	assert.False(t, timer.IsClosing(), "a fired timer stays open until closed")
}

func TestTimerRepeatWithHandler(t *testing.T) {
	loop := newTestLoop(t)

	timer, err := NewTimer(loop)
	require.NoError(t, err)

	h := &countingTimer{max: 3}
	require.NoError(t, timer.Start(time.Millisecond, 2*time.Millisecond, h))
	require.NoError(t, loop.Run())
	assert.Equal(t, 3, h.count)
	assert.Zero(t, loop.DebugHandleCount())
}

func TestTimerContinueRearmsOneShot(t *testing.T) {
	loop := newTestLoop(t)

	timer, err := NewTimer(loop)
	require.NoError(t, err)

	h := &countingTimer{max: 4}
	require.NoError(t, timer.Start(time.Millisecond, 0, h))
	require.NoError(t, loop.Run())
	assert.Equal(t, 4, h.count)
}

func TestTimerStopAndAgain(t *testing.T) {
	loop := newTestLoop(t)

	timer, err := NewTimer(loop)
	require.NoError(t, err)

	fired := 0
	require.NoError(t, timer.StartFunc(time.Hour, 5*time.Millisecond, func(tm *Timer, _ error) Action {
		fired++
		tm.Close(nil)
		return Stop
	}))
	require.NoError(t, timer.Stop())
	assert.False(t, timer.IsActive())

	// Again uses the repeat interval, not the hour-long timeout.
	require.NoError(t, timer.Again())
	assert.Equal(t, 5*time.Millisecond, timer.Repeat())
	require.NoError(t, loop.Run())
	assert.Equal(t, 1, fired)
}

func TestTimerRestartFromHandler(t *testing.T) {
	loop := newTestLoop(t)

	timer, err := NewTimer(loop)
	require.NoError(t, err)

	var order []string
	require.NoError(t, timer.StartFunc(time.Millisecond, 0, func(tm *Timer, _ error) Action {
		order = append(order, "first")
		require.NoError(t, tm.StartFunc(time.Millisecond, 0, func(tm *Timer, _ error) Action {
			order = append(order, "second")
			return Stop
		}))
		// Ignored: the handler restarted the timer.
		return Stop
	}))
	require.NoError(t, loop.Run())
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestTimerDoubleCloseRunsOneCallback(t *testing.T) {
	loop := newTestLoop(t)

	timer, err := NewTimer(loop)
	require.NoError(t, err)
	require.NoError(t, timer.StartFunc(time.Hour, 0, func(*Timer, error) Action { return Stop }))

	first, second := 0, 0
	timer.Close(func(h Handle) {
		assert.Same(t, timer, h)
		first++
	})
	assert.True(t, timer.IsClosing())
	assert.False(t, timer.IsActive())
	timer.Close(func(Handle) { second++ })

	assert.ErrorIs(t, timer.StartFunc(0, 0, func(*Timer, error) Action { return Stop }), ErrClosing)
	assert.Equal(t, 0, first, "close completion is asynchronous")

	require.NoError(t, loop.Run())
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Zero(t, loop.DebugHandleCount())
	assert.Nil(t, timer.handler, "callbacks are dropped on close completion")
}

func TestTimerNilHandler(t *testing.T) {
	loop := newTestLoop(t)
	timer, err := NewTimer(loop)
	require.NoError(t, err)
	assert.ErrorIs(t, timer.Start(time.Millisecond, 0, nil), ErrNilHandler)
}
