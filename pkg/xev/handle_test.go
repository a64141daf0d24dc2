//go:build linux

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUnreferencedHandleStaysAlive starts a timer without keeping any
// reference to it. The loop's slot table must keep it alive through GC
// until it fires and closes itself, and must let go of it afterwards.
func TestUnreferencedHandleStaysAlive(t *testing.T) {
	loop := newTestLoop(t)

	var fired, collected atomic.Bool
	func() {
		timer, err := NewTimer(loop)
		require.NoError(t, err)
		runtime.SetFinalizer(timer, func(*Timer) { collected.Store(true) })
		require.NoError(t, timer.StartFunc(20*time.Millisecond, 0, func(tm *Timer, _ error) Action {
			fired.Store(true)
			tm.Close(nil)
			return Stop
		}))
	}()

	for i := 0; i < 5; i++ {
		runtime.GC()
	}
	assert.False(t, collected.Load(), "loop-owned handle was collected")

	require.NoError(t, loop.Run())
	assert.True(t, fired.Load())
	assert.Zero(t, loop.DebugHandleCount())

	deadline := time.Now().Add(2 * time.Second)
	for !collected.Load() && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, collected.Load(), "closed handle should become garbage")
}

func TestHandleCreatedInsideCallback(t *testing.T) {
	loop := newTestLoop(t)

	outer, err := NewTimer(loop)
	require.NoError(t, err)

	innerFired := false
	require.NoError(t, outer.StartFunc(time.Millisecond, 0, func(tm *Timer, _ error) Action {
		inner, err := NewTimer(tm.Loop())
		require.NoError(t, err)
		require.NoError(t, inner.StartFunc(time.Millisecond, 0, func(it *Timer, _ error) Action {
			innerFired = true
			it.Close(nil)
			return Stop
		}))
		tm.Close(nil)
		return Stop
	}))

	runtime.GC()
	require.NoError(t, loop.Run())
	assert.True(t, innerFired)
	assert.Zero(t, loop.DebugHandleCount())
}

func TestCloseCallbackMayCloseOtherHandles(t *testing.T) {
	loop := newTestLoop(t)

	a, err := NewTimer(loop)
	require.NoError(t, err)
	b, err := NewTimer(loop)
	require.NoError(t, err)

	var order []string
	a.Close(func(Handle) {
		order = append(order, "a")
		b.Close(func(Handle) { order = append(order, "b") })
	})
	require.NoError(t, loop.Run())
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Zero(t, loop.DebugHandleCount())
}
