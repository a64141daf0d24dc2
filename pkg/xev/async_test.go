//go:build linux

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncSendFromOtherGoroutine(t *testing.T) {
	loop := newTestLoop(t)

	calls := 0
	async, err := NewAsync(loop, AsyncFunc(func(a *Async) {
		calls++
		a.Close(nil)
	}))
	require.NoError(t, err)
	assert.True(t, async.IsActive())

	go func() { _ = async.Send() }()
	require.NoError(t, loop.Run())
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, async.Send(), ErrClosing)
}

func TestAsyncSendsCoalesce(t *testing.T) {
	loop := newTestLoop(t)

	calls := 0
	async, err := NewAsync(loop, AsyncFunc(func(a *Async) {
		calls++
		a.Close(nil)
	}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = async.Send()
		}()
	}
	wg.Wait()

	require.NoError(t, loop.Run())
	assert.Equal(t, 1, calls)
}

func TestAsyncNilHandler(t *testing.T) {
	loop := newTestLoop(t)
	_, err := NewAsync(loop, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
	assert.Zero(t, loop.DebugHandleCount())
}
