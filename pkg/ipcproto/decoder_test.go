/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipcproto

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	msgs []string
}

func (c *collector) onMessage(payload []byte) {
	c.msgs = append(c.msgs, string(payload))
}

func mustEncode(t *testing.T, payload string) []byte {
	t.Helper()
	b, err := EncodeString(payload)
	require.NoError(t, err)
	return b
}

func rawHeader(magic string, version byte, size uint32) []byte {
	b := append([]byte(magic), version)
	return binary.LittleEndian.AppendUint32(b, size)
}

func TestEncodeWireLayout(t *testing.T) {
	got := mustEncode(t, "ab")
	want := []byte("polyipc\x00\x02\x00\x00\x00ab")
	assert.Equal(t, want, got)

	h, err := DecodeHeader(got)
	require.NoError(t, err)
	assert.Equal(t, NewHeader(2), h)

	_, err = DecodeHeader(got[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestDecoderSingleMessage(t *testing.T) {
	var c collector
	d := NewDecoder(c.onMessage)

	require.NoError(t, d.Feed(mustEncode(t, "cmd:restart")))
	assert.Equal(t, []string{"cmd:restart"}, c.msgs)
	assert.Equal(t, StateWait, d.State())
	assert.Equal(t, HeaderSize, d.Remaining())
}

func TestDecoderRejectsBadMagic(t *testing.T) {
	var c collector
	d := NewDecoder(c.onMessage)

	err := d.Feed(append(rawHeader("0000000", 0, 3), "foo"...))
	require.ErrorIs(t, err, ErrBadMagic)
	assert.Equal(t, StateErr, d.State())
	assert.ErrorIs(t, d.Err(), ErrBadMagic)
	assert.Empty(t, c.msgs)

	assert.ErrorIs(t, d.Feed(mustEncode(t, "later")), ErrDecoderClosed)
	assert.Empty(t, c.msgs)
}

func TestDecoderRejectsBadVersion(t *testing.T) {
	var c collector
	d := NewDecoder(c.onMessage)

	err := d.Feed(append(rawHeader("polyipc", 120, 3), "foo"...))
	require.ErrorIs(t, err, ErrBadVersion)
	assert.Equal(t, StateErr, d.State())
	assert.Empty(t, c.msgs)
}

func TestDecoderIgnoresBytesAfterErrorInSameChunk(t *testing.T) {
	var c collector
	d := NewDecoder(c.onMessage)

	var wire []byte
	wire = append(wire, mustEncode(t, "first")...)
	wire = append(wire, rawHeader("polyipx", 0, 1)...)
	wire = append(wire, 'x')
	wire = append(wire, mustEncode(t, "never")...)

	err := d.Feed(wire)
	require.ErrorIs(t, err, ErrBadMagic)
	assert.Equal(t, []string{"first"}, c.msgs)
}

func TestDecoderByteByByte(t *testing.T) {
	payloads := []string{"cmd:show", "", "action:#date.toggle", "hook:module/demo1"}
	var wire []byte
	for _, p := range payloads {
		wire = append(wire, mustEncode(t, p)...)
	}

	var whole collector
	require.NoError(t, NewDecoder(whole.onMessage).Feed(wire))

	var single collector
	d := NewDecoder(single.onMessage)
	for i := range wire {
		require.NoError(t, d.Feed(wire[i:i+1]))
	}

	assert.Equal(t, payloads, whole.msgs)
	assert.Equal(t, whole.msgs, single.msgs)
	assert.Equal(t, StateWait, d.State())
}

func TestDecoderManyMessagesInOneChunk(t *testing.T) {
	msg := append(rawHeader("polyipc", 0, 6), "foobar"...)
	require.Len(t, msg, 18)

	var c collector
	d := NewDecoder(c.onMessage)
	require.NoError(t, d.Feed(bytes.Repeat(msg, 10)))

	assert.Len(t, c.msgs, 10)
	for _, m := range c.msgs {
		assert.Equal(t, "foobar", m)
	}
	assert.Equal(t, StateWait, d.State())
	assert.Equal(t, HeaderSize, d.Remaining())
}

func TestDecoderRejectsSizeBeyondAddressable(t *testing.T) {
	saved := maxAddressable
	maxAddressable = 16
	t.Cleanup(func() { maxAddressable = saved })

	var c collector
	d := NewDecoder(c.onMessage)
	wire := append(rawHeader("polyipc", 0, 17), make([]byte, 17)...)
	assert.ErrorIs(t, d.Feed(wire), ErrPayloadTooLarge)
	assert.Equal(t, StateErr, d.State())
	assert.Empty(t, c.msgs)

	d = NewDecoder(c.onMessage)
	require.NoError(t, d.Feed(append(rawHeader("polyipc", 0, 16), make([]byte, 16)...)))
	assert.Len(t, c.msgs, 1)
}

func TestDecoderRepeatedMessages(t *testing.T) {
	var c collector
	d := NewDecoder(c.onMessage)

	var want []string
	for i := 0; i < 10; i++ {
		p := "cmd:msg-" + strconv.Itoa(i)
		want = append(want, p)
		require.NoError(t, d.Feed(mustEncode(t, p)))
	}
	assert.Equal(t, want, c.msgs)
}

func TestDecoderRandomChunking(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var want []string
	var wire []byte
	for i := 0; i < 200; i++ {
		b := make([]byte, rng.Intn(300))
		for j := range b {
			b[j] = byte(rng.Intn(256))
		}
		want = append(want, string(b))
		wire = append(wire, mustEncode(t, string(b))...)
	}

	var c collector
	d := NewDecoder(c.onMessage)
	for rest := wire; len(rest) > 0; {
		n := min(1+rng.Intn(64), len(rest))
		require.NoError(t, d.Feed(rest[:n]))
		rest = rest[n:]
	}
	assert.Equal(t, want, c.msgs)
	assert.False(t, d.EOF())
}

func TestDecoderZeroLengthPayload(t *testing.T) {
	calls := 0
	d := NewDecoder(func(payload []byte) {
		calls++
		assert.Empty(t, payload)
	})

	require.NoError(t, d.Feed(rawHeader("polyipc", 0, 0)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateWait, d.State())
}

func TestDecoderEOF(t *testing.T) {
	full := mustEncode(t, "payload")

	tests := []struct {
		name      string
		input     []byte
		truncated bool
	}{
		{name: "clean", input: full, truncated: false},
		{name: "empty", input: nil, truncated: false},
		{name: "partial header", input: full[:5], truncated: true},
		{name: "partial payload", input: full[:HeaderSize+3], truncated: true},
		{name: "header only", input: full[:HeaderSize], truncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c collector
			d := NewDecoder(c.onMessage)
			require.NoError(t, d.Feed(tt.input))
			assert.Equal(t, tt.truncated, d.EOF())
			assert.Equal(t, StateDone, d.State())
			assert.Equal(t, 0, d.Remaining())
			assert.ErrorIs(t, d.Feed(full), ErrDecoderClosed)
		})
	}
}

func TestDecoderEOFKeepsErrState(t *testing.T) {
	d := NewDecoder(nil)
	require.Error(t, d.Feed(rawHeader("polyipc", 1, 0)))
	assert.False(t, d.EOF())
	assert.Equal(t, StateErr, d.State())
}

func TestDecoderMaxPayload(t *testing.T) {
	var c collector
	d := NewDecoder(c.onMessage, WithMaxPayload(4))

	require.NoError(t, d.Feed(mustEncode(t, "1234")))
	err := d.Feed(mustEncode(t, "12345"))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Equal(t, []string{"1234"}, c.msgs)
	assert.Equal(t, StateErr, d.State())
}

func TestDecoderLargeAnnouncedSizeDoesNotPreallocate(t *testing.T) {
	d := NewDecoder(nil)
	require.NoError(t, d.Feed(rawHeader("polyipc", 0, 1<<31)))
	assert.Equal(t, StateRead, d.State())
	assert.Equal(t, 1<<31, d.Remaining())
	assert.LessOrEqual(t, cap(d.payload), initialPayloadCap)
	assert.True(t, d.EOF())
}

func TestDecoderCallbackMayEndStream(t *testing.T) {
	var got []string
	var d *Decoder
	d = NewDecoder(func(payload []byte) {
		got = append(got, string(payload))
		d.EOF()
	})

	wire := append(mustEncode(t, "one"), mustEncode(t, "two")...)
	require.NoError(t, d.Feed(wire))
	assert.Equal(t, []string{"one"}, got)
	assert.Equal(t, StateDone, d.State())
}

func TestDecoderPayloadIsFreshSlice(t *testing.T) {
	var kept [][]byte
	d := NewDecoder(func(payload []byte) { kept = append(kept, payload) })

	require.NoError(t, d.Feed(mustEncode(t, "aaaa")))
	require.NoError(t, d.Feed(mustEncode(t, "bbbb")))
	require.Len(t, kept, 2)
	assert.True(t, bytes.Equal(kept[0], []byte("aaaa")))
	assert.True(t, bytes.Equal(kept[1], []byte("bbbb")))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "WAIT", StateWait.String())
	assert.Equal(t, "READ", StateRead.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "ERR", StateErr.String())
	assert.Equal(t, "State(9)", State(9).String())
}
