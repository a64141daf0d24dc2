/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipcproto

import (
	"errors"
	"fmt"
	"math"
)

// ErrDecoderClosed is returned by Feed once the decoder reached StateDone or StateErr.
var ErrDecoderClosed = errors.New("ipcproto: decoder closed")

// initialPayloadCap bounds the up-front allocation for a payload so that a
// header announcing a huge size cannot allocate before the bytes arrive.
const initialPayloadCap = 64 * 1024

// maxAddressable is the largest payload a slice can hold on this platform.
// On 32-bit platforms it is below the largest size a header can announce.
var maxAddressable = uint64(math.MaxInt)

// State is the framing state of one connection.
type State int

const (
	// StateWait collects header bytes.
	StateWait State = iota
	// StateRead collects payload bytes.
	StateRead
	// StateDone is terminal after end of stream.
	StateDone
	// StateErr is terminal after a protocol error.
	StateErr
)

func (s State) String() string {
	switch s {
	case StateWait:
		return "WAIT"
	case StateRead:
		return "READ"
	case StateDone:
		return "DONE"
	case StateErr:
		return "ERR"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MessageFunc receives one complete payload. The slice is owned by the callee.
type MessageFunc func(payload []byte)

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxPayload rejects headers announcing more than n payload bytes.
// Zero means no limit.
func WithMaxPayload(n uint32) DecoderOption {
	return func(d *Decoder) { d.maxPayload = n }
}

// Decoder reassembles messages from a byte stream delivered in chunks of
// any size.
//
// Feeding the same bytes in one call or one byte at a time yields the same
// messages in the same order. A header that fails validation moves the
// decoder to StateErr, after which nothing it is fed is interpreted.
type Decoder struct {
	state      State
	header     [HeaderSize]byte
	filled     int
	need       uint32
	payload    []byte
	maxPayload uint32
	err        error
	onMessage  MessageFunc
}

// NewDecoder returns a decoder in StateWait that hands each complete
// payload to onMessage.
func NewDecoder(onMessage MessageFunc, opts ...DecoderOption) *Decoder {
	d := &Decoder{onMessage: onMessage}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current state.
func (d *Decoder) State() State { return d.state }

// Err returns the error that moved the decoder to StateErr.
func (d *Decoder) Err() error { return d.err }

// Remaining returns how many bytes are still needed to complete the
// header or payload being collected.
func (d *Decoder) Remaining() int {
	switch d.state {
	case StateWait:
		return HeaderSize - d.filled
	case StateRead:
		return int(d.need) - len(d.payload)
	default:
		return 0
	}
}

// Feed consumes one chunk. It returns the protocol error that ended the
// stream, or ErrDecoderClosed if the decoder was already terminal. Messages
// completed before an error in the same chunk are still delivered.
//
// onMessage may call EOF or Fail; the rest of the chunk is then ignored.
func (d *Decoder) Feed(data []byte) error {
	if d.state == StateDone || d.state == StateErr {
		return ErrDecoderClosed
	}
	for len(data) > 0 {
		switch d.state {
		case StateWait:
			n := copy(d.header[d.filled:], data)
			d.filled += n
			data = data[n:]
			if d.filled < HeaderSize {
				return nil
			}
			if err := d.beginPayload(); err != nil {
				return err
			}
		case StateRead:
			n := min(int(d.need)-len(d.payload), len(data))
			d.payload = append(d.payload, data[:n]...)
			data = data[n:]
			if len(d.payload) == int(d.need) {
				d.dispatch()
			}
		default:
			return nil
		}
	}
	return nil
}

func (d *Decoder) beginPayload() error {
	h, err := DecodeHeader(d.header[:])
	switch {
	case err != nil:
	case d.maxPayload > 0 && h.Size > d.maxPayload:
		err = fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, h.Size, d.maxPayload)
	case uint64(h.Size) > maxAddressable:
		err = fmt.Errorf("%w: %d bytes do not fit in memory", ErrPayloadTooLarge, h.Size)
	}
	if err != nil {
		d.Fail(err)
		return err
	}
	d.filled = 0
	d.need = h.Size
	d.payload = make([]byte, 0, min(int(h.Size), initialPayloadCap))
	d.state = StateRead
	if h.Size == 0 {
		d.dispatch()
	}
	return nil
}

func (d *Decoder) dispatch() {
	msg := d.payload
	d.payload = nil
	d.need = 0
	d.state = StateWait
	if d.onMessage != nil {
		d.onMessage(msg)
	}
}

// EOF ends the stream. Any partially received header or payload is
// discarded; truncated reports whether that happened. A decoder already in
// StateErr stays there.
func (d *Decoder) EOF() (truncated bool) {
	switch d.state {
	case StateWait:
		truncated = d.filled > 0
	case StateRead:
		truncated = true
	default:
		return false
	}
	d.reset()
	d.state = StateDone
	return truncated
}

// Fail moves the decoder to StateErr with err, for transport errors
// detected outside the decoder. It does nothing once the decoder is terminal.
func (d *Decoder) Fail(err error) {
	if d.state == StateDone || d.state == StateErr {
		return
	}
	d.reset()
	d.state = StateErr
	d.err = err
}

func (d *Decoder) reset() {
	d.filled = 0
	d.need = 0
	d.payload = nil
}
