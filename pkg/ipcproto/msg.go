/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package ipcproto implements the framing used on the bar's IPC socket.
//
// Every message is a fixed 12-byte header followed by an opaque payload:
//
//	offset  size  field
//	0       7     magic "polyipc"
//	7       1     version, currently 0
//	8       4     payload length, little-endian uint32
//	12      n     payload
//
// The header layout and magic never change. Receivers reject any header
// whose magic or version does not match exactly.
package ipcproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize is the size of the fixed message header in bytes.
const HeaderSize = 12

// Version is the only header version this package speaks.
const Version uint8 = 0

// Magic prefixes every message.
var Magic = [7]byte{'p', 'o', 'l', 'y', 'i', 'p', 'c'}

var (
	// ErrBadMagic means the first seven header bytes are not "polyipc".
	ErrBadMagic = errors.New("ipcproto: invalid magic header")
	// ErrBadVersion means the header carries an unsupported version.
	ErrBadVersion = errors.New("ipcproto: unsupported message version")
	// ErrShortHeader means fewer than HeaderSize bytes were supplied.
	ErrShortHeader = errors.New("ipcproto: short header")
	// ErrPayloadTooLarge means a payload exceeds the configured or encodable limit.
	ErrPayloadTooLarge = errors.New("ipcproto: payload too large")
)

// Header is the decoded fixed-size message header.
type Header struct {
	Magic   [7]byte
	Version uint8
	Size    uint32
}

// NewHeader returns a valid header announcing a payload of size bytes.
func NewHeader(size uint32) Header {
	return Header{Magic: Magic, Version: Version, Size: size}
}

// Validate checks magic first, then version.
func (h Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: %q", ErrBadMagic, h.Magic[:])
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	return nil
}

// AppendTo appends the wire form of h to dst.
func (h Header) AppendTo(dst []byte) []byte {
	dst = append(dst, h.Magic[:]...)
	dst = append(dst, h.Version)
	return binary.LittleEndian.AppendUint32(dst, h.Size)
}

// DecodeHeader parses and validates the first HeaderSize bytes of b.
// The returned header is filled in even when validation fails.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, ErrShortHeader
	}
	copy(h.Magic[:], b[:7])
	h.Version = b[7]
	h.Size = binary.LittleEndian.Uint32(b[8:HeaderSize])
	return h, h.Validate()
}

// Encode frames payload as one message.
func Encode(payload []byte) ([]byte, error) {
	return AppendEncode(make([]byte, 0, HeaderSize+len(payload)), payload)
}

// EncodeString frames a string payload as one message.
func EncodeString(payload string) ([]byte, error) {
	return Encode([]byte(payload))
}

// AppendEncode appends the framed payload to dst.
func AppendEncode(dst, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	dst = NewHeader(uint32(len(payload))).AppendTo(dst)
	return append(dst, payload...), nil
}
