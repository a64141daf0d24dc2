/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package ipc serves the bar's control socket.
//
// A Server listens on a unix socket owned by an xev loop. Every accepted
// connection becomes a Client that reassembles framed messages with an
// ipcproto.Decoder and hands each payload to the server's Handler, in
// arrival order, on the loop goroutine.
package ipc

// Handler receives complete message payloads.
type Handler interface {
	HandleMessage(payload []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(payload []byte)

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(payload []byte) {
	f(payload)
}

// TruncationHandler is optionally implemented by a Handler that wants to
// hear about connections that ended in the middle of a message. It is only
// consulted when the server runs with WithTruncationReporting(true).
type TruncationHandler interface {
	HandleTruncated(c *Client)
}
