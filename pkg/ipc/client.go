/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipc

import (
	"errors"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/crrow/polyipc-go/pkg/ipcproto"
	"github.com/crrow/polyipc-go/pkg/xev"
)

// Client is one accepted connection. It lives until the peer disconnects,
// sends something that is not a valid message, fails, or the server closes.
type Client struct {
	server  *Server
	pipe    *xev.Pipe
	id      xid.ID
	decoder *ipcproto.Decoder
	log     zerolog.Logger
}

func newClient(s *Server, pipe *xev.Pipe) *Client {
	c := &Client{server: s, pipe: pipe, id: xid.New()}
	c.log = s.cfg.log.With().Str("conn", c.id.String()).Logger()
	c.decoder = ipcproto.NewDecoder(c.onMessage, ipcproto.WithMaxPayload(s.cfg.maxPayload))
	return c
}

// ID identifies the connection in logs.
func (c *Client) ID() xid.ID { return c.id }

// State returns the framing state.
func (c *Client) State() ipcproto.State { return c.decoder.State() }

// Start begins reading from the connection.
func (c *Client) Start() error {
	return c.pipe.ReadStart(xev.ReadFuncs{
		Data:  c.onData,
		EOF:   c.onEOF,
		Error: c.onReadError,
	})
}

// Close disconnects the client. Messages already dispatched are unaffected;
// anything still buffered is dropped.
func (c *Client) Close() {
	c.close(reasonShutdown)
}

func (c *Client) onData(_ *xev.Pipe, data []byte) {
	c.server.metrics.bytes.Add(float64(len(data)))
	err := c.decoder.Feed(data)
	if err == nil || errors.Is(err, ipcproto.ErrDecoderClosed) {
		return
	}
	c.log.Warn().Err(err).Msg("ipc: protocol error, closing connection")
	c.close(reasonProtocol)
}

func (c *Client) onMessage(payload []byte) {
	c.server.metrics.messages.Inc()
	c.server.cfg.handler.HandleMessage(payload)
}

func (c *Client) onEOF(*xev.Pipe) {
	remaining := c.decoder.Remaining()
	if c.decoder.EOF() && c.server.cfg.reportTruncation {
		c.server.metrics.truncated.Inc()
		c.log.Warn().Int("missing", remaining).Msg("ipc: connection closed in the middle of a message")
		if th, ok := c.server.cfg.handler.(TruncationHandler); ok {
			th.HandleTruncated(c)
		}
	}
	c.close(reasonEOF)
}

func (c *Client) onReadError(_ *xev.Pipe, err error) {
	c.decoder.Fail(err)
	c.log.Warn().Err(err).Msg("ipc: read failed, closing connection")
	c.close(reasonRead)
}

func (c *Client) close(reason string) {
	if c.pipe.IsClosing() {
		return
	}
	if st := c.decoder.State(); st == ipcproto.StateWait || st == ipcproto.StateRead {
		c.decoder.EOF()
	}
	c.server.metrics.closed.WithLabelValues(reason).Inc()
	c.pipe.Close(func(xev.Handle) { c.server.removeClient(c) })
}
