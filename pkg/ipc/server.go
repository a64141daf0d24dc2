/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipc

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/crrow/polyipc-go/pkg/ipcproto"
	"github.com/crrow/polyipc-go/pkg/xev"
)

// listenBacklog is the accept backlog of the control socket.
const listenBacklog = 4

// acceptRetryDelay is how long the listener pauses after an accept error
// such as EMFILE.
const acceptRetryDelay = 100 * time.Millisecond

type config struct {
	log              zerolog.Logger
	handler          Handler
	maxPayload       uint32
	reportTruncation bool
	registerer       prometheus.Registerer
}

// Option configures a Server or a FIFO.
type Option func(*config)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithHandler sets the receiver of complete messages.
func WithHandler(h Handler) Option {
	return func(c *config) { c.handler = h }
}

// WithMaxPayload closes connections announcing payloads larger than n
// bytes. Zero means no limit.
func WithMaxPayload(n uint32) Option {
	return func(c *config) { c.maxPayload = n }
}

// WithTruncationReporting makes the server log, count and report
// connections that end in the middle of a message. By default such partial
// messages are dropped silently.
func WithTruncationReporting(on bool) Option {
	return func(c *config) { c.reportTruncation = on }
}

// WithMetrics registers the server's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

func newConfig(opts []Option) config {
	cfg := config{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.handler == nil {
		cfg.handler = HandlerFunc(func([]byte) {})
	}
	return cfg
}

// Server accepts connections on the control socket. All methods must be
// called on the loop goroutine.
type Server struct {
	cfg      config
	loop     *xev.Loop
	listener *xev.Pipe
	path     string
	metrics  *metrics

	clients map[*xev.Pipe]*Client
	retry   *xev.Timer

	closing        bool
	listenerClosed bool
	onClosed       func()
}

// Listen binds the control socket at path and starts accepting on loop.
// An empty path selects ipcproto.SocketPath(os.Getpid()) inside the
// runtime directory, which is created when missing. A leftover socket file
// at path is replaced.
func Listen(loop *xev.Loop, path string, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:     newConfig(opts),
		loop:    loop,
		metrics: newMetrics(),
		clients: make(map[*xev.Pipe]*Client),
	}
	if s.cfg.registerer != nil {
		if err := s.metrics.register(s.cfg.registerer); err != nil {
			return nil, err
		}
	}

	if path == "" {
		if _, err := ipcproto.EnsureRuntimeDir(); err != nil {
			return nil, err
		}
		path = ipcproto.SocketPath(os.Getpid())
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	s.path = path

	listener, err := xev.NewPipe(loop)
	if err != nil {
		return nil, err
	}
	if err := listener.Bind(path); err != nil {
		listener.Close(nil)
		return nil, err
	}
	err = listener.Listen(listenBacklog, xev.ConnectionFuncs{
		Connection: s.onConnection,
		Error:      s.onListenError,
	})
	if err != nil {
		listener.Close(nil)
		_ = os.Remove(path)
		return nil, err
	}
	s.listener = listener
	s.cfg.log.Info().Str("path", path).Msg("ipc: listening")
	return s, nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Clients returns the number of open connections.
func (s *Server) Clients() int { return len(s.clients) }

// Close stops accepting, closes every connection and removes the socket
// file. cb, which may be nil, runs once the listener and every connection
// have finished closing.
func (s *Server) Close(cb func()) {
	if s.closing {
		return
	}
	s.closing = true
	s.onClosed = cb
	if s.retry != nil {
		s.retry.Close(nil)
		s.retry = nil
	}
	s.listener.Close(func(xev.Handle) {
		s.listenerClosed = true
		s.maybeClosed()
	})
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.cfg.log.Warn().Err(err).Str("path", s.path).Msg("ipc: remove socket")
	}
	for _, c := range s.clients {
		c.close(reasonShutdown)
	}
	s.cfg.log.Debug().Str("path", s.path).Msg("ipc: server closing")
}

func (s *Server) maybeClosed() {
	if !s.listenerClosed || len(s.clients) > 0 || s.onClosed == nil {
		return
	}
	cb := s.onClosed
	s.onClosed = nil
	cb()
}

func (s *Server) onConnection(listener *xev.Pipe) {
	peer, err := xev.NewPipe(s.loop)
	if err == nil {
		err = listener.Accept(peer)
		if err != nil {
			peer.Close(nil)
		}
	}
	if err != nil {
		s.metrics.acceptErrors.Inc()
		s.cfg.log.Error().Err(err).Msg("ipc: accept")
		return
	}

	c := newClient(s, peer)
	s.clients[peer] = c
	s.metrics.accepted.Inc()
	s.metrics.active.Inc()
	c.log.Debug().Msg("ipc: connection opened")
	if err := c.Start(); err != nil {
		c.log.Error().Err(err).Msg("ipc: start reading")
		c.close(reasonRead)
	}
}

// onListenError runs with accepting paused; it is resumed after
// acceptRetryDelay.
func (s *Server) onListenError(listener *xev.Pipe, err error) {
	s.metrics.acceptErrors.Inc()
	s.cfg.log.Error().Err(err).Str("path", s.path).Dur("retry", acceptRetryDelay).Msg("ipc: listener error")
	if s.retry == nil {
		timer, terr := xev.NewTimer(s.loop)
		if terr != nil {
			s.cfg.log.Error().Err(terr).Msg("ipc: accept retry timer")
			return
		}
		s.retry = timer
	}
	terr := s.retry.StartFunc(acceptRetryDelay, 0, func(*xev.Timer, error) xev.Action {
		if rerr := listener.ResumeAccept(); rerr != nil {
			s.cfg.log.Error().Err(rerr).Msg("ipc: resume accepting")
		}
		return xev.Stop
	})
	if terr != nil {
		s.cfg.log.Error().Err(terr).Msg("ipc: accept retry timer")
	}
}

func (s *Server) removeClient(c *Client) {
	delete(s.clients, c.pipe)
	s.metrics.active.Dec()
	c.log.Debug().Msg("ipc: connection closed")
	if s.closing {
		s.maybeClosed()
	}
}
