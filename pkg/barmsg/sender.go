/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package barmsg

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/crrow/polyipc-go/pkg/ipcproto"
	"github.com/crrow/polyipc-go/pkg/xev"
)

// DefaultTimeout bounds how long Send waits for the bars to hang up.
const DefaultTimeout = 5 * time.Second

var (
	// ErrNoChannels is returned by Send when there is nothing to send to.
	ErrNoChannels = errors.New("barmsg: no active ipc channels")
	// ErrTimeout is recorded for every delivery still in flight when the
	// timeout expires.
	ErrTimeout = errors.New("barmsg: timed out waiting for the bar")
)

// SendError ties a failed delivery to its socket.
type SendError struct {
	Path string
	Err  error
}

func (e *SendError) Error() string { return "barmsg: " + e.Path + ": " + e.Err.Error() }

func (e *SendError) Unwrap() error { return e.Err }

// Option configures a Sender.
type Option func(*Sender)

// WithTimeout overrides DefaultTimeout. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) { s.timeout = d }
}

// WithLogger sets the logger used by the sender and its loop.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Sender) { s.log = log }
}

// WithReplyHandler receives anything a bar writes back before hanging up.
func WithReplyHandler(fn func(path string, data []byte)) Option {
	return func(s *Sender) { s.onReply = fn }
}

// Sender delivers one message to a set of sockets.
type Sender struct {
	timeout time.Duration
	log     zerolog.Logger
	onReply func(path string, data []byte)
}

// NewSender returns a sender with the given options.
func NewSender(opts ...Option) *Sender {
	s := &Sender{timeout: DefaultTimeout, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send opens one connection per path on a private loop, writes payload as
// a single message, shuts down the sending side and waits for the bar to
// close the connection. Failures are returned per path as *SendError,
// joined together.
func (s *Sender) Send(paths []string, payload string) error {
	if len(paths) == 0 {
		return ErrNoChannels
	}
	msg, err := ipcproto.EncodeString(payload)
	if err != nil {
		return err
	}
	loop, err := xev.NewLoop(xev.WithLogger(s.log))
	if err != nil {
		return err
	}
	defer func() { _ = loop.Close() }()

	b := &batch{sender: s, msg: msg, pending: len(paths)}
	for _, path := range paths {
		d := &delivery{batch: b, path: path}
		b.deliveries = append(b.deliveries, d)
		d.start(loop)
	}
	if s.timeout > 0 && b.pending > 0 {
		if err := b.startTimer(loop); err != nil {
			return err
		}
	}
	if err := loop.Run(); err != nil {
		return err
	}

	var errs []error
	for _, d := range b.deliveries {
		if d.err != nil {
			errs = append(errs, &SendError{Path: d.path, Err: d.err})
		}
	}
	return errors.Join(errs...)
}

type batch struct {
	sender     *Sender
	msg        []byte
	deliveries []*delivery
	pending    int
	timer      *xev.Timer
}

func (b *batch) startTimer(loop *xev.Loop) error {
	timer, err := xev.NewTimer(loop)
	if err != nil {
		return err
	}
	err = timer.StartFunc(b.sender.timeout, 0, func(*xev.Timer, error) xev.Action {
		for _, d := range b.deliveries {
			d.finish(ErrTimeout)
		}
		return xev.Stop
	})
	if err != nil {
		timer.Close(nil)
		return err
	}
	b.timer = timer
	return nil
}

func (b *batch) done() {
	b.pending--
	if b.pending == 0 && b.timer != nil {
		b.timer.Close(nil)
		b.timer = nil
	}
}

type delivery struct {
	batch    *batch
	path     string
	pipe     *xev.Pipe
	err      error
	finished bool
}

func (d *delivery) start(loop *xev.Loop) {
	pipe, err := xev.NewPipe(loop)
	if err != nil {
		d.finish(err)
		return
	}
	d.pipe = pipe
	err = pipe.Connect(d.path, xev.ConnectFuncs{
		Connect: d.onConnect,
		Error:   d.onError,
	})
	if err != nil {
		d.finish(err)
	}
}

func (d *delivery) onConnect(p *xev.Pipe) {
	_, err := p.Write(d.batch.msg, xev.WriteFuncs{Error: d.onError})
	if err == nil {
		err = p.Shutdown()
	}
	if err == nil {
		err = p.ReadStart(xev.ReadFuncs{
			Data:  d.onData,
			EOF:   func(*xev.Pipe) { d.finish(nil) },
			Error: d.onError,
		})
	}
	if err != nil {
		d.finish(err)
	}
}

func (d *delivery) onData(_ *xev.Pipe, data []byte) {
	if fn := d.batch.sender.onReply; fn != nil {
		fn(d.path, append([]byte(nil), data...))
	}
}

func (d *delivery) onError(_ *xev.Pipe, err error) {
	d.finish(err)
}

func (d *delivery) finish(err error) {
	if d.finished {
		return
	}
	d.finished = true
	d.err = err
	if d.pipe != nil {
		d.pipe.Close(nil)
	}
	log := d.batch.sender.log
	if err != nil {
		log.Debug().Err(err).Str("path", d.path).Msg("barmsg: delivery failed")
	} else {
		log.Debug().Str("path", d.path).Msg("barmsg: delivered")
	}
	d.batch.done()
}
