/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipc

import (
	"errors"
	"io/fs"
	"os"

	"github.com/crrow/polyipc-go/pkg/xev"
)

// FIFO is the deprecated named-pipe control channel. Each writer's data,
// from open to close, is delivered to the handler as one message without
// any framing.
type FIFO struct {
	cfg    config
	loop   *xev.Loop
	path   string
	pipe   *xev.Pipe
	buf    []byte
	closed bool

	// discarding is set while the rest of an oversized message is read and
	// dropped, up to its writer's EOF.
	discarding bool
}

// OpenFIFO creates a named pipe at path, replacing any existing file, and
// starts reading from it on loop. Options other than WithLogger and
// WithMaxPayload are ignored.
func OpenFIFO(loop *xev.Loop, path string, handler Handler, opts ...Option) (*FIFO, error) {
	f := &FIFO{cfg: newConfig(append(opts, WithHandler(handler))), loop: loop, path: path}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := xev.MakeFIFO(path, 0o600); err != nil {
		return nil, err
	}
	if err := f.open(); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	f.cfg.log.Warn().Str("path", path).Msg("ipc: the named pipe channel is deprecated, use the ipc socket instead")
	return f, nil
}

// Path returns the FIFO path.
func (f *FIFO) Path() string { return f.path }

// Close stops reading and removes the named pipe. Data buffered from a
// writer that has not closed yet is dropped.
func (f *FIFO) Close() {
	if f.closed {
		return
	}
	f.closed = true
	f.buf = nil
	f.discarding = false
	if f.pipe != nil {
		f.pipe.Close(nil)
		f.pipe = nil
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.cfg.log.Warn().Err(err).Str("path", f.path).Msg("ipc: remove fifo")
	}
}

func (f *FIFO) open() error {
	pipe, err := xev.NewPipe(f.loop)
	if err != nil {
		return err
	}
	if err := pipe.OpenFIFO(f.path); err != nil {
		pipe.Close(nil)
		return err
	}
	err = pipe.ReadStart(xev.ReadFuncs{
		Data:  f.onData,
		EOF:   f.onEOF,
		Error: f.onError,
	})
	if err != nil {
		pipe.Close(nil)
		return err
	}
	f.pipe = pipe
	return nil
}

func (f *FIFO) onData(_ *xev.Pipe, data []byte) {
	if f.discarding {
		return
	}
	if f.cfg.maxPayload > 0 && uint64(len(f.buf))+uint64(len(data)) > uint64(f.cfg.maxPayload) {
		f.cfg.log.Warn().Str("path", f.path).Uint32("max", f.cfg.maxPayload).Msg("ipc: fifo message too large, dropping")
		f.buf = nil
		f.discarding = true
		return
	}
	f.buf = append(f.buf, data...)
}

// onEOF fires when the current writer hangs up. The read end has to be
// reopened to wait for the next writer.
func (f *FIFO) onEOF(*xev.Pipe) {
	payload := f.buf
	f.buf = nil
	f.discarding = false
	f.pipe.Close(nil)
	f.pipe = nil
	if len(payload) > 0 {
		f.cfg.handler.HandleMessage(payload)
	}
	if !f.closed {
		f.reopen()
	}
}

func (f *FIFO) onError(_ *xev.Pipe, err error) {
	f.cfg.log.Error().Err(err).Str("path", f.path).Msg("ipc: fifo read failed")
	f.buf = nil
	f.discarding = false
	f.reopen()
}

func (f *FIFO) reopen() {
	if f.pipe != nil {
		f.pipe.Close(nil)
		f.pipe = nil
	}
	if err := f.open(); err != nil {
		f.cfg.log.Error().Err(err).Str("path", f.path).Msg("ipc: reopen fifo")
	}
}
