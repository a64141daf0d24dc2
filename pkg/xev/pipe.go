/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"os"

	"github.com/eapache/queue"

	"github.com/crrow/polyipc-go/pkg/cev"
)

// acceptConn is replaced in tests to simulate accept failures.
var acceptConn = cev.Accept

// maxReadsPerWakeup bounds how long one readable stream can hold the loop.
const maxReadsPerWakeup = 32

// Pipe is a byte stream over an AF_UNIX socket or a pipe descriptor.
//
// A Pipe is used in one of three roles:
//   - server: [Pipe.Bind] then [Pipe.Listen], accepting peers with [Pipe.Accept]
//   - client: [Pipe.Connect]
//   - wrapper around an existing descriptor: [Pipe.Open]
//
// Reads are started with [Pipe.ReadStart]; writes are queued with
// [Pipe.Write] and complete in issue order.
//
// # Example
//
//	server, _ := xev.NewPipe(loop)
//	_ = server.Bind("/tmp/app.sock")
//	_ = server.Listen(4, xev.ConnectionFuncs{
//	    Connection: func(s *xev.Pipe) {
//	        peer, _ := xev.NewPipe(s.Loop())
//	        if err := s.Accept(peer); err != nil {
//	            peer.Close(nil)
//	            return
//	        }
//	        _ = peer.ReadStart(xev.ReadFuncs{
//	            Data: func(p *xev.Pipe, data []byte) { process(data) },
//	            EOF:  func(p *xev.Pipe) { p.Close(nil) },
//	        })
//	    },
//	})
type Pipe struct {
	handleBase
	fd   int
	path string

	listening    bool
	acceptPaused bool
	pendingFD    int
	conn         ConnectionHandler

	reading bool
	reader  ReadHandler

	connecting  bool
	connectWait bool
	connector   ConnectHandler

	writes       *queue.Queue
	completed    []*WriteRequest
	flushPending bool

	shutdown     bool
	shutdownDone bool
}

// NewPipe creates a pipe without a descriptor.
func NewPipe(loop *Loop) (*Pipe, error) {
	p := &Pipe{fd: -1, pendingFD: -1, writes: queue.New()}
	return open(loop, p, "pipe", nil)
}

// Open wraps an existing descriptor, which the pipe then owns and closes.
func (p *Pipe) Open(fd int) error {
	if p.closing {
		return ErrClosing
	}
	if p.fd >= 0 {
		return ErrAlreadyOpen
	}
	if err := cev.SetNonblock(fd); err != nil {
		return wrapErr("pipe_open", err)
	}
	p.fd = fd
	return nil
}

// OpenFIFO opens the read end of the named pipe at path without waiting
// for a writer. Readiness is only reported once a writer has written or
// hung up.
func (p *Pipe) OpenFIFO(path string) error {
	if p.closing {
		return ErrClosing
	}
	if p.fd >= 0 {
		return ErrAlreadyOpen
	}
	fd, err := cev.OpenFIFO(path)
	if err != nil {
		return wrapErr("fifo_open", err)
	}
	p.fd = fd
	p.path = path
	return nil
}

// MakeFIFO creates a named pipe at path.
func MakeFIFO(path string, perm os.FileMode) error {
	return wrapErr("mkfifo", cev.Mkfifo(path, uint32(perm.Perm())))
}

// Bind creates a unix socket bound to path.
func (p *Pipe) Bind(path string) error {
	if p.closing {
		return ErrClosing
	}
	if err := p.ensureSocket(); err != nil {
		return err
	}
	if err := cev.Bind(p.fd, path); err != nil {
		return wrapErr("bind", err)
	}
	p.path = path
	return nil
}

// Listen starts accepting connections on a bound pipe.
func (p *Pipe) Listen(backlog int, handler ConnectionHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if p.closing {
		return ErrClosing
	}
	if p.fd < 0 {
		return ErrNotOpen
	}
	if p.listening {
		return ErrAlreadyActive
	}
	if err := cev.Listen(p.fd, backlog); err != nil {
		return wrapErr("listen", err)
	}
	p.conn = handler
	p.listening = true
	if err := p.update(); err != nil {
		p.listening = false
		return wrapErr("listen", err)
	}
	return nil
}

// Accept hands the connection currently being offered to OnConnection over
// to peer, which must be a fresh pipe on the same loop.
func (p *Pipe) Accept(peer *Pipe) error {
	if p.pendingFD < 0 {
		return ErrNoPendingConnection
	}
	if peer.closing {
		return ErrClosing
	}
	if peer.fd >= 0 {
		return ErrAlreadyOpen
	}
	peer.fd = p.pendingFD
	peer.path = p.path
	p.pendingFD = -1
	return nil
}

// Connect starts connecting to the unix socket at path. The outcome is
// always delivered to handler on a later loop iteration, including
// failures that are known immediately.
func (p *Pipe) Connect(path string, handler ConnectHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if p.closing {
		return ErrClosing
	}
	if p.connecting {
		return ErrAlreadyActive
	}
	if err := p.ensureSocket(); err != nil {
		return err
	}
	p.connector = handler
	p.connecting = true
	p.path = path

	err := cev.Connect(p.fd, path)
	switch {
	case err == nil:
		p.loop.queue(func() { p.finishConnect(nil) })
	case cev.IsInProgress(err):
		p.connectWait = true
	default:
		cerr := wrapErr("connect", err)
		p.loop.queue(func() { p.finishConnect(cerr) })
	}
	return wrapErr("connect", p.update())
}

// ReadStart delivers incoming data to handler until EOF, an error,
// ReadStop or Close.
func (p *Pipe) ReadStart(handler ReadHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if p.closing {
		return ErrClosing
	}
	if p.fd < 0 {
		return ErrNotOpen
	}
	p.reader = handler
	p.reading = true
	if err := p.update(); err != nil {
		p.reading = false
		return wrapErr("read_start", err)
	}
	return nil
}

// ReadStop stops reading. Data already received by the kernel stays there.
func (p *Pipe) ReadStop() error {
	if !p.reading {
		return nil
	}
	p.reading = false
	return wrapErr("read_stop", p.update())
}

// Write queues data. The pipe keeps a reference to data until the request
// completes, so the caller must not modify it in the meantime.
func (p *Pipe) Write(data []byte, handler WriteHandler) (*WriteRequest, error) {
	if p.closing {
		return nil, ErrClosing
	}
	if p.fd < 0 {
		return nil, ErrNotOpen
	}
	if p.shutdown {
		return nil, ErrShutdown
	}
	if len(data) == 0 {
		return nil, ErrEmptyBuffer
	}
	req := newWriteRequest(p, data, handler)
	p.writes.Add(req)
	if !p.connecting && p.writes.Length() == 1 {
		p.flushWrites()
	}
	if err := p.update(); err != nil {
		return req, wrapErr("write", err)
	}
	return req, nil
}

// Shutdown closes the sending side of the stream once every queued write
// has been handed to the kernel. The peer then reads EOF while this side
// can keep reading. Later writes fail with ErrShutdown.
func (p *Pipe) Shutdown() error {
	if p.closing {
		return ErrClosing
	}
	if p.fd < 0 {
		return ErrNotOpen
	}
	if p.shutdown {
		return nil
	}
	p.shutdown = true
	if p.connecting || p.writes.Length() > 0 {
		return nil
	}
	return p.shutdownWrite()
}

func (p *Pipe) shutdownWrite() error {
	if p.shutdownDone {
		return nil
	}
	p.shutdownDone = true
	return wrapErr("shutdown", cev.ShutdownWrite(p.fd))
}

// PendingWrites returns the number of writes not yet fully handed to the kernel.
func (p *Pipe) PendingWrites() int { return p.writes.Length() }

// Path returns the path the pipe was bound or connected to, if any.
func (p *Pipe) Path() string { return p.path }

// Fd returns the descriptor, or -1.
func (p *Pipe) Fd() int { return p.fd }

func (p *Pipe) ensureSocket() error {
	if p.fd >= 0 {
		return nil
	}
	fd, err := cev.UnixSocket()
	if err != nil {
		return wrapErr("socket", err)
	}
	p.fd = fd
	return nil
}

func (p *Pipe) interest() Events {
	var ev Events
	if (p.listening && !p.acceptPaused) || p.reading {
		ev |= EventRead
	}
	if p.connectWait || (!p.connecting && p.writes.Length() > 0) {
		ev |= EventWrite
	}
	return ev
}

// update syncs the poller registration and the active flag with the
// pipe's current operations.
func (p *Pipe) update() error {
	if p.closing {
		return nil
	}
	p.setActive(p.listening || p.reading || p.connecting || p.writes.Length() > 0)
	if p.fd < 0 {
		return nil
	}
	ev := p.interest()
	poller := &p.loop.poller
	registered := poller.Registered(p.fd)
	switch {
	case ev == 0 && registered:
		return poller.Remove(p.fd)
	case ev == 0:
		return nil
	case !registered:
		return poller.Add(p.fd, ev, p.onEvents)
	default:
		return poller.Modify(p.fd, ev)
	}
}

func (p *Pipe) onEvents(ev Events) {
	if p.connectWait && ev&(EventWrite|EventError|EventHangup) != 0 {
		p.connectWait = false
		p.finishConnect(wrapErr("connect", cev.SocketError(p.fd)))
	}
	if p.closing {
		return
	}
	if ev&(EventRead|EventError|EventHangup) != 0 {
		switch {
		case p.listening:
			p.acceptPending()
		case p.reading:
			p.readAvailable()
		}
	}
	if p.closing {
		return
	}
	if !p.connecting && p.writes.Length() > 0 && ev&(EventWrite|EventError|EventHangup) != 0 {
		p.flushWrites()
		if err := p.update(); err != nil {
			p.loop.log.Debug().Err(err).Msg("loop: pipe poll update failed")
		}
	}
}

func (p *Pipe) acceptPending() {
	for !p.closing && p.listening {
		fd, err := acceptConn(p.fd)
		if err != nil {
			if !cev.IsAgain(err) {
				p.pauseAccept()
				p.conn.OnListenError(p, wrapErr("accept", err))
			}
			return
		}
		p.pendingFD = fd
		p.conn.OnConnection(p)
		if p.pendingFD >= 0 {
			p.loop.log.Debug().Str("path", p.path).Msg("loop: dropping unaccepted connection")
			_ = cev.Close(p.pendingFD)
			p.pendingFD = -1
		}
	}
}

// pauseAccept stops watching the listener. A connection that could not be
// accepted stays queued and would report readiness on every iteration.
func (p *Pipe) pauseAccept() {
	p.acceptPaused = true
	if err := p.update(); err != nil {
		p.loop.log.Debug().Err(err).Msg("loop: pipe poll update failed")
	}
}

// ResumeAccept restarts accepting after OnListenError paused it. It does
// nothing when accepting is not paused.
func (p *Pipe) ResumeAccept() error {
	if p.closing {
		return ErrClosing
	}
	if !p.listening {
		return ErrNotOpen
	}
	if !p.acceptPaused {
		return nil
	}
	p.acceptPaused = false
	return wrapErr("listen", p.update())
}

func (p *Pipe) readAvailable() {
	buf := p.loop.readBuf
	for i := 0; i < maxReadsPerWakeup && p.reading && !p.closing; i++ {
		n, err := cev.Read(p.fd, buf)
		switch {
		case err != nil && cev.IsAgain(err):
			return
		case err != nil:
			reader := p.reader
			p.stopReading()
			reader.OnReadError(p, wrapErr("read", err))
			return
		case n == 0:
			reader := p.reader
			p.stopReading()
			reader.OnEOF(p)
			return
		}
		p.reader.OnData(p, buf[:n])
		if n < len(buf) {
			return
		}
	}
}

func (p *Pipe) stopReading() {
	p.reading = false
	if err := p.update(); err != nil {
		p.loop.log.Debug().Err(err).Msg("loop: pipe poll update failed")
	}
}

func (p *Pipe) finishConnect(err error) {
	if !p.connecting || p.closing {
		return
	}
	p.connecting = false
	p.connectWait = false
	connector := p.connector
	if err != nil {
		p.failWrites(err)
	} else {
		p.flushWrites()
	}
	if uerr := p.update(); uerr != nil && err == nil {
		err = wrapErr("connect", uerr)
	}
	if err != nil {
		connector.OnConnectError(p, err)
		return
	}
	connector.OnConnect(p)
}

// flushWrites hands queued data to the kernel until it would block. Each
// fully written request moves to the completed list, whose callbacks run
// from the loop's completion pass.
func (p *Pipe) flushWrites() {
	for p.writes.Length() > 0 {
		req := p.writes.Peek().(*WriteRequest)
		n, err := cev.Write(p.fd, req.buf[req.off:])
		if err != nil {
			if cev.IsAgain(err) {
				return
			}
			p.failWrites(wrapErr("write", err))
			return
		}
		req.off += n
		if req.off < len(req.buf) {
			continue
		}
		p.writes.Remove()
		p.completeWrite(req)
	}
	if p.shutdown {
		if err := p.shutdownWrite(); err != nil {
			p.loop.log.Debug().Err(err).Msg("loop: pipe shutdown failed")
		}
	}
}

// failWrites completes every queued request with err.
func (p *Pipe) failWrites(err error) {
	for p.writes.Length() > 0 {
		req := p.writes.Remove().(*WriteRequest)
		req.err = err
		p.completeWrite(req)
	}
}

func (p *Pipe) completeWrite(req *WriteRequest) {
	p.completed = append(p.completed, req)
	if p.flushPending {
		return
	}
	p.flushPending = true
	p.loop.queue(p.runWriteCallbacks)
}

func (p *Pipe) runWriteCallbacks() {
	p.flushPending = false
	for len(p.completed) > 0 {
		req := p.completed[0]
		p.completed = p.completed[1:]
		req.complete()
	}
	p.completed = nil
}

func (p *Pipe) release() {
	p.listening = false
	p.reading = false
	p.connectWait = false
	if p.pendingFD >= 0 {
		_ = cev.Close(p.pendingFD)
		p.pendingFD = -1
	}
	if p.fd >= 0 {
		if p.loop.poller.Registered(p.fd) {
			_ = p.loop.poller.Remove(p.fd)
		}
		_ = cev.Close(p.fd)
		p.fd = -1
	}
}

func (p *Pipe) finish() {
	if p.connecting {
		p.connecting = false
		if p.connector != nil {
			p.connector.OnConnectError(p, ErrCanceled)
		}
	}
	for p.writes.Length() > 0 {
		req := p.writes.Remove().(*WriteRequest)
		req.err = ErrCanceled
		p.completed = append(p.completed, req)
	}
	p.runWriteCallbacks()
	p.conn = nil
	p.reader = nil
	p.connector = nil
}
