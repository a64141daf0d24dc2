/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package xev

import "os"

// Action controls the behavior of a watcher after its callback returns.
//
// Callbacks of repeating watchers (timers, signals, polls, fs events) return
// an Action to say whether they want to keep firing. Stream callbacks do not:
// a stream keeps reading until it is stopped or closed.
type Action int

const (
	// Stop disarms the watcher after the callback returns.
	// The watcher will not fire again until explicitly restarted.
	Stop Action = iota

	// Continue keeps the watcher active after the callback returns.
	// For a timer started without a repeat interval, this re-arms it with
	// the original timeout.
	Continue
)

// CloseFunc is called once a handle's close has completed. By then the
// handle's OS resource is released and its other callbacks will never run.
type CloseFunc func(h Handle)

// TimerHandler is the interface for handling timer events.
//
// Implement this interface when you need stateful timer handling, such as
// tracking how many times a timer has fired or implementing backoff.
// For simple use cases, [TimerFunc] is more convenient.
//
// Example implementation:
//
//	type CountingTimer struct {
//	    count int
//	    max   int
//	}
//
//	func (c *CountingTimer) OnTimer(t *xev.Timer, err error) xev.Action {
//	    c.count++
//	    if c.count >= c.max {
//	        return xev.Stop
//	    }
//	    return xev.Continue
//	}
type TimerHandler interface {
	// OnTimer is called when the timer fires.
	// Return [Stop] to prevent further firings, or [Continue] to keep going.
	OnTimer(t *Timer, result error) Action
}

// TimerFunc is a function adapter for [TimerHandler].
//
// Example:
//
//	timer.StartFunc(time.Second, 0, func(t *xev.Timer, err error) xev.Action {
//	    fmt.Println("Timer fired!")
//	    return xev.Stop // One-shot timer
//	})
type TimerFunc func(t *Timer, result error) Action

// OnTimer implements [TimerHandler].
func (f TimerFunc) OnTimer(t *Timer, result error) Action {
	return f(t, result)
}

// SignalHandler handles delivery of an OS signal on the loop goroutine.
type SignalHandler interface {
	// OnSignal is called once per delivered signal.
	// Return [Stop] to stop watching the signal.
	OnSignal(s *Signal, sig os.Signal) Action
}

// SignalFunc is a function adapter for [SignalHandler].
type SignalFunc func(s *Signal, sig os.Signal) Action

// OnSignal implements [SignalHandler].
func (f SignalFunc) OnSignal(s *Signal, sig os.Signal) Action {
	return f(s, sig)
}

// PollHandler handles readiness of a polled file descriptor.
type PollHandler interface {
	// OnPoll is called with the ready events. A non-nil err means the
	// descriptor reported an error condition and the handle is already
	// closing; the returned Action is ignored in that case.
	OnPoll(p *Poll, events Events, err error) Action
}

// PollFunc is a function adapter for [PollHandler].
type PollFunc func(p *Poll, events Events, err error) Action

// OnPoll implements [PollHandler].
func (f PollFunc) OnPoll(p *Poll, events Events, err error) Action {
	return f(p, events, err)
}

// FSEventHandler handles changes under a watched path.
type FSEventHandler interface {
	// OnFSEvent is called for each change. A non-nil err means the watch
	// failed and the handle is already closing.
	OnFSEvent(e *FSEvent, name string, op FSOp, err error) Action
}

// FSEventFunc is a function adapter for [FSEventHandler].
type FSEventFunc func(e *FSEvent, name string, op FSOp, err error) Action

// OnFSEvent implements [FSEventHandler].
func (f FSEventFunc) OnFSEvent(e *FSEvent, name string, op FSOp, err error) Action {
	return f(e, name, op, err)
}

// AsyncHandler runs on the loop goroutine after [Async.Send].
type AsyncHandler interface {
	OnAsync(a *Async)
}

// AsyncFunc is a function adapter for [AsyncHandler].
type AsyncFunc func(a *Async)

// OnAsync implements [AsyncHandler].
func (f AsyncFunc) OnAsync(a *Async) {
	f(a)
}

// ConnectionHandler handles a listening [Pipe].
//
// OnConnection is called once per pending connection. Call [Pipe.Accept]
// with a fresh pipe from inside it to take the connection; a connection
// left unaccepted when OnConnection returns is dropped.
//
// OnListenError reports an accept failure other than EAGAIN, such as
// EMFILE. The listener then stops accepting until [Pipe.ResumeAccept].
type ConnectionHandler interface {
	OnConnection(server *Pipe)
	OnListenError(server *Pipe, err error)
}

// ConnectionFuncs adapts plain functions to [ConnectionHandler].
// Nil fields are ignored.
type ConnectionFuncs struct {
	Connection func(server *Pipe)
	Error      func(server *Pipe, err error)
}

// OnConnection implements [ConnectionHandler].
func (f ConnectionFuncs) OnConnection(server *Pipe) {
	if f.Connection != nil {
		f.Connection(server)
	}
}

// OnListenError implements [ConnectionHandler].
func (f ConnectionFuncs) OnListenError(server *Pipe, err error) {
	if f.Error != nil {
		f.Error(server, err)
	}
}

// ReadHandler handles data arriving on a [Pipe].
//
// Exactly one of OnEOF or OnReadError ends a read session; reading is
// stopped before either is called.
type ReadHandler interface {
	// OnData receives the next chunk. data is a loop-owned buffer that is
	// only valid until OnData returns. Chunk boundaries are arbitrary.
	OnData(p *Pipe, data []byte)
	// OnEOF is called when the peer shut down its side cleanly.
	OnEOF(p *Pipe)
	// OnReadError is called on any other read failure.
	OnReadError(p *Pipe, err error)
}

// ReadFuncs adapts plain functions to [ReadHandler]. Nil fields are ignored.
type ReadFuncs struct {
	Data  func(p *Pipe, data []byte)
	EOF   func(p *Pipe)
	Error func(p *Pipe, err error)
}

// OnData implements [ReadHandler].
func (f ReadFuncs) OnData(p *Pipe, data []byte) {
	if f.Data != nil {
		f.Data(p, data)
	}
}

// OnEOF implements [ReadHandler].
func (f ReadFuncs) OnEOF(p *Pipe) {
	if f.EOF != nil {
		f.EOF(p)
	}
}

// OnReadError implements [ReadHandler].
func (f ReadFuncs) OnReadError(p *Pipe, err error) {
	if f.Error != nil {
		f.Error(p, err)
	}
}

// WriteHandler receives the outcome of one [WriteRequest]. Exactly one of
// its methods is called, exactly once.
type WriteHandler interface {
	OnWrite(p *Pipe, n int)
	OnWriteError(p *Pipe, err error)
}

// WriteFuncs adapts plain functions to [WriteHandler]. Nil fields are ignored.
type WriteFuncs struct {
	Done  func(p *Pipe, n int)
	Error func(p *Pipe, err error)
}

// OnWrite implements [WriteHandler].
func (f WriteFuncs) OnWrite(p *Pipe, n int) {
	if f.Done != nil {
		f.Done(p, n)
	}
}

// OnWriteError implements [WriteHandler].
func (f WriteFuncs) OnWriteError(p *Pipe, err error) {
	if f.Error != nil {
		f.Error(p, err)
	}
}

// ConnectHandler receives the outcome of [Pipe.Connect].
type ConnectHandler interface {
	OnConnect(p *Pipe)
	OnConnectError(p *Pipe, err error)
}

// ConnectFuncs adapts plain functions to [ConnectHandler]. Nil fields are ignored.
type ConnectFuncs struct {
	Connect func(p *Pipe)
	Error   func(p *Pipe, err error)
}

// OnConnect implements [ConnectHandler].
func (f ConnectFuncs) OnConnect(p *Pipe) {
	if f.Connect != nil {
		f.Connect(p)
	}
}

// OnConnectError implements [ConnectHandler].
func (f ConnectFuncs) OnConnectError(p *Pipe, err error) {
	if f.Error != nil {
		f.Error(p, err)
	}
}
