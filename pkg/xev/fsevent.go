/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FSOp classifies a filesystem change.
type FSOp uint8

const (
	// FSRename covers entries appearing, disappearing or being renamed.
	FSRename FSOp = 1 << iota
	// FSChange covers content or metadata changes.
	FSChange
)

func (op FSOp) String() string {
	switch op {
	case FSRename:
		return "rename"
	case FSChange:
		return "change"
	case FSRename | FSChange:
		return "rename|change"
	default:
		return "none"
	}
}

func fsOpFromNotify(op fsnotify.Op) FSOp {
	var out FSOp
	if op.Has(fsnotify.Create) || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		out |= FSRename
	}
	if op.Has(fsnotify.Write) || op.Has(fsnotify.Chmod) {
		out |= FSChange
	}
	return out
}

type fsChange struct {
	name string
	op   FSOp
	err  error
}

// FSEvent watches a file or directory. Notifications come from an fsnotify
// watcher whose goroutine hands them to the loop through an eventfd.
type FSEvent struct {
	handleBase
	wake    bridge
	watcher *fsnotify.Watcher
	path    string
	handler FSEventHandler

	mu     sync.Mutex
	queued []fsChange
	wg     sync.WaitGroup
}

// NewFSEvent creates a stopped filesystem watch handle.
func NewFSEvent(loop *Loop) (*FSEvent, error) {
	e := &FSEvent{wake: bridge{fd: -1}}
	return open(loop, e, "fs_event", func() error {
		return wrapErr("fs_event_init", e.wake.open(loop, e.onWake))
	})
}

// Start watches path. name in the handler is the full path of the entry
// that changed.
func (e *FSEvent) Start(path string, handler FSEventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if e.closing {
		return ErrClosing
	}
	if e.watcher != nil {
		return ErrAlreadyActive
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return wrapErr("fs_event_start", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return wrapErr("fs_event_start", err)
	}
	e.watcher = w
	e.path = path
	e.handler = handler
	e.wg.Add(1)
	go e.forward(w)
	e.setActive(true)
	return nil
}

// StartFunc watches path with a callback function.
func (e *FSEvent) StartFunc(path string, fn func(e *FSEvent, name string, op FSOp, err error) Action) error {
	return e.Start(path, FSEventFunc(fn))
}

// Stop ends the watch.
func (e *FSEvent) Stop() error {
	e.setActive(false)
	if e.watcher == nil {
		return nil
	}
	err := e.watcher.Close()
	e.wg.Wait()
	e.watcher = nil
	e.mu.Lock()
	e.queued = nil
	e.mu.Unlock()
	return wrapErr("fs_event_stop", err)
}

// Path returns the watched path.
func (e *FSEvent) Path() string { return e.path }

func (e *FSEvent) forward(w *fsnotify.Watcher) {
	defer e.wg.Done()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if op := fsOpFromNotify(ev.Op); op != 0 {
				e.push(fsChange{name: ev.Name, op: op})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			e.push(fsChange{err: err})
		}
	}
}

func (e *FSEvent) push(c fsChange) {
	e.mu.Lock()
	e.queued = append(e.queued, c)
	e.mu.Unlock()
	_ = e.wake.signal()
}

func (e *FSEvent) onWake() {
	e.mu.Lock()
	batch := e.queued
	e.queued = nil
	e.mu.Unlock()

	for _, c := range batch {
		if e.closing || e.watcher == nil {
			return
		}
		handler := e.handler
		if c.err != nil {
			e.Close(nil)
			handler.OnFSEvent(e, e.path, 0, wrapErr("fs_event", c.err))
			return
		}
		if handler.OnFSEvent(e, c.name, c.op, nil) == Stop {
			_ = e.Stop()
			return
		}
	}
}

func (e *FSEvent) release() {
	_ = e.Stop()
	e.wake.close(e.loop)
}

func (e *FSEvent) finish() { e.handler = nil }
