/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

import "github.com/crrow/polyipc-go/pkg/cev"

// Handle is the common surface of every loop-registered resource.
type Handle interface {
	// Loop returns the loop the handle was created on.
	Loop() *Loop
	// Close starts closing the handle. The OS resource is released
	// immediately; cb (which may be nil) runs on a later iteration. Calling
	// Close on a handle that is already closing does nothing, and that
	// second cb is never called.
	Close(cb CloseFunc)
	// IsClosing reports whether Close has been called.
	IsClosing() bool
	// IsActive reports whether the handle keeps Run from returning.
	IsActive() bool
	// Kind names the handle type, for logs.
	Kind() string
}

// handleImpl is implemented by every concrete handle type.
type handleImpl interface {
	Handle
	base() *handleBase
	// release stops all I/O and frees the OS resource. Called by Close.
	release()
	// finish completes or cancels outstanding requests and drops every
	// stored callback. Called by the close completion.
	finish()
}

// handleBase carries the state shared by all handles. Concrete handles
// embed it.
type handleBase struct {
	loop    *Loop
	impl    handleImpl
	id      cev.ID
	kind    string
	active  bool
	closing bool
	onClose CloseFunc
}

// open is the single allocation entry point for handles: it binds h to the
// loop, runs the type-specific init and registers h in the loop's slot
// table, which keeps it alive until its close completes.
func open[H handleImpl](l *Loop, h H, kind string, init func() error) (H, error) {
	var zero H
	if l == nil || l.closed {
		return zero, ErrLoopClosed
	}
	b := h.base()
	b.loop = l
	b.impl = h
	b.kind = kind
	if init != nil {
		if err := init(); err != nil {
			return zero, err
		}
	}
	b.id = l.handles.Insert(h)
	return h, nil
}

func (h *handleBase) base() *handleBase { return h }

// Loop implements [Handle].
func (h *handleBase) Loop() *Loop { return h.loop }

// IsClosing implements [Handle].
func (h *handleBase) IsClosing() bool { return h.closing }

// IsActive implements [Handle].
func (h *handleBase) IsActive() bool { return h.active }

// Kind implements [Handle].
func (h *handleBase) Kind() string { return h.kind }

// Close implements [Handle].
func (h *handleBase) Close(cb CloseFunc) {
	if h.closing {
		return
	}
	h.closing = true
	h.onClose = cb
	h.setActive(false)
	h.impl.release()
	h.loop.closing = append(h.loop.closing, h)
}

func (h *handleBase) setActive(active bool) {
	if h.active == active {
		return
	}
	h.active = active
	if active {
		h.loop.active++
	} else {
		h.loop.active--
	}
}

// finishClose is the close completion: it settles outstanding requests,
// runs the close callback, and removes the loop's reference. After it
// returns the handle is garbage once the application lets go of it.
func (h *handleBase) finishClose() {
	h.impl.finish()
	cb := h.onClose
	h.onClose = nil
	if cb != nil {
		cb(h.impl)
	}
	h.loop.handles.Remove(h.id)
	h.id = 0
	h.impl = nil
}
