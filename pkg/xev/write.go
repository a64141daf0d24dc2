/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xev

// WriteRequest is one queued write on a [Pipe].
//
// A request is owned by its pipe's write queue from [Pipe.Write] until it
// completes. It completes exactly once, by calling exactly one of its
// handler's methods, after which its buffer and handler are dropped.
// Requests on one pipe complete in the order they were issued.
type WriteRequest struct {
	pipe    *Pipe
	buf     []byte
	off     int
	handler WriteHandler
	err     error
	done    bool
}

func newWriteRequest(p *Pipe, data []byte, handler WriteHandler) *WriteRequest {
	return &WriteRequest{pipe: p, buf: data, handler: handler}
}

// Done reports whether the request has completed.
func (r *WriteRequest) Done() bool { return r.done }

// Len returns the size of the payload being written.
func (r *WriteRequest) Len() int { return len(r.buf) }

// Written returns how many bytes have reached the kernel so far.
func (r *WriteRequest) Written() int { return r.off }

func (r *WriteRequest) complete() {
	if r.done {
		return
	}
	r.done = true
	p, h, n, err := r.pipe, r.handler, r.off, r.err
	r.pipe, r.handler, r.buf = nil, nil, nil
	if h == nil {
		return
	}
	if err != nil {
		h.OnWriteError(p, err)
		return
	}
	h.OnWrite(p, n)
}
