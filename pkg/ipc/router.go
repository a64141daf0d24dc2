/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipc

import (
	"github.com/rs/zerolog"

	"github.com/crrow/polyipc-go/pkg/ipcproto"
)

// Router is a Handler that dispatches payloads on their prefix. Nil
// callbacks ignore their kind of message.
type Router struct {
	OnCommand func(cmd string)
	OnHook    func(hook string)
	OnAction  func(action string)
	Log       zerolog.Logger
}

// HandleMessage implements Handler.
func (r *Router) HandleMessage(payload []byte) {
	cmd := ipcproto.ParseCommand(payload)
	r.Log.Debug().Str("kind", cmd.Kind.String()).Str("body", cmd.Body).Msg("ipc: message received")

	var fn func(string)
	switch cmd.Kind {
	case ipcproto.KindCommand:
		fn = r.OnCommand
	case ipcproto.KindHook:
		fn = r.OnHook
	case ipcproto.KindAction:
		fn = r.OnAction
	default:
		if cmd.Body != "" {
			r.Log.Warn().Str("payload", cmd.Body).Msg("ipc: unrecognized message")
		}
		return
	}
	if fn != nil {
		fn(cmd.Body)
	}
}
