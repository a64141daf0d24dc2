/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package barmsg sends messages to running bar instances over their IPC
// sockets.
package barmsg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/crrow/polyipc-go/pkg/ipcproto"
)

var (
	// ErrUsage is returned when the arguments do not form a message.
	ErrUsage = errors.New("barmsg: usage: <action|cmd> <payload> [...]")
	// ErrHookUsage is returned for a malformed hook message.
	ErrHookUsage = errors.New("barmsg: usage: hook <module-name> <hook-index>")
	// ErrUnknownType is returned for a message type other than action, cmd or hook.
	ErrUnknownType = errors.New("barmsg: not a valid message type")
	// ErrTooManyArgs is returned when arguments are left over.
	ErrTooManyArgs = errors.New("barmsg: too many arguments")
)

// Message is a parsed command line.
type Message struct {
	Kind ipcproto.Kind
	Body string
	// Deprecated is set for hook messages, which are translated into the
	// equivalent hook action.
	Deprecated bool
}

// Payload returns the wire payload, prefix included.
func (m Message) Payload() string {
	return ipcproto.Command{Kind: m.Kind, Body: m.Body}.String()
}

// ParseArgs builds a message from command line arguments:
//
//	cmd <command>
//	action <action-string>
//	action <module> <action> [data]
//	hook <module> <index>
//
// The deprecated hook form is translated into the module's hook action;
// hook indexes count from 1 while action data counts from 0.
func ParseArgs(args []string) (Message, error) {
	if len(args) < 2 {
		return Message{}, ErrUsage
	}
	typ, payload, rest := args[0], args[1], args[2:]

	var m Message
	switch typ {
	case "cmd":
		m = Message{Kind: ipcproto.KindCommand, Body: payload}
	case "action":
		m = Message{Kind: ipcproto.KindAction, Body: payload}
		if len(rest) > 0 {
			var data string
			if len(rest) > 1 {
				data = rest[1]
				rest = rest[2:]
			} else {
				rest = rest[1:]
			}
			m.Body = ipcproto.ActionString(payload, args[2], data)
		}
	case "hook":
		if len(rest) != 1 {
			return Message{}, fmt.Errorf("%w: expected 1 argument after the module, got %d", ErrHookUsage, len(rest))
		}
		index, err := strconv.Atoi(rest[0])
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrHookUsage, err)
		}
		module := strings.TrimPrefix(payload, "module/")
		m = Message{
			Kind:       ipcproto.KindAction,
			Body:       ipcproto.ActionString(module, "hook", strconv.Itoa(index-1)),
			Deprecated: true,
		}
		rest = nil
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}

	if len(rest) > 0 {
		return Message{}, ErrTooManyArgs
	}
	return m, nil
}
