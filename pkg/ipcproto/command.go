/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipcproto

import (
	"errors"
	"strings"
)

// Kind classifies a payload by its prefix.
type Kind int

const (
	KindUnknown Kind = iota
	KindCommand
	KindHook
	KindAction
)

// Payload prefixes understood by the bar.
const (
	PrefixCommand = "cmd:"
	PrefixHook    = "hook:"
	PrefixAction  = "action:"
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "cmd"
	case KindHook:
		return "hook"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// Prefix returns the payload prefix for k, or "" for KindUnknown.
func (k Kind) Prefix() string {
	switch k {
	case KindCommand:
		return PrefixCommand
	case KindHook:
		return PrefixHook
	case KindAction:
		return PrefixAction
	default:
		return ""
	}
}

// Command is a payload split into its kind and body.
type Command struct {
	Kind Kind
	Body string
}

// ParseCommand strips newlines from both ends of payload and splits off a
// known prefix. Payloads without a known prefix have KindUnknown and the
// whole trimmed payload as Body.
func ParseCommand(payload []byte) Command {
	s := strings.Trim(string(payload), "\n")
	for _, k := range []Kind{KindCommand, KindHook, KindAction} {
		if body, ok := strings.CutPrefix(s, k.Prefix()); ok {
			return Command{Kind: k, Body: body}
		}
	}
	return Command{Kind: KindUnknown, Body: s}
}

// String returns the payload form of c.
func (c Command) String() string {
	return c.Kind.Prefix() + c.Body
}

// ErrBadAction is returned by ParseActionString for malformed action strings.
var ErrBadAction = errors.New("ipcproto: malformed action string")

// ActionString builds "#module.action" or "#module.action.data".
func ActionString(module, action, data string) string {
	s := "#" + module + "." + action
	if data != "" {
		s += "." + data
	}
	return s
}

// ParseActionString splits an action string built by ActionString. Data
// may itself contain dots.
func ParseActionString(s string) (module, action, data string, err error) {
	rest, ok := strings.CutPrefix(s, "#")
	if !ok {
		return "", "", "", ErrBadAction
	}
	module, rest, ok = strings.Cut(rest, ".")
	if !ok || module == "" {
		return "", "", "", ErrBadAction
	}
	action, data, _ = strings.Cut(rest, ".")
	if action == "" {
		return "", "", "", ErrBadAction
	}
	return module, action, data, nil
}
