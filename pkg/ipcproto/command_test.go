/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package ipcproto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{in: "cmd:quit", want: Command{Kind: KindCommand, Body: "quit"}},
		{in: "cmd:restart\n", want: Command{Kind: KindCommand, Body: "restart"}},
		{in: "\n\nhook:module/demo1\n", want: Command{Kind: KindHook, Body: "module/demo1"}},
		{in: "action:#date.toggle", want: Command{Kind: KindAction, Body: "#date.toggle"}},
		{in: "cmd:", want: Command{Kind: KindCommand, Body: ""}},
		{in: "bogus", want: Command{Kind: KindUnknown, Body: "bogus"}},
		{in: "\n", want: Command{Kind: KindUnknown, Body: ""}},
		{in: " cmd:quit", want: Command{Kind: KindUnknown, Body: " cmd:quit"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseCommand([]byte(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "action:#a.b", Command{Kind: KindAction, Body: "#a.b"}.String())
	assert.Equal(t, "hook", KindHook.String())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "#foo.bar", ActionString("foo", "bar", ""))
	assert.Equal(t, "#foo.bar.data", ActionString("foo", "bar", "data"))
	assert.Equal(t, "#foo.bar.data.data2", ActionString("foo", "bar", "data.data2"))
}

func TestParseActionString(t *testing.T) {
	tests := []struct {
		in                   string
		module, action, data string
	}{
		{in: "#foo.bar", module: "foo", action: "bar"},
		{in: "#foo.bar.", module: "foo", action: "bar"},
		{in: "#foo.bar.data", module: "foo", action: "bar", data: "data"},
		{in: "#foo.bar.data.data2", module: "foo", action: "bar", data: "data.data2"},
	}
	for _, tt := range tests {
		module, action, data, err := ParseActionString(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, []string{tt.module, tt.action, tt.data}, []string{module, action, data}, tt.in)
	}

	for _, bad := range []string{"", "foo.bar", "#", "#.", "#..", "#handler..", "#.action.", "#.action.data", "#..data", "#.data", "#foo"} {
		_, _, _, err := ParseActionString(bad)
		assert.ErrorIs(t, err, ErrBadAction, bad)
	}
}

func TestSocketPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	assert.Equal(t, filepath.Join(dir, "polybar"), RuntimeDir())
	assert.Equal(t, filepath.Join(dir, "polybar", "ipc.42.sock"), SocketPath(42))
	assert.Equal(t, filepath.Join(dir, "polybar", "ipc.*.sock"), GlobSocketPath())

	got, err := EnsureRuntimeDir()
	require.NoError(t, err)
	assert.DirExists(t, got)
	again, err := EnsureRuntimeDir()
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestPIDFromSocket(t *testing.T) {
	tests := map[string]int{
		"/run/user/1000/polybar/ipc.1234.sock": 1234,
		"ipc.7.sock":                           7,
		"/tmp/polybar-0/ipc.sock":              -1,
		"/tmp/polybar-0/ipc.abc.sock":          -1,
		"/tmp/polybar-0/ipc.12.socket":         -1,
		"nodots.sock":                          -1,
	}
	for in, want := range tests {
		assert.Equal(t, want, PIDFromSocket(in), in)
	}
}
