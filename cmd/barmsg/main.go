/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Command barmsg sends one IPC message to every running bar, or to the
// bar with the given pid.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	polyipc "github.com/crrow/polyipc-go"
	"github.com/crrow/polyipc-go/pkg/barmsg"
	"github.com/crrow/polyipc-go/pkg/ipcproto"
)

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.Name(), err)
		os.Exit(1)
	}
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	var (
		pid      int
		timeout  time.Duration
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "barmsg [-p <pid>] <action|cmd|hook> <payload> [...]",
		Short: "Send a message to running bars over IPC",
		Example: `
  barmsg cmd toggle
  barmsg -p 1234 action "#date.toggle"
  barmsg action menu open 1
  barmsg hook demo 1   # deprecated, sent as action "#demo.hook.0"
`,
		Version:       polyipc.Version,
		Args:          cobra.MinimumNArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("parse log-level: %w", err)
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: errOut}).Level(level).With().Timestamp().Logger()

			msg, err := barmsg.ParseArgs(args)
			if err != nil {
				return err
			}
			paths, err := channels(pid, errOut)
			if err != nil {
				return err
			}
			if msg.Deprecated {
				_, _ = fmt.Fprintf(errOut, "Warning: Using IPC hook commands is deprecated, use the hook action on the ipc module: %s action \"%s\"\n",
					cmd.Root().Name(), msg.Body)
			}

			sender := barmsg.NewSender(
				barmsg.WithTimeout(timeout),
				barmsg.WithLogger(log),
				barmsg.WithReplyHandler(func(path string, data []byte) {
					_, _ = fmt.Fprintf(out, "READ (PID %d): %s\n", ipcproto.PIDFromSocket(path), data)
				}),
			)
			sendErr := sender.Send(paths, msg.Payload())
			failed := failedPaths(sendErr)
			for _, path := range paths {
				if err, ok := failed[path]; ok {
					_, _ = fmt.Fprintf(errOut, "Failed to write %q to '%s': %v\n", msg.Payload(), path, err)
					continue
				}
				_, _ = fmt.Fprintf(out, "Successfully wrote %q to PID %d\n", msg.Payload(), ipcproto.PIDFromSocket(path))
			}
			if sendErr != nil {
				return errors.New("not every bar received the message")
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.IntVarP(&pid, "pid", "p", 0, "only send to the bar running with this pid")
	flags.DurationVar(&timeout, "timeout", barmsg.DefaultTimeout, "how long to wait for the bars to hang up (0 waits forever)")
	flags.StringVar(&logLevel, "log-level", "warn", "log level")
	return cmd
}

// channels resolves the sockets to send to, reporting stale sockets it
// removed on the way.
func channels(pid int, errOut io.Writer) ([]string, error) {
	if pid > 0 {
		path, err := barmsg.SocketForPID(pid)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	live, stale, err := barmsg.Sockets(ipcproto.GlobSocketPath())
	for _, path := range stale {
		_, _ = fmt.Fprintf(errOut, "Removed stale ipc channel: %s\n", path)
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "%v\n", err)
	}
	if len(live) == 0 {
		return nil, barmsg.ErrNoChannels
	}
	return live, nil
}

func failedPaths(err error) map[string]error {
	failed := make(map[string]error)
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else if err != nil {
		errs = []error{err}
	}
	for _, e := range errs {
		var sendErr *barmsg.SendError
		if errors.As(e, &sendErr) {
			failed[sendErr.Path] = sendErr.Err
		}
	}
	return failed
}
