/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Command bard is a minimal bar host: it runs an event loop with the IPC
// control socket, signal handling, a tick timer and an optional watched
// config file, and logs what it is asked to do.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	polyipc "github.com/crrow/polyipc-go"
)

func main() {
	os.Exit(submain(os.Args[1:]))
}

func submain(args []string) int {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("app", "bard").Logger()
	cmd := newRootCommand(viper.New(), log)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("bard: command failed")
		return 1
	}
	return 0
}

func newRootCommand(v *viper.Viper, baseLog zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bard",
		Short:         "bard hosts a status bar event loop with an IPC control socket",
		Version:       polyipc.Version,
		SilenceErrors: true,
		Example: `
  # Listen on $XDG_RUNTIME_DIR/polybar/ipc.<pid>.sock
  bard

  # Explicit socket, metrics endpoint and a config file to watch
  bard --socket /tmp/bar.sock --metrics-listen 127.0.0.1:9464 --watch ~/.config/bar/config.ini

  # Same, from the environment
  BARD_SOCKET=/tmp/bar.sock BARD_MAX_MESSAGE_SIZE=64KiB bard
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			configFile, err := loadConfigFile(v)
			if err != nil {
				return err
			}
			cfg, err := bindConfig(v)
			if err != nil {
				return err
			}
			log := baseLog.Level(cfg.LogLevel)
			if configFile != "" {
				log.Info().Str("path", configFile).Msg("bard: loaded config file")
			}
			return run(cfg, log)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "path to a YAML config file")
	flags.String("socket", "", "IPC socket path (default $XDG_RUNTIME_DIR/polybar/ipc.<pid>.sock)")
	flags.String("fifo", "", "also listen on this deprecated named pipe")
	flags.String("max-message-size", defaultMaxMessageSize, "largest accepted IPC payload (e.g. 64KiB, 1MB; 0 disables the limit)")
	flags.String("read-buffer-size", defaultReadBufferSize, "loop read buffer size")
	flags.Bool("report-truncated", false, "log connections that close in the middle of a message")
	flags.String("metrics-listen", "", "Prometheus scrape address (empty disables)")
	flags.String("watch", "", "file to watch for changes")
	flags.Duration("tick", defaultTick, "interval of the update timer (0 disables)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")

	bindFlags(v, flags)
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix("BARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	flags.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(fmt.Sprintf("bind flag %q: %v", flag.Name, err))
		}
	})
}
