/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/crrow/polyipc-go/pkg/ipc"
	"github.com/crrow/polyipc-go/pkg/ipcproto"
	"github.com/crrow/polyipc-go/pkg/xev"
)

type daemon struct {
	cfg  config
	log  zerolog.Logger
	loop *xev.Loop

	server  *ipc.Server
	fifo    *ipc.FIFO
	metrics *http.Server

	visible  bool
	ticks    uint64
	stopping bool
}

func run(cfg config, log zerolog.Logger) error {
	loop, err := xev.NewLoop(xev.WithLogger(log), xev.WithReadBufferSize(cfg.ReadBufferSize))
	if err != nil {
		return err
	}
	d := &daemon{cfg: cfg, log: log, loop: loop, visible: true}
	if err := d.start(); err != nil {
		d.shutdown("startup failed")
		_ = loop.Run()
		_ = loop.Close()
		d.stopMetrics()
		return err
	}

	log.Info().
		Str("socket", d.server.Path()).
		Str("max_message", humanize.IBytes(uint64(cfg.MaxMessageSize))).
		Str("read_buffer", humanize.IBytes(uint64(cfg.ReadBufferSize))).
		Msg("bard: running")
	err = loop.Run()
	d.stopMetrics()
	if cerr := loop.Close(); err == nil {
		err = cerr
	}
	log.Info().Uint64("ticks", d.ticks).Msg("bard: stopped")
	return err
}

func (d *daemon) start() error {
	router := &ipc.Router{
		OnCommand: d.onCommand,
		OnHook:    d.onHook,
		OnAction:  d.onAction,
		Log:       d.log,
	}
	opts := []ipc.Option{
		ipc.WithLogger(d.log),
		ipc.WithHandler(router),
		ipc.WithMaxPayload(d.cfg.MaxMessageSize),
		ipc.WithTruncationReporting(d.cfg.ReportTruncated),
	}
	if d.cfg.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		if err := d.startMetrics(reg); err != nil {
			return err
		}
		opts = append(opts, ipc.WithMetrics(reg))
	}

	server, err := ipc.Listen(d.loop, d.cfg.Socket, opts...)
	if err != nil {
		return err
	}
	d.server = server

	if d.cfg.FIFO != "" {
		fifo, err := ipc.OpenFIFO(d.loop, d.cfg.FIFO, router, ipc.WithLogger(d.log), ipc.WithMaxPayload(d.cfg.MaxMessageSize))
		if err != nil {
			return err
		}
		d.fifo = fifo
	}

	for _, sig := range []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1} {
		s, err := xev.NewSignal(d.loop)
		if err != nil {
			return err
		}
		if err := s.StartFunc(sig, d.onSignal); err != nil {
			return err
		}
	}

	if d.cfg.Tick > 0 {
		timer, err := xev.NewTimer(d.loop)
		if err != nil {
			return err
		}
		if err := timer.StartFunc(d.cfg.Tick, d.cfg.Tick, d.onTick); err != nil {
			return err
		}
	}

	if d.cfg.Watch != "" {
		watch, err := xev.NewFSEvent(d.loop)
		if err != nil {
			return err
		}
		if err := watch.StartFunc(d.cfg.Watch, d.onFSEvent); err != nil {
			return err
		}
	}
	return nil
}

func (d *daemon) startMetrics(reg *prometheus.Registry) error {
	ln, err := net.Listen("tcp", d.cfg.MetricsListen)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	d.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := d.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error().Err(err).Msg("bard: metrics server")
		}
	}()
	d.log.Info().Str("addr", ln.Addr().String()).Msg("bard: serving metrics")
	return nil
}

func (d *daemon) stopMetrics() {
	if d.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.metrics.Shutdown(ctx); err != nil {
		d.log.Warn().Err(err).Msg("bard: metrics shutdown")
	}
}

// shutdown closes every handle on the loop; Run returns once their close
// callbacks have run.
func (d *daemon) shutdown(reason string) {
	if d.stopping {
		return
	}
	d.stopping = true
	d.log.Info().Str("reason", reason).Msg("bard: shutting down")
	if d.server != nil {
		d.server.Close(nil)
	}
	if d.fifo != nil {
		d.fifo.Close()
	}
	d.loop.Walk(func(h xev.Handle) { h.Close(nil) })
}

func (d *daemon) onCommand(cmd string) {
	switch cmd {
	case "quit":
		d.shutdown("quit command")
	case "hide":
		d.visible = false
	case "show":
		d.visible = true
	case "toggle":
		d.visible = !d.visible
	case "restart":
		d.log.Warn().Msg("bard: restart is not supported, ignoring")
		return
	default:
		d.log.Warn().Str("cmd", cmd).Msg("bard: unknown command")
		return
	}
	d.log.Info().Str("cmd", cmd).Bool("visible", d.visible).Msg("bard: command")
}

func (d *daemon) onHook(hook string) {
	d.log.Warn().Str("hook", hook).Msg("bard: hook messages are deprecated, send the module's hook action instead")
}

func (d *daemon) onAction(action string) {
	module, name, data, err := ipcproto.ParseActionString(action)
	if err != nil {
		d.log.Warn().Err(err).Str("action", action).Msg("bard: invalid action")
		return
	}
	d.log.Info().Str("module", module).Str("action", name).Str("data", data).Msg("bard: action")
}

func (d *daemon) onSignal(_ *xev.Signal, sig os.Signal) xev.Action {
	if sig == syscall.SIGUSR1 {
		d.log.Info().Msg("bard: reload requested")
		return xev.Continue
	}
	d.shutdown(sig.String())
	return xev.Continue
}

func (d *daemon) onTick(*xev.Timer, error) xev.Action {
	d.ticks++
	d.log.Trace().Uint64("tick", d.ticks).Dur("uptime", d.loop.Now()).Msg("bard: tick")
	return xev.Continue
}

func (d *daemon) onFSEvent(_ *xev.FSEvent, name string, op xev.FSOp, err error) xev.Action {
	if err != nil {
		d.log.Error().Err(err).Str("path", d.cfg.Watch).Msg("bard: watch failed")
		return xev.Stop
	}
	d.log.Info().Str("path", name).Stringer("op", op).Msg("bard: watched file changed")
	return xev.Continue
}
