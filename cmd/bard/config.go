/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	defaultMaxMessageSize = "1MiB"
	defaultReadBufferSize = "64KiB"
	defaultTick           = time.Second
)

type config struct {
	Socket          string
	FIFO            string
	MaxMessageSize  uint32
	ReadBufferSize  int
	ReportTruncated bool
	MetricsListen   string
	Watch           string
	Tick            time.Duration
	LogLevel        zerolog.Level
}

func loadConfigFile(v *viper.Viper) (string, error) {
	cfgPath := strings.TrimSpace(v.GetString("config"))
	if cfgPath == "" {
		return "", nil
	}
	expanded, err := expandPath(cfgPath)
	if err != nil {
		return "", fmt.Errorf("expand config path %q: %w", cfgPath, err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return "", fmt.Errorf("config file %q: %w", expanded, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config file %q is a directory", expanded)
	}
	v.SetConfigFile(expanded)
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %q: %w", expanded, err)
	}
	return expanded, nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if len(p) == 1 {
			p = home
		} else if p[1] == '/' {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Abs(p)
}

func bindConfig(v *viper.Viper) (config, error) {
	cfg := config{
		Socket:          v.GetString("socket"),
		FIFO:            v.GetString("fifo"),
		ReportTruncated: v.GetBool("report-truncated"),
		MetricsListen:   v.GetString("metrics-listen"),
		Watch:           v.GetString("watch"),
		Tick:            v.GetDuration("tick"),
	}
	if cfg.Watch != "" {
		watch, err := expandPath(cfg.Watch)
		if err != nil {
			return cfg, fmt.Errorf("expand watch path: %w", err)
		}
		cfg.Watch = watch
	}

	maxSize, err := parseSize(v.GetString("max-message-size"))
	if err != nil {
		return cfg, fmt.Errorf("parse max-message-size: %w", err)
	}
	if maxSize > math.MaxUint32 {
		return cfg, fmt.Errorf("max-message-size %s exceeds %s", humanize.IBytes(maxSize), humanize.IBytes(math.MaxUint32))
	}
	cfg.MaxMessageSize = uint32(maxSize)

	bufSize, err := parseSize(v.GetString("read-buffer-size"))
	if err != nil {
		return cfg, fmt.Errorf("parse read-buffer-size: %w", err)
	}
	if bufSize == 0 || bufSize > 64<<20 {
		return cfg, fmt.Errorf("read-buffer-size must be between 1B and 64MiB, got %s", humanize.IBytes(bufSize))
	}
	cfg.ReadBufferSize = int(bufSize)

	level := strings.TrimSpace(v.GetString("log-level"))
	if level == "" {
		level = "info"
	}
	cfg.LogLevel, err = zerolog.ParseLevel(level)
	if err != nil {
		return cfg, fmt.Errorf("parse log-level: %w", err)
	}
	return cfg, nil
}

func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	return humanize.ParseBytes(s)
}
