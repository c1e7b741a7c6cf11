package main

import (
	"strings"

	lg "github.com/Andrej220/go-utils/zlog"

	"github.com/azargarov/foldersim/internal/config"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

func parseLevel(s string) level {
	switch strings.ToLower(s) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// newCoreLogger builds the zlog logger the simulation, generator and hub
// log through. The terminal view owns the screen, so -ui discards it.
func newCoreLogger(cfg config.Config) lg.ZLogger {
	if cfg.UI {
		return lg.Discard
	}
	lvl := parseLevel(cfg.LogLevel)
	zl := lg.New(&lg.Config{
		ServiceName: "foldersim",
		Debug:       lvl == levelDebug,
		Format:      "console",
	})
	if lvl <= levelInfo {
		return zl
	}
	return filtered{next: zl, min: lvl}
}

// filtered drops entries below min. zlog itself only switches between
// debug and info.
type filtered struct {
	next lg.ZLogger
	min  level
}

func (f filtered) Debug(msg string, fields ...lg.Field) {
	if f.min <= levelDebug {
		f.next.Debug(msg, fields...)
	}
}

func (f filtered) Info(msg string, fields ...lg.Field) {
	if f.min <= levelInfo {
		f.next.Info(msg, fields...)
	}
}

func (f filtered) Warn(msg string, fields ...lg.Field) {
	if f.min <= levelWarn {
		f.next.Warn(msg, fields...)
	}
}

func (f filtered) Error(msg string, fields ...lg.Field) { f.next.Error(msg, fields...) }

func (f filtered) With(fields ...lg.Field) lg.ZLogger {
	return filtered{next: f.next.With(fields...), min: f.min}
}

func (f filtered) Sync() error { return f.next.Sync() }
