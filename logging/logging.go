// Package logging builds the zap loggers used across the module: colored
// console output by default, rotated files via lumberjack when a path is
// configured.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the sink, encoding and level. The zero value is an
// info-level console logger on stdout.
type Config struct {
	Level      string // debug, info, warn or error; empty means info
	JSON       bool   // JSON lines instead of console formatting
	File       string // when set, write here with rotation instead of stdout
	MaxSizeMB  int    // rotate after this many megabytes (default 100)
	MaxBackups int    // rotated files to keep (default 3)
	MaxAgeDays int    // days before rotated files are deleted (default 30)
	Compress   bool   // gzip rotated files
}

// ParseLevel maps a config string onto a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

// New builds a logger from the config. Callers own the returned logger and
// should Sync it on shutdown.
func New(cfg Config) (*zap.Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var ws zapcore.WriteSyncer
	if cfg.File != "" {
		if cfg.MaxSizeMB <= 0 {
			cfg.MaxSizeMB = 100
		}
		if cfg.MaxBackups <= 0 {
			cfg.MaxBackups = 3
		}
		if cfg.MaxAgeDays <= 0 {
			cfg.MaxAgeDays = 30
		}
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	} else {
		ws = zapcore.AddSync(os.Stdout)
		if !cfg.JSON {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	var enc zapcore.Encoder
	if cfg.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	return zap.New(zapcore.NewCore(enc, ws, level), zap.AddCaller()), nil
}
