// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger exposes the process-wide logger, backed by zap
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	sugar = newLogger(level).Sugar()
)

func newLogger(lvl zap.AtomicLevel) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = lvl
	config.Encoding = "console"
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// SetVerbose toggles debug messages
func SetVerbose(verbose bool) {
	if verbose {
		level.SetLevel(zap.DebugLevel)
	} else {
		level.SetLevel(zap.InfoLevel)
	}
}

// Logger returns the underlying zap logger
func Logger() *zap.Logger {
	return sugar.Desugar()
}

// Sync flushes buffered log entries
func Sync() {
	_ = sugar.Sync()
}

// Action prints a message announcing an action
func Action(args ...interface{}) {
	sugar.Info(append([]interface{}{"==> "}, args...)...)
}

// Actionf prints a formatted message announcing an action
func Actionf(format string, args ...interface{}) {
	sugar.Infof("==> "+format, args...)
}

// Info prints an informative message
func Info(args ...interface{}) {
	sugar.Info(args...)
}

// Infof prints a formatted informative message
func Infof(format string, args ...interface{}) {
	sugar.Infof(format, args...)
}

// Debugf prints a formatted message only in verbose mode
func Debugf(format string, args ...interface{}) {
	sugar.Debugf(format, args...)
}

// Warningf prints a formatted warning
func Warningf(format string, args ...interface{}) {
	sugar.Warnf(format, args...)
}

// Error prints an error
func Error(args ...interface{}) {
	sugar.Error(args...)
}

// Errorf prints a formatted error
func Errorf(format string, args ...interface{}) {
	sugar.Errorf(format, args...)
}

// Fatal prints an error and exits with status 1
func Fatal(args ...interface{}) {
	sugar.Fatal(args...)
}

// Fatalf prints a formatted error and exits with status 1
func Fatalf(format string, args ...interface{}) {
	sugar.Fatalf(format, args...)
}
