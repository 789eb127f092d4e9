// ABOUTME: Logger construction for the CLI
// ABOUTME: Writes JSON to a rotating log file and, without the TUI, console output to stdout
package main

import (
	"os"

	"github.com/Resonate-Protocol/playout/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger. The returned sink is nil when file
// logging is disabled.
func newLogger(cfg *config.Config) (*zap.Logger, *lumberjack.Logger) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	level := zap.NewAtomicLevelAt(cfg.Level())

	var cores []zapcore.Core
	var sink *lumberjack.Logger

	if cfg.LogFile != "" {
		sink = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(sink), level))
	}

	// The TUI owns the terminal, so it only gets the file
	if !cfg.TUI {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), level))
	}

	return zap.New(zapcore.NewTee(cores...)), sink
}
