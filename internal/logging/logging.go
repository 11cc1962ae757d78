// Package logging wraps zap with the fixed console/rotating-file setup
// the server binary uses, so the server and its connection handlers log
// through one consistently configured sugared logger.
package logging

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Logger. Stdout takes precedence over Filename.
type Options struct {
	Stdout     bool   `config:"stdout" yaml:"stdout"`
	Level      string `config:"level" yaml:"level"`
	Filename   string `config:"filename" yaml:"filename"`
	MaxSize    int    `config:"maxSize" yaml:"maxSize"`
	MaxAge     int    `config:"maxAge" yaml:"maxAge"`
	MaxBackups int    `config:"maxBackups" yaml:"maxBackups"`
}

// Logger is a thin, leveled facade over a zap.SugaredLogger.
type Logger struct {
	sugared *zap.SugaredLogger
}

func toZapLevel(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "info":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a Logger from opt.
func New(opt Options) Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var w zapcore.WriteSyncer
	switch {
	case opt.Stdout || opt.Filename == "":
		w = zapcore.AddSync(os.Stdout)
	default:
		if err := os.MkdirAll(filepath.Dir(opt.Filename), 0o755); err != nil {
			panic(err)
		}
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    opt.MaxSize,
			MaxBackups: opt.MaxBackups,
			MaxAge:     opt.MaxAge,
			LocalTime:  true,
		})
	}

	core := zapcore.NewCore(encoder, w, toZapLevel(opt.Level))
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return Logger{sugared: logger.Sugar()}
}

// Nop returns a Logger that discards everything, for tests.
func Nop() Logger {
	return Logger{sugared: zap.NewNop().Sugar()}
}

func (l Logger) Debugf(template string, args ...any) { l.sugared.Debugf(template, args...) }
func (l Logger) Infof(template string, args ...any)  { l.sugared.Infof(template, args...) }
func (l Logger) Warnf(template string, args ...any)  { l.sugared.Warnf(template, args...) }
func (l Logger) Errorf(template string, args ...any) { l.sugared.Errorf(template, args...) }

// With returns a Logger carrying the given structured key/value pairs
// on every subsequent call, without mutating l.
func (l Logger) With(args ...any) Logger {
	return Logger{sugared: l.sugared.With(args...)}
}

// Sync flushes any buffered log entries. Safe to ignore stdout sync
// errors, which are common on Linux terminals.
func (l Logger) Sync() {
	_ = l.sugared.Sync()
}
