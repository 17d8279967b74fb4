// Package logging is the ambient structured-logging surface used on
// recoverable-error paths throughout httpwire, per §7 of the wire codec
// design: a rotating, leveled logger built on go.uber.org/zap with
// gopkg.in/natefinch/lumberjack.v2 handling file rotation, grounded on
// the retrieval pack's packetd-packetd/logger package.
package logging

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level names the severities httpwire logs at.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options configures a Logger. Unpack it from a config.Config via its
// "config" struct tags. A zero-value Options logs to stdout at info
// level.
type Options struct {
	Stdout     bool   `config:"stdout"`
	Level      string `config:"level"`
	Filename   string `config:"filename"`
	MaxSize    int    `config:"maxSize"` // megabytes
	MaxAge     int    `config:"maxAge"`  // days
	MaxBackups int    `config:"maxBackups"`
}

// Logger is a thin wrapper around a zap.SugaredLogger, keeping call
// sites free of zap's field-constructor vocabulary.
type Logger struct {
	sugared *zap.SugaredLogger
}

func (l Logger) Debugf(template string, args ...any) { l.sugared.Debugf(template, args...) }
func (l Logger) Infof(template string, args ...any)  { l.sugared.Infof(template, args...) }
func (l Logger) Warnf(template string, args ...any)  { l.sugared.Warnf(template, args...) }
func (l Logger) Errorf(template string, args ...any) { l.sugared.Errorf(template, args...) }

// With returns a Logger carrying the given key/value pairs on every
// subsequent call, e.g. for tagging log lines with a connection or
// request identifier.
func (l Logger) With(keyValues ...any) Logger {
	return Logger{sugared: l.sugared.With(keyValues...)}
}

// New builds a Logger from opt. Stdout true logs unrotated to stdout;
// otherwise Filename is opened (creating its directory) behind a
// lumberjack rotator.
func New(opt Options) (Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var w zapcore.WriteSyncer
	switch {
	case opt.Stdout || opt.Filename == "":
		w = zapcore.AddSync(os.Stdout)
	default:
		if err := os.MkdirAll(filepath.Dir(opt.Filename), 0o755); err != nil {
			return Logger{}, err
		}
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    opt.MaxSize,
			MaxBackups: opt.MaxBackups,
			MaxAge:     opt.MaxAge,
			LocalTime:  false,
		})
	}

	core := zapcore.NewCore(encoder, w, toZapLevel(Level(opt.Level)))
	return Logger{sugared: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}, nil
}

var std = mustStd()

func mustStd() Logger {
	l, err := New(Options{Stdout: true, Level: string(LevelInfo)})
	if err != nil {
		panic(err)
	}
	return l
}

// SetDefault replaces the package-level logger used by Debugf/Infof/
// Warnf/Errorf.
func SetDefault(l Logger) { std = l }

func Debugf(template string, args ...any) { std.Debugf(template, args...) }
func Infof(template string, args ...any)  { std.Infof(template, args...) }
func Warnf(template string, args ...any)  { std.Warnf(template, args...) }
func Errorf(template string, args ...any) { std.Errorf(template, args...) }
