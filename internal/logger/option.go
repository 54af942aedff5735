package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// WithRotatingFile is an option that tees every record into a size-rotated JSON file.
// The console core is kept as is.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithRotatingFile(opts Options, level zapcore.LevelEnabler) zap.Option {
	writer := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
		MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAgeDays),
		Compress:   opts.Compress,
	}

	return WithSink(zapcore.AddSync(writer), level)
}

// WithSink is an option that tees every record into sink using the JSON encoder.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithSink(sink zapcore.WriteSyncer, level zapcore.LevelEnabler) zap.Option {
	//nolint:exhaustruct // I'm okay with default encoder configuration values.
	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})

	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, zapcore.NewCore(encoder, sink, level))
	})
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}

	return value
}
