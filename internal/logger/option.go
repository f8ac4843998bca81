package logger

import (
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// logFileMaxSizeMB is the size at which the log file is rotated.
	logFileMaxSizeMB = 5
	// logFileMaxBackups is the number of rotated files kept on disk.
	logFileMaxBackups = 3
	// logFileMaxAgeDays is how long rotated files are kept.
	logFileMaxAgeDays = 30
)

// WithFileSink tees every entry into a size-rotated file at path.
// The file uses a plain (uncoloured) console encoding.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithFileSink(path string) zap.Option {
	writer := &lumberjack.Logger{
		Filename:   filepath.Clean(path),
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		MaxAge:     logFileMaxAgeDays,
	}

	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		//nolint:exhaustruct // Default encoder configuration values are fine.
		fileEncoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:          "time",
			MessageKey:       "message",
			LevelKey:         "level",
			NameKey:          "logger",
			LineEnding:       zapcore.DefaultLineEnding,
			EncodeLevel:      zapcore.CapitalLevelEncoder,
			EncodeTime:       zapcore.ISO8601TimeEncoder,
			EncodeDuration:   zapcore.StringDurationEncoder,
			EncodeName:       zapcore.FullNameEncoder,
			ConsoleSeparator: ", ",
		})

		return zapcore.NewTee(core, zapcore.NewCore(fileEncoder, zapcore.AddSync(writer), defaultLevel))
	})
}
