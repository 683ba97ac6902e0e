package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// InitLogger configures the process logger: console output plus an optional
// rotated log file. Safe to call more than once; the last call wins.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		})
	}

	logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger().Level(parseLevel(level))
}

// SetLogLevel changes the minimum level of the current logger.
func SetLogLevel(level string) {
	logger = logger.Level(parseLevel(level))
}

// SetLoggerForTest replaces the package logger. Test helper.
func SetLoggerForTest(l zerolog.Logger) {
	logger = l
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

// Debug logs at debug level with alternating key-value pairs.
func Debug(msg string, kv ...interface{}) { emit(logger.Debug(), msg, kv) }

// Info logs at info level with alternating key-value pairs.
func Info(msg string, kv ...interface{}) { emit(logger.Info(), msg, kv) }

// Warn logs at warn level with alternating key-value pairs.
func Warn(msg string, kv ...interface{}) { emit(logger.Warn(), msg, kv) }

// Error logs at error level with alternating key-value pairs.
func Error(msg string, kv ...interface{}) { emit(logger.Error(), msg, kv) }
