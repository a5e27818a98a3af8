package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLevel converts a config log level to a zerolog level. Unknown levels mean info.
func ZerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewZerolog builds the logger of the infrastructure managers: colored console
// output plus plain output to file when one is given. hook may add fields to
// every event.
func NewZerolog(file io.Writer, level string, hook zerolog.HookFunc) zerolog.Logger {
	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        osStdout,
			TimeFormat: time.RFC3339,
		},
	}
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ZerologLevel(level)).
		With().Timestamp().Logger()
	if hook != nil {
		logger = logger.Hook(hook)
	}
	return logger
}
