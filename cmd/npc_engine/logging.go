package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/dynencounters/npc-engine/internal/config"
	"github.com/dynencounters/npc-engine/internal/logging"
	intOtel "github.com/dynencounters/npc-engine/internal/otel"
	"github.com/dynencounters/npc-engine/internal/session"
)

// logSinks holds every log sink of one run so they can be flushed in order.
type logSinks struct {
	slog     *logging.SlogManager
	logger   *slog.Logger
	zerolog  zerolog.Logger
	file     *os.File
	filePath string
	otel     *intOtel.Provider
	gelf     io.Closer
}

func initLogging(ctx context.Context, s session.Session) (*logSinks, error) {
	l := &logSinks{slog: logging.NewSlogManager()}
	level := config.GetString("logLevel")

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	l.filePath = logging.LogFilePath(logsDir, s.Name, s.StartedAt)
	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	l.file = f

	// file only until the optional sinks are up
	l.slog.Setup(f, level, nil)
	l.logger = l.slog.Logger()

	l.otel, err = intOtel.New(ctx, intOtel.FromConfig(config.GetOTelConfig(), f))
	if err != nil {
		l.logger.Error("Failed to initialize OTel provider", "error", err)
	} else if l.otel.Enabled() {
		l.logger.Info("OTel provider initialized", "file", l.filePath)
	}

	var extra []slog.Handler
	if config.GetBool("graylog.enabled") {
		addr := config.GetString("graylog.address")
		h, closer, err := logging.NewGelfHandler(addr, level)
		if err != nil {
			l.logger.Warn("Graylog disabled", "error", err)
		} else {
			extra = append(extra, h)
			l.gelf = closer
		}
	}

	var provider *sdklog.LoggerProvider
	if l.otel != nil {
		provider = l.otel.LoggerProvider()
	}
	l.slog.Setup(f, level, provider, extra...)
	l.logger = l.slog.Logger()
	slog.SetDefault(l.logger)

	sessionID := s.ID.String()
	l.zerolog = logging.NewZerolog(f, level, func(e *zerolog.Event, _ zerolog.Level, _ string) {
		e.Str("session", sessionID)
	})
	return l, nil
}

// close flushes every sink. The log file is closed last.
func (l *logSinks) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if l.otel != nil {
		if err := l.otel.Shutdown(ctx); err != nil {
			l.logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if err := l.slog.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flushing logs:", err)
	}
	if l.gelf != nil {
		_ = l.gelf.Close()
	}
	_ = l.file.Close()
}
