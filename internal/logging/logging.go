// Package logging wires slog handlers (console, file, OTel, Graylog) and the
// zerolog adapter used by the dispatcher.
package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the log file path of a session using OS-appropriate separators.
func LogFilePath(logsDir, sessionName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("npc_engine.%s.%s.log", sessionName, sessionStart.Format("20060102_150405")),
	)
}
