package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name        string
		logsDir     string
		sessionName string
		want        string
	}{
		{
			name:        "basic path",
			logsDir:     "npclogs",
			sessionName: "default",
			want:        filepath.Join("npclogs", "npc_engine.default.20260212_213836.log"),
		},
		{
			name:        "relative path with dot",
			logsDir:     "./npclogs",
			sessionName: "frontier",
			want:        filepath.Join(".", "npclogs", "npc_engine.frontier.20260212_213836.log"),
		},
		{
			name:        "absolute path",
			logsDir:     filepath.Join("/var", "log", "npc"),
			sessionName: "default",
			want:        filepath.Join("/var", "log", "npc", "npc_engine.default.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.sessionName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}
