package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGelfHandler returns a JSON handler shipping every record to a Graylog
// UDP input at address. Close the returned closer on shutdown.
func NewGelfHandler(address, level string) (slog.Handler, io.Closer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gelf writer for %s: %w", address, err)
	}
	w.Facility = "npc-engine"

	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}), w, nil
}
