// Package websocket streams engine telemetry to a remote collector.
package websocket

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/pkg/core"
	"github.com/dynencounters/npc-engine/pkg/streaming"
)

var ErrSendBufferFull = errors.New("websocket send buffer full")

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session data over WebSocket. The stream is write-only, so
// Prefabs returns what was saved through this backend.
type Backend struct {
	conn *connection
	cfg  Config

	mu      sync.RWMutex
	prefabs map[string]prefab.Definition
}

// New creates a new WebSocket storage backend.
func New(cfg Config, log zerolog.Logger) *Backend {
	return &Backend{
		conn:    newConnection(log.With().Str("component", "websocket").Logger()),
		cfg:     cfg,
		prefabs: make(map[string]prefab.Definition),
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// PendingWrites returns the number of messages not yet written to the socket.
func (b *Backend) PendingWrites() int {
	return b.conn.pending()
}

// Dropped returns how many messages were discarded because the send queue was full.
func (b *Backend) Dropped() int64 {
	return b.conn.dropped.Load()
}

// Reconnects returns how many times the connection was re-established.
func (b *Backend) Reconnects() int64 {
	return b.conn.reconnects.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	if !b.conn.send(data) {
		return fmt.Errorf("%w: %s", ErrSendBufferFull, msgType)
	}
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// StartSession sends the session header and waits for server ack.
func (b *Backend) StartSession(s session.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{
		ID:        s.ID.String(),
		Name:      s.Name,
		StartedAt: s.StartedAt,
	})
	if err != nil {
		return err
	}

	b.conn.rememberStart(data)
	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	err := b.sendEnvelopeAndWait(streaming.TypeEndSession, nil)

	b.conn.forgetReplay()
	return err
}

// SavePrefab streams the definition and keeps it for Prefabs.
func (b *Backend) SavePrefab(d *prefab.Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	data, err := marshalEnvelope(streaming.TypePrefab, d)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.prefabs[d.Name] = *d
	b.mu.Unlock()

	b.conn.rememberPrefab(d.Name, data)
	if !b.conn.send(data) {
		return fmt.Errorf("%w: %s", ErrSendBufferFull, streaming.TypePrefab)
	}
	return nil
}

func (b *Backend) Prefabs() ([]prefab.Definition, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]prefab.Definition, 0, len(b.prefabs))
	for _, d := range b.prefabs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b prefab.Definition) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (b *Backend) RecordShot(s *core.Shot) error {
	return b.sendEnvelope(streaming.TypeShot, s)
}

func (b *Backend) RecordDestruction(e *core.DestructionEvent) error {
	return b.sendEnvelope(streaming.TypeDestruction, e)
}

func (b *Backend) RecordRadarScan(s *core.RadarScan) error {
	return b.sendEnvelope(streaming.TypeRadarScan, s)
}

func (b *Backend) RecordPerformance(p *core.EnginePerformance) error {
	return b.sendEnvelope(streaming.TypePerformance, p)
}
