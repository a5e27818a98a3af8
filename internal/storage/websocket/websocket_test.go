package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynencounters/npc-engine/internal/prefab"
	"github.com/dynencounters/npc-engine/internal/session"
	"github.com/dynencounters/npc-engine/pkg/core"
	"github.com/dynencounters/npc-engine/pkg/streaming"
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_session/end_session.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.secret.Store(r.URL.Query().Get("secret"))
		ml.connections.Add(1)
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				ack := streaming.AckMessage{Type: streaming.TypeAck, For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu          sync.Mutex
	messages    []streaming.Envelope
	secret      atomic.Value
	connections atomic.Int32
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) count(msgType string) int {
	n := 0
	for _, env := range m.all() {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testSession() session.Session {
	return session.Session{ID: uuid.New(), Name: "stream", StartedAt: time.Now().UTC()}
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"}, zerolog.Nop())
	require.NoError(t, b.Init())
	defer b.Close()

	s := testSession()
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.EndSession())

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[len(msgs)-1].Type)
	assert.Equal(t, "test", ml.secret.Load())

	var start streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, s.ID.String(), start.ID)
	assert.Equal(t, "stream", start.Name)

	b.conn.mu.Lock()
	assert.Nil(t, b.conn.replay.messages())
	b.conn.mu.Unlock()
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"}, zerolog.Nop())
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(testSession()))

	require.NoError(t, b.RecordShot(&core.Shot{OriginID: 1, TargetID: 2, WeaponName: "Laser"}))
	require.NoError(t, b.RecordDestruction(&core.DestructionEvent{ConstructID: 1}))
	require.NoError(t, b.RecordRadarScan(&core.RadarScan{ConstructID: 1}))
	require.NoError(t, b.RecordPerformance(&core.EnginePerformance{Constructs: 2}))

	require.NoError(t, b.EndSession())

	// Give a moment for all messages to arrive at server.
	assert.Eventually(t, func() bool { return ml.count(streaming.TypePerformance) == 1 }, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, ml.count(streaming.TypeStartSession))
	assert.Equal(t, 1, ml.count(streaming.TypeEndSession))
	assert.Equal(t, 1, ml.count(streaming.TypeShot))
	assert.Equal(t, 1, ml.count(streaming.TypeDestruction))
	assert.Equal(t, 1, ml.count(streaming.TypeRadarScan))

	for _, env := range ml.all() {
		if env.Type == streaming.TypeShot {
			var shot core.Shot
			require.NoError(t, json.Unmarshal(env.Payload, &shot))
			assert.Equal(t, "Laser", shot.WeaponName)
		}
	}
}

func TestPrefabsAreKeptLocally(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, zerolog.Nop())
	require.NoError(t, b.Init())
	defer b.Close()

	def := &prefab.Definition{
		Name:           "pirate",
		AmmoTier:       1,
		AmmoVariant:    "Kinetic",
		MaxWeaponCount: 1,
		Behaviors:      []string{prefab.BehaviorAlive},
	}
	require.NoError(t, b.SavePrefab(def))
	assert.ErrorIs(t, b.SavePrefab(&prefab.Definition{Name: "bad"}), prefab.ErrInvalidPrefab)

	defs, err := b.Prefabs()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "pirate", defs[0].Name)

	assert.Eventually(t, func() bool { return ml.count(streaming.TypePrefab) == 1 }, time.Second, 10*time.Millisecond)
}

func TestInit_DialError(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/none"}, zerolog.Nop())
	assert.ErrorContains(t, b.Init(), "websocket dial failed")
}

func TestSendBufferFull(t *testing.T) {
	// never dialed, so nothing drains the send channel
	b := New(Config{}, zerolog.Nop())
	for i := 0; i < sendChSize; i++ {
		require.NoError(t, b.RecordRadarScan(&core.RadarScan{}))
	}
	assert.ErrorIs(t, b.RecordRadarScan(&core.RadarScan{}), ErrSendBufferFull)
	assert.ErrorIs(t, b.RecordShot(&core.Shot{}), ErrSendBufferFull)
	assert.Equal(t, sendChSize, b.PendingWrites())
	assert.Equal(t, int64(2), b.Dropped())
}

func TestReconnectReplaysSessionAndPrefabs(t *testing.T) {
	initialBackoff = 10 * time.Millisecond
	t.Cleanup(func() { initialBackoff = time.Second })

	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, zerolog.Nop())
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.StartSession(testSession()))
	def := prefab.Definition{
		Name:           "pirate",
		AmmoTier:       1,
		AmmoVariant:    "Kinetic",
		MaxWeaponCount: 1,
		Behaviors:      []string{prefab.BehaviorAlive},
	}
	require.NoError(t, b.SavePrefab(&def))
	def.MaxWeaponCount = 2
	require.NoError(t, b.SavePrefab(&def))
	assert.Eventually(t, func() bool { return ml.count(streaming.TypePrefab) == 2 }, time.Second, 10*time.Millisecond)

	// drop the client side of the connection
	b.conn.mu.Lock()
	_ = b.conn.conn.Close()
	b.conn.mu.Unlock()

	assert.Eventually(t, func() bool {
		return ml.count(streaming.TypeStartSession) == 2 && ml.count(streaming.TypePrefab) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), ml.connections.Load())
	assert.Equal(t, int64(1), b.Reconnects())

	// only the latest definition of a prefab is replayed
	msgs := ml.all()
	var replayed prefab.Definition
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &replayed))
	assert.Equal(t, 2, replayed.MaxWeaponCount)
}

func TestBackoffDoublesUpToMax(t *testing.T) {
	initialBackoff = 10 * time.Second
	t.Cleanup(func() { initialBackoff = time.Second })

	var b backoff
	assert.Equal(t, 10*time.Second, b.wait())
	assert.Equal(t, 20*time.Second, b.wait())
	assert.Equal(t, maxBackoff, b.wait())
	assert.Equal(t, maxBackoff, b.wait())
}

func TestCloseIsIdempotent(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, zerolog.Nop())
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
