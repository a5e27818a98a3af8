package websocket

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dynencounters/npc-engine/pkg/streaming"
)

const (
	sendChSize   = 10_000
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// initialBackoff is the first reconnect delay; tests shorten it.
var initialBackoff = time.Second

// replayLog holds the messages a collector needs before it can make sense of
// events: the session header followed by the prefab catalog. Every new
// connection receives it first.
type replayLog struct {
	start   []byte
	order   []string
	prefabs map[string][]byte
}

func (r *replayLog) setPrefab(name string, msg []byte) {
	if r.prefabs == nil {
		r.prefabs = make(map[string][]byte)
	}
	if _, ok := r.prefabs[name]; !ok {
		r.order = append(r.order, name)
	}
	r.prefabs[name] = msg
}

func (r *replayLog) messages() [][]byte {
	if r.start == nil {
		return nil
	}
	out := make([][]byte, 0, 1+len(r.order))
	out = append(out, r.start)
	for _, name := range r.order {
		out = append(out, r.prefabs[name])
	}
	return out
}

func (r *replayLog) reset() {
	*r = replayLog{}
}

// backoff doubles from initialBackoff up to maxBackoff.
type backoff struct{ next time.Duration }

func (b *backoff) wait() time.Duration {
	if b.next == 0 {
		b.next = initialBackoff
	}
	d := b.next
	b.next = min(b.next*2, maxBackoff)
	return d
}

// connection owns one WebSocket at a time. A single write goroutine drains
// sendCh; a read goroutine routes acks. Either one failing triggers reconnect.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	stop   chan struct{} // closed when conn is replaced
	replay replayLog
	closed bool

	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{}

	dropped    atomic.Int64
	reconnects atomic.Int64

	wsURL  string
	secret string
	logger zerolog.Logger
}

func newConnection(logger zerolog.Logger) *connection {
	return &connection{
		sendCh: make(chan []byte, sendChSize),
		ackCh:  make(chan streaming.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach installs conn and starts its loops.
func (c *connection) attach(conn *ws.Conn) {
	stop := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.stop = stop
	c.mu.Unlock()

	go c.writeLoop(conn, stop)
	go c.readLoop(conn)
}

func (c *connection) write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := c.write(conn, data); err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket write error")
				c.send(data) // retried on the next connection
				go c.reconnect(conn)
				return
			}
		}
	}
}

func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn().Err(err).Msg("WebSocket read error")
				go c.reconnect(conn)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug().Str("raw", string(message)).Msg("Non-ack message received")
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug().Str("for", ack.For).Msg("Ack channel full, dropping")
		}
	}
}

// reconnect replaces broken. Both loops of a connection may fail; only the
// first call for a given socket does the work.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = broken.Close()
	close(c.stop)
	c.conn = nil
	c.mu.Unlock()

	var b backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		wait := b.wait()
		c.logger.Info().Int("attempt", attempt).Dur("backoff", wait).Msg("Reconnecting to WebSocket")
		select {
		case <-c.done:
			return
		case <-time.After(wait):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect dial failed")
			continue
		}

		c.mu.Lock()
		replay := c.replay.messages()
		c.mu.Unlock()
		if err := c.replayTo(conn, replay); err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Replay after reconnect failed")
			_ = conn.Close()
			continue
		}

		c.reconnects.Add(1)
		c.attach(conn)
		c.logger.Info().Int("attempt", attempt).Int("replayed", len(replay)).Msg("WebSocket reconnected")
		return
	}

	c.logger.Error().Int("maxAttempts", maxReconnect).Msg("WebSocket reconnect failed after max attempts")
}

func (c *connection) replayTo(conn *ws.Conn, msgs [][]byte) error {
	for _, m := range msgs {
		if err := c.write(conn, m); err != nil {
			return err
		}
	}
	return nil
}

// rememberStart records the session header for replay.
func (c *connection) rememberStart(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replay.start = msg
}

// rememberPrefab records the latest definition of a prefab for replay.
func (c *connection) rememberPrefab(name string, msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replay.setPrefab(name, msg)
}

func (c *connection) forgetReplay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replay.reset()
}

// send queues data for the write loop without blocking. It reports false
// and counts the message as dropped when the queue is full.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		if c.dropped.Add(1) == 1 {
			c.logger.Warn().Msg("WebSocket send channel full, dropping messages")
		}
		return false
	}
}

func (c *connection) pending() int {
	return len(c.sendCh)
}

// sendAndWait queues data and blocks until the server acks ackFor or timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if !c.send(data) {
		return fmt.Errorf("%w: %s", ErrSendBufferFull, ackFor)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops every goroutine.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return conn.Close()
}
