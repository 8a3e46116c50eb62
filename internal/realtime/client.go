package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client maintains a best-effort-persistent connection to the push server.
//
// One Client owns at most one live transport and one pending retry timer at
// any time. Callers own one Client per logical session; Start and Stop may
// be called repeatedly in either order.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	attempts int         // consecutive failed connection attempts
	retry    *time.Timer // pending reconnect, nil when none scheduled
	gen      int         // connection generation; stale callbacks check it
	stopped  bool
	last     *Message

	// Write serialization
	writeMu sync.Mutex

	events chan Message
}

// NewClient creates a client. It does not connect; call Start.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if len(cfg.Rooms) == 0 {
		cfg.Rooms = def.Rooms
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = def.MaxReconnects
	}
	if cfg.EventBufferSize == 0 {
		cfg.EventBufferSize = def.EventBufferSize
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		state:  StateDisconnected,
		events: make(chan Message, cfg.EventBufferSize),
	}
}

// Start establishes the connection. It returns immediately; progress is
// observable via State(). Calling Start while a transport is open or an
// attempt is in flight is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if c.conn != nil || c.state == StateConnecting {
		c.mu.Unlock()
		c.logger.Debug("start ignored, transport already open or connecting")
		return
	}
	c.stopped = false
	c.attempts = 0
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.mu.Unlock()

	go c.dial(gen)
}

// Stop tears the session down: cancels any pending retry timer and closes
// the transport. Safe to call any number of times, on any exit path.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	c.gen++

	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.logger.Debug("realtime client stopped")
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is open and the subscription
// announcement has been sent.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// LastMessage returns the most recently parsed inbound message. Each new
// arrival overwrites the previous one; intermediate messages are not
// retained for infrequent pollers.
func (c *Client) LastMessage() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Message{}, false
	}
	return *c.last, true
}

// Events returns the inbound frame stream. Frames are dropped, with a
// warning, when the buffer is full.
func (c *Client) Events() <-chan Message {
	return c.events
}

// Send transmits payload over the live transport. When the transport is not
// open the payload is dropped with a logged warning; sends never queue and
// never return an error to the caller.
func (c *Client) Send(payload []byte) {
	c.mu.Lock()
	conn := c.conn
	open := conn != nil && c.state == StateConnected
	c.mu.Unlock()

	if !open {
		c.logger.Warn("send dropped, transport not open")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Warn("send failed", "error", err)
	}
}

// dial opens the transport for generation gen.
func (c *Client) dial(gen int) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.Dial(c.cfg.URL, nil)

	c.mu.Lock()
	if c.stopped || gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		c.state = StateError
		c.logger.Warn("connect failed", "url", c.cfg.URL, "error", err)
		c.scheduleRetryLocked()
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.cfg.URL, "rooms", c.cfg.Rooms)

	if err := c.announce(conn); err != nil {
		c.logger.Warn("subscribe announcement failed", "error", err)
	}

	go c.readLoop(conn, gen)
}

// announce sends the room subscription frame, exactly once per connection.
func (c *Client) announce(conn *websocket.Conn) error {
	data, err := json.Marshal(subscribeFrame{Type: "subscribe", Rooms: c.cfg.Rooms})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop consumes inbound frames until the transport fails or the
// generation is superseded.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			c.handleClose(gen, err)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			// A bad frame never affects connection state.
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		msg.ReceivedAt = receivedAt

		c.mu.Lock()
		if c.stopped || gen != c.gen {
			c.mu.Unlock()
			return
		}
		m := msg
		c.last = &m
		c.mu.Unlock()

		select {
		case c.events <- msg:
		default:
			c.logger.Warn("event buffer full, dropping frame",
				"type", msg.Type,
				"event", msg.Event,
			)
		}
	}
}

// handleClose records the loss of the transport and schedules a reconnect
// while budget remains.
func (c *Client) handleClose(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || gen != c.gen {
		return
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.logger.Warn("connection closed", "error", err)
	c.scheduleRetryLocked()
}

// scheduleRetryLocked arms the reconnect timer. Caller holds c.mu.
func (c *Client) scheduleRetryLocked() {
	if c.attempts >= c.cfg.MaxReconnects {
		c.state = StateDisconnected
		c.logger.Warn("reconnect budget exhausted, staying disconnected",
			"attempts", c.attempts,
		)
		return
	}

	delay := backoffDelay(c.attempts, c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay)
	c.logger.Info("scheduling reconnect",
		"attempt", c.attempts+1,
		"max_attempts", c.cfg.MaxReconnects,
		"delay", delay,
	)
	c.retry = time.AfterFunc(delay, c.retryFire)
}

// retryFire runs when the reconnect timer elapses.
func (c *Client) retryFire() {
	c.mu.Lock()
	c.retry = nil
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		// Transport already open, nothing to do.
		c.mu.Unlock()
		return
	}
	c.attempts++
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.mu.Unlock()

	c.dial(gen)
}

// backoffDelay returns min(base * 2^attempt, max).
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
