package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) Config {
	return Config{
		URL:                url,
		Rooms:              []string{"alerts", "sensors", "safety"},
		HandshakeTimeout:   2 * time.Second,
		WriteTimeout:       time.Second,
		ReconnectBaseDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:  80 * time.Millisecond,
		MaxReconnects:      5,
		EventBufferSize:    16,
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestBackoffDelay(t *testing.T) {
	base := 1000 * time.Millisecond
	max := 30000 * time.Millisecond

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1000 * time.Millisecond},
		{1, 2000 * time.Millisecond},
		{2, 4000 * time.Millisecond},
		{3, 8000 * time.Millisecond},
		{4, 16000 * time.Millisecond},
		{5, 30000 * time.Millisecond}, // capped
		{6, 30000 * time.Millisecond},
	}

	for _, tc := range cases {
		if got := backoffDelay(tc.attempt, base, max); got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestClient_SubscribeAnnouncement(t *testing.T) {
	var mu sync.Mutex
	var frames [][]byte

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			frames = append(frames, msg)
			mu.Unlock()
		}
	})
	defer server.Close()

	c := NewClient(testConfig(wsURL(server)), nil)
	c.Start()
	defer c.Stop()

	if !waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) >= 1
	}) {
		t.Fatal("no subscribe announcement received")
	}

	// Settle, then verify exactly one outbound frame was sent.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 1 {
		t.Fatalf("got %d outbound frames, want exactly 1", len(frames))
	}

	var frame subscribeFrame
	if err := json.Unmarshal(frames[0], &frame); err != nil {
		t.Fatalf("unmarshal announcement: %v", err)
	}
	if frame.Type != "subscribe" {
		t.Errorf("Type = %q, want %q", frame.Type, "subscribe")
	}
	want := []string{"alerts", "sensors", "safety"}
	if len(frame.Rooms) != len(want) {
		t.Fatalf("Rooms = %v, want %v", frame.Rooms, want)
	}
	for i, room := range want {
		if frame.Rooms[i] != room {
			t.Errorf("Rooms[%d] = %q, want %q", i, frame.Rooms[i], room)
		}
	}
}

func TestClient_LastMessage(t *testing.T) {
	inbound := `{"type":"alert","event":"new_alert","data":{"id":"ALT-1"},"timestamp":"t1"}`

	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Wait for the subscribe announcement, then push one frame.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(inbound))
		// Keep the connection open.
		conn.ReadMessage()
	})
	defer server.Close()

	c := NewClient(testConfig(wsURL(server)), nil)
	c.Start()
	defer c.Stop()

	if !waitFor(t, time.Second, func() bool {
		_, ok := c.LastMessage()
		return ok
	}) {
		t.Fatal("LastMessage never populated")
	}

	msg, _ := c.LastMessage()
	if msg.Type != "alert" {
		t.Errorf("Type = %q, want %q", msg.Type, "alert")
	}
	if msg.Event != "new_alert" {
		t.Errorf("Event = %q, want %q", msg.Event, "new_alert")
	}
	if string(msg.Data) != `{"id":"ALT-1"}` {
		t.Errorf("Data = %s, want %s", msg.Data, `{"id":"ALT-1"}`)
	}
	if msg.Timestamp != "t1" {
		t.Errorf("Timestamp = %q, want %q", msg.Timestamp, "t1")
	}
	if msg.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should not be zero")
	}

	// The same frame is delivered on the event stream.
	select {
	case ev := <-c.Events():
		if ev.Type != "alert" || ev.Event != "new_alert" {
			t.Errorf("event stream got %s/%s, want alert/new_alert", ev.Type, ev.Event)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for event stream delivery")
	}
}

func TestClient_MalformedFrameDropped(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sensor_data","event":"reading","timestamp":"t0"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{not json at all`))
		conn.ReadMessage()
	})
	defer server.Close()

	c := NewClient(testConfig(wsURL(server)), nil)
	c.Start()
	defer c.Stop()

	if !waitFor(t, time.Second, func() bool {
		_, ok := c.LastMessage()
		return ok
	}) {
		t.Fatal("LastMessage never populated")
	}

	// Let the malformed frame arrive and be dropped.
	time.Sleep(50 * time.Millisecond)

	msg, _ := c.LastMessage()
	if msg.Type != "sensor_data" || msg.Event != "reading" {
		t.Errorf("LastMessage = %s/%s, want sensor_data/reading", msg.Type, msg.Event)
	}
	if got := c.State(); got != StateConnected {
		t.Errorf("State = %q, want %q after malformed frame", got, StateConnected)
	}
}

func TestClient_SendWhileClosed(t *testing.T) {
	c := NewClient(testConfig("ws://localhost:1"), nil)

	// Must neither panic nor change state; the payload is silently dropped.
	c.Send([]byte(`{"type":"ping"}`))

	if got := c.State(); got != StateDisconnected {
		t.Errorf("State = %q, want %q", got, StateDisconnected)
	}
}

func TestClient_StartIdempotent(t *testing.T) {
	var upgrades atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		upgrades.Add(1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := NewClient(testConfig(wsURL(server)), nil)
	c.Start()
	defer c.Stop()

	if !waitFor(t, time.Second, c.IsConnected) {
		t.Fatal("never connected")
	}

	// Start while the transport is open must not create a second transport.
	c.Start()
	c.Start()
	time.Sleep(100 * time.Millisecond)

	if got := upgrades.Load(); got != 1 {
		t.Errorf("transport created %d times, want 1", got)
	}
}

func TestClient_RetryBudget(t *testing.T) {
	var requests atomic.Int32

	// Refuse the upgrade so every attempt fails.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(testConfig(wsURL(server)), nil)
	c.Start()
	defer c.Stop()

	// Initial attempt plus 5 retries, then the client gives up.
	if !waitFor(t, 3*time.Second, func() bool {
		return requests.Load() == 6
	}) {
		t.Fatalf("attempts = %d, want 6", requests.Load())
	}

	// No 6th retry is ever scheduled.
	time.Sleep(300 * time.Millisecond)
	if got := requests.Load(); got != 6 {
		t.Errorf("attempts after budget exhausted = %d, want 6", got)
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("State = %q, want %q after giving up", got, StateDisconnected)
	}

	// An external Start begins a fresh cycle.
	c.Start()
	if !waitFor(t, time.Second, func() bool {
		return requests.Load() > 6
	}) {
		t.Error("Start after exhaustion never attempted a connection")
	}
}

func TestClient_StopCancelsRetry(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(wsURL(server))
	cfg.ReconnectBaseDelay = 50 * time.Millisecond

	c := NewClient(cfg, nil)
	c.Start()

	// First attempt fails and a retry is pending.
	if !waitFor(t, time.Second, func() bool {
		return requests.Load() == 1
	}) {
		t.Fatal("initial attempt never made")
	}

	c.Stop()

	// Well past the scheduled delay: the cancelled timer must not fire.
	time.Sleep(250 * time.Millisecond)
	if got := requests.Load(); got != 1 {
		t.Errorf("attempts after Stop = %d, want 1", got)
	}
}

func TestClient_ReconnectAfterClose(t *testing.T) {
	var upgrades atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		n := upgrades.Add(1)
		if n == 1 {
			// Abrupt close right after the handshake.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := NewClient(testConfig(wsURL(server)), nil)
	c.Start()
	defer c.Stop()

	if !waitFor(t, 2*time.Second, func() bool {
		return upgrades.Load() >= 2 && c.IsConnected()
	}) {
		t.Fatalf("never reconnected (upgrades=%d, state=%s)", upgrades.Load(), c.State())
	}

	// A successful open resets the attempt counter, so the next failure
	// starts backoff from the base delay again.
	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()
	if attempts != 0 {
		t.Errorf("attempts after successful reconnect = %d, want 0", attempts)
	}
}

func TestClient_StopIdempotent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	c := NewClient(testConfig(wsURL(server)), nil)
	c.Start()

	if !waitFor(t, time.Second, c.IsConnected) {
		t.Fatal("never connected")
	}

	c.Stop()
	c.Stop()

	if got := c.State(); got != StateDisconnected {
		t.Errorf("State = %q, want %q", got, StateDisconnected)
	}
}
