package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minewatch/minewatch-data/internal/model"
	"github.com/minewatch/minewatch-data/internal/realtime"
)

// Router parses realtime frames and routes them to typed buffers.
type Router struct {
	cfg    Config
	logger *slog.Logger

	input <-chan realtime.Message

	alertBuf   *Buffer[AlertMsg]
	readingBuf *Buffer[ReadingMsg]
	safetyBuf  *Buffer[SafetyMsg]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	received    int64
	routed      int64
	parseErrors int64
	skipped     int64
}

// Stats contains runtime counters.
type Stats struct {
	Received    int64
	Routed      int64
	ParseErrors int64
	Skipped     int64
	AlertBuf    BufferStats
	ReadingBuf  BufferStats
	SafetyBuf   BufferStats
}

// New creates a router reading from input.
func New(cfg Config, input <-chan realtime.Message, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:        cfg,
		logger:     logger,
		input:      input,
		alertBuf:   NewBuffer[AlertMsg](cfg.AlertBufferSize),
		readingBuf: NewBuffer[ReadingMsg](cfg.ReadingBufferSize),
		safetyBuf:  NewBuffer[SafetyMsg](cfg.SafetyBufferSize),
	}
}

// Start begins routing frames.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("router started")
	return nil
}

// Stop shuts the router down and closes the output buffers.
func (r *Router) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("router stopped")
	case <-ctx.Done():
		r.logger.Warn("router stop timed out")
	}

	r.alertBuf.Close()
	r.readingBuf.Close()
	r.safetyBuf.Close()
	return nil
}

// Alerts returns the parsed alert buffer.
func (r *Router) Alerts() *Buffer[AlertMsg] { return r.alertBuf }

// Readings returns the parsed sensor reading buffer.
func (r *Router) Readings() *Buffer[ReadingMsg] { return r.readingBuf }

// Safety returns the parsed safety event buffer.
func (r *Router) Safety() *Buffer[SafetyMsg] { return r.safetyBuf }

// Stats returns current counters.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Received:    r.received,
		Routed:      r.routed,
		ParseErrors: r.parseErrors,
		Skipped:     r.skipped,
		AlertBuf:    r.alertBuf.Stats(),
		ReadingBuf:  r.readingBuf.Stats(),
		SafetyBuf:   r.safetyBuf.Stats(),
	}
}

// routeLoop is the main routing goroutine.
func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.Route(msg)
		}
	}
}

// Route parses and routes a single frame.
func (r *Router) Route(msg realtime.Message) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	var sent bool

	switch msg.Type {
	case "alert":
		parsed, err := parseAlert(msg)
		if err != nil {
			r.logger.Warn("failed to parse alert frame", "event", msg.Event, "error", err)
			r.countParseError()
			return
		}
		sent = r.alertBuf.Put(parsed)

	case "sensor_data":
		parsed, err := parseReading(msg)
		if err != nil {
			r.logger.Warn("failed to parse sensor frame", "event", msg.Event, "error", err)
			r.countParseError()
			return
		}
		sent = r.readingBuf.Put(parsed)

	case "safety":
		parsed, err := parseSafety(msg)
		if err != nil {
			r.logger.Warn("failed to parse safety frame", "event", msg.Event, "error", err)
			r.countParseError()
			return
		}
		sent = r.safetyBuf.Put(parsed)

	case "connected", "subscribed", "unsubscribed", "pong", "keepalive", "error":
		// Control traffic, nothing to route.
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		return

	default:
		r.logger.Debug("skipping frame type", "type", msg.Type)
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		return
	}

	if sent {
		r.mu.Lock()
		r.routed++
		r.mu.Unlock()
	}
}

func (r *Router) countParseError() {
	r.mu.Lock()
	r.parseErrors++
	r.mu.Unlock()
}

// parseAlert converts an alert frame into an AlertMsg.
func parseAlert(msg realtime.Message) (AlertMsg, error) {
	var wire alertWire
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		return AlertMsg{}, err
	}

	return AlertMsg{
		ID:          parseUUID(wire.ID),
		SiteID:      parseUUID(wire.SiteID),
		SensorID:    parseUUID(wire.SensorID),
		AlertCode:   wire.AlertCode,
		Title:       wire.Title,
		Severity:    model.Severity(wire.Severity),
		Status:      model.AlertStatus(wire.Status),
		TriggeredAt: parseTimestamp(wire.TriggeredAt, msg.ReceivedAt),
		ReceivedAt:  msg.ReceivedAt,
	}, nil
}

// parseReading converts a sensor_data frame into a ReadingMsg.
func parseReading(msg realtime.Message) (ReadingMsg, error) {
	var wire readingWire
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		return ReadingMsg{}, err
	}

	return ReadingMsg{
		SensorUID:  wire.SensorUID,
		SiteID:     parseUUID(wire.SiteID),
		Values:     wire.Values,
		Quality:    wire.Quality,
		MeasuredAt: parseTimestamp(wire.Timestamp, msg.ReceivedAt),
		ReceivedAt: msg.ReceivedAt,
	}, nil
}

// parseSafety converts a safety frame into a SafetyMsg.
func parseSafety(msg realtime.Message) (SafetyMsg, error) {
	var wire safetyWire
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		return SafetyMsg{}, err
	}

	return SafetyMsg{
		Event:      msg.Event,
		SiteID:     parseUUID(wire.SiteID),
		Detail:     wire.Detail,
		Priority:   wire.Priority,
		ReceivedAt: msg.ReceivedAt,
	}, nil
}

// parseUUID returns the zero UUID for empty or malformed input.
func parseUUID(s string) uuid.UUID {
	if s == "" {
		return uuid.UUID{}
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}
	}
	return id
}

// parseTimestamp converts an RFC 3339 string to µs since epoch, falling back
// to the local receive time when the field is missing or malformed.
func parseTimestamp(s string, fallback time.Time) int64 {
	if s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UnixMicro()
		}
	}
	return fallback.UnixMicro()
}
