package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/minewatch/minewatch-data/internal/config"
	"github.com/minewatch/minewatch-data/internal/realtime"
)

// envelope wraps a republished frame with the originating watcher instance
// so downstream consumers can attribute (or skip) traffic per watcher.
type envelope struct {
	InstanceID string           `json:"instance_id"`
	Room       string           `json:"room"`
	Message    realtime.Message `json:"message"`
}

// RedisBridge fans incoming frames out to per-room Redis channels.
type RedisBridge struct {
	client     *redis.Client
	prefix     string
	instanceID string
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	active bool

	published int64
	skipped   int64
	errors    int64
}

// NewRedisBridge creates a bridge for the given Redis connection settings.
func NewRedisBridge(cfg config.RedisConfig, logger *slog.Logger) *RedisBridge {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     client,
		prefix:     cfg.Prefix,
		instanceID: uuid.New().String(),
		logger:     logger.With("component", "redis-bridge"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start verifies the Redis connection.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.logger.Info("redis bridge started",
		"instance_id", b.instanceID,
		"prefix", b.prefix,
	)
	return nil
}

// Publish republishes a frame to the Redis channel for its room. Control
// frames have no room and are silently skipped.
func (b *RedisBridge) Publish(msg realtime.Message) error {
	room := roomFor(msg.Type)
	if room == "" {
		b.mu.Lock()
		b.skipped++
		b.mu.Unlock()
		return nil
	}

	env := envelope{
		InstanceID: b.instanceID,
		Room:       room,
		Message:    msg,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	channel := b.prefix + room
	if err := b.client.Publish(b.ctx, channel, data).Err(); err != nil {
		b.mu.Lock()
		b.errors++
		b.mu.Unlock()
		return err
	}

	b.mu.Lock()
	b.published++
	b.mu.Unlock()
	return nil
}

// Stop closes the Redis connection.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	return b.client.Close()
}

// Available reports whether the bridge is connected.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// Stats returns publish counters.
func (b *RedisBridge) Stats() BridgeStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BridgeStats{
		Published: b.published,
		Skipped:   b.skipped,
		Errors:    b.errors,
	}
}

// BridgeStats contains publish counters.
type BridgeStats struct {
	Published int64
	Skipped   int64
	Errors    int64
}

// roomFor maps a frame type to its subscription room. Control frames map
// to the empty string.
func roomFor(msgType string) string {
	switch msgType {
	case "alert":
		return "alerts"
	case "sensor_data":
		return "sensors"
	case "safety":
		return "safety"
	default:
		return ""
	}
}
