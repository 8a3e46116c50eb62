package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "http://localhost:8000"
	DefaultWSURL              = "ws://localhost:8000" // local-development fallback
	DefaultConnectPath        = "/api/v1/ws/connect"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultMaxReconnects      = 5
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultEventBufferSize    = 256
	DefaultPollInterval       = 10 * time.Second
	DefaultPollTimeout        = 5 * time.Second
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultBufferSize         = 5000
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisPrefix        = "minewatch:"
	DefaultHealthPort         = 8080
	DefaultHealthPath         = "/health"
)

// DefaultRooms is the fixed subscription set declared on every connection.
var DefaultRooms = []string{"alerts", "sensors", "safety"}

func (c *WatcherConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Realtime defaults
	if c.Realtime.ConnectPath == "" {
		c.Realtime.ConnectPath = DefaultConnectPath
	}
	if len(c.Realtime.Rooms) == 0 {
		c.Realtime.Rooms = append([]string(nil), DefaultRooms...)
	}
	if c.Realtime.ReconnectBaseDelay == 0 {
		c.Realtime.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Realtime.ReconnectMaxDelay == 0 {
		c.Realtime.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Realtime.MaxReconnects == 0 {
		c.Realtime.MaxReconnects = DefaultMaxReconnects
	}
	if c.Realtime.HandshakeTimeout == 0 {
		c.Realtime.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = DefaultWriteTimeout
	}
	if c.Realtime.EventBufferSize == 0 {
		c.Realtime.EventBufferSize = DefaultEventBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = DefaultRedisPrefix
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}
