package config

import "time"

// WatcherConfig is the root configuration for a watcher instance.
type WatcherConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Poller   PollerConfig   `yaml:"poller"`
	Writers  WriterConfig   `yaml:"writers"`
	Database DBConfig       `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this watcher.
type InstanceConfig struct {
	ID   string `yaml:"id"`
	Site string `yaml:"site"`
}

// APIConfig holds monitoring platform API settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Token      string        `yaml:"token"` // Bearer token for REST and WebSocket auth
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// RealtimeConfig holds realtime subscription client settings.
type RealtimeConfig struct {
	ConnectPath        string        `yaml:"connect_path"`
	Rooms              []string      `yaml:"rooms"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnects      int           `yaml:"max_reconnects"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	EventBufferSize    int           `yaml:"event_buffer_size"`
}

// PollerConfig holds dashboard snapshot poller settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DBConfig holds the TimescaleDB connection for alert and reading history.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the pub/sub fanout connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HealthConfig holds the local health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}
