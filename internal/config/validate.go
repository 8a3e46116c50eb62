package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *WatcherConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !strings.HasPrefix(c.API.WSURL, "ws://") && !strings.HasPrefix(c.API.WSURL, "wss://") {
		return fmt.Errorf("api.ws_url must be a ws:// or wss:// address, got %q", c.API.WSURL)
	}
	if !strings.HasPrefix(c.Realtime.ConnectPath, "/") {
		return fmt.Errorf("realtime.connect_path must start with /, got %q", c.Realtime.ConnectPath)
	}
	if len(c.Realtime.Rooms) == 0 {
		return errors.New("realtime.rooms must not be empty")
	}
	if c.Realtime.ReconnectBaseDelay <= 0 {
		return errors.New("realtime.reconnect_base_delay must be > 0")
	}
	if c.Realtime.ReconnectMaxDelay < c.Realtime.ReconnectBaseDelay {
		return errors.New("realtime.reconnect_max_delay must be >= reconnect_base_delay")
	}
	if c.Realtime.MaxReconnects < 0 {
		return errors.New("realtime.max_reconnects must be >= 0")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
