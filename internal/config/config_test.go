package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watcher.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-watcher
  site: north-pit
api:
  rest_url: http://monitoring.local:8000
  ws_url: ws://monitoring.local:8000
database:
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-watcher" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-watcher")
	}
	if cfg.API.RestURL != "http://monitoring.local:8000" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "http://monitoring.local:8000")
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_API_TOKEN", "tok-abc")

	yaml := `
instance:
  id: test-watcher
api:
  token: ${TEST_API_TOKEN}
database:
  host: localhost
  name: test_db
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
	if cfg.API.Token != "tok-abc" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "tok-abc")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-watcher
database:
  host: localhost
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.WSURL != DefaultWSURL {
		t.Errorf("API.WSURL = %q, want default %q", cfg.API.WSURL, DefaultWSURL)
	}
	if cfg.Realtime.ConnectPath != DefaultConnectPath {
		t.Errorf("Realtime.ConnectPath = %q, want default %q", cfg.Realtime.ConnectPath, DefaultConnectPath)
	}
	if len(cfg.Realtime.Rooms) != 3 {
		t.Errorf("Realtime.Rooms = %v, want default %v", cfg.Realtime.Rooms, DefaultRooms)
	}
	if cfg.Realtime.ReconnectBaseDelay != time.Second {
		t.Errorf("ReconnectBaseDelay = %v, want 1s", cfg.Realtime.ReconnectBaseDelay)
	}
	if cfg.Realtime.ReconnectMaxDelay != 30*time.Second {
		t.Errorf("ReconnectMaxDelay = %v, want 30s", cfg.Realtime.ReconnectMaxDelay)
	}
	if cfg.Realtime.MaxReconnects != 5 {
		t.Errorf("MaxReconnects = %d, want 5", cfg.Realtime.MaxReconnects)
	}
	if cfg.Poller.Interval != 10*time.Second {
		t.Errorf("Poller.Interval = %v, want 10s", cfg.Poller.Interval)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *WatcherConfig {
		cfg := &WatcherConfig{}
		cfg.Instance.ID = "w1"
		cfg.Database.Host = "localhost"
		cfg.Database.Name = "db"
		cfg.Database.User = "u"
		cfg.Database.Password = "p"
		cfg.applyDefaults()
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := valid()
	cfg.Instance.ID = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing instance.id")
	}

	cfg = valid()
	cfg.API.WSURL = "http://not-a-ws-url"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-websocket ws_url")
	}

	cfg = valid()
	cfg.Realtime.Rooms = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty rooms")
	}

	cfg = valid()
	cfg.Realtime.ReconnectMaxDelay = cfg.Realtime.ReconnectBaseDelay / 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max delay below base delay")
	}

	cfg = valid()
	cfg.Database.Password = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing database password")
	}

	cfg = valid()
	cfg.Database.MinConns = 20
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min_conns > max_conns")
	}
}
