package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minewatch/minewatch-data/internal/api"
	"github.com/minewatch/minewatch-data/internal/bridge"
	"github.com/minewatch/minewatch-data/internal/config"
	"github.com/minewatch/minewatch-data/internal/database"
	"github.com/minewatch/minewatch-data/internal/poller"
	"github.com/minewatch/minewatch-data/internal/realtime"
	"github.com/minewatch/minewatch-data/internal/router"
	"github.com/minewatch/minewatch-data/internal/version"
	"github.com/minewatch/minewatch-data/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/watcher.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting watcher",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"site", cfg.Instance.Site,
		"api_url", cfg.API.RestURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Create API client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		cfg.API.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Realtime subscription client
	rtClient := realtime.NewClient(realtime.Config{
		URL:                connectURL(cfg),
		Rooms:              cfg.Realtime.Rooms,
		HandshakeTimeout:   cfg.Realtime.HandshakeTimeout,
		WriteTimeout:       cfg.Realtime.WriteTimeout,
		ReconnectBaseDelay: cfg.Realtime.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Realtime.ReconnectMaxDelay,
		MaxReconnects:      cfg.Realtime.MaxReconnects,
		EventBufferSize:    cfg.Realtime.EventBufferSize,
	}, logger)

	// Redis fanout bridge. A missing Redis is degraded, not fatal.
	redisBridge := bridge.NewRedisBridge(cfg.Redis, logger)
	if err := redisBridge.Start(); err != nil {
		logger.Warn("redis bridge unavailable, fanout disabled", "error", err)
	}
	defer redisBridge.Stop()

	// Message router fed by the fanout loop below
	routerIn := make(chan realtime.Message, cfg.Realtime.EventBufferSize)
	rtr := router.New(router.Config{
		AlertBufferSize:   cfg.Writers.BufferSize,
		ReadingBufferSize: cfg.Writers.BufferSize,
		SafetyBufferSize:  cfg.Writers.BufferSize,
	}, routerIn, logger)

	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		rtr.Stop(stopCtx)
	}()

	// Batch writers
	writerCfg := writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	alertWriter := writer.NewAlertWriter(writerCfg, rtr.Alerts(), pool, logger)
	readingWriter := writer.NewReadingWriter(writerCfg, rtr.Readings(), pool, logger)

	if err := alertWriter.Start(ctx); err != nil {
		logger.Error("failed to start alert writer", "error", err)
		os.Exit(1)
	}
	if err := readingWriter.Start(ctx); err != nil {
		logger.Error("failed to start reading writer", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		alertWriter.Stop(stopCtx)
		readingWriter.Stop(stopCtx)
	}()

	// Fan incoming frames out to the router and the Redis bridge
	var fanoutWG sync.WaitGroup
	fanoutWG.Add(1)
	go func() {
		defer fanoutWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-rtClient.Events():
				select {
				case routerIn <- msg:
				default:
					logger.Warn("router input full, dropping frame", "type", msg.Type)
				}
				if redisBridge.Available() {
					if err := redisBridge.Publish(msg); err != nil {
						logger.Warn("bridge publish failed", "error", err)
					}
				}
			}
		}
	}()

	// Snapshot poller keeps the latest dashboard snapshot for the health server
	var snapMu sync.RWMutex
	var lastSnapshot poller.Snapshot

	snapPoller := poller.New(poller.Config{
		Interval: cfg.Poller.Interval,
		Timeout:  cfg.Poller.Timeout,
	}, apiClient, poller.SnapshotHandlerFunc(func(s poller.Snapshot) error {
		snapMu.Lock()
		lastSnapshot = s
		snapMu.Unlock()
		logger.Debug("dashboard snapshot",
			"source", s.Source,
			"active_alerts", s.Stats.ActiveAlerts,
			"online_sensors", s.Stats.OnlineSensors,
		)
		return nil
	}), logger)

	if err := snapPoller.Start(ctx); err != nil {
		logger.Error("failed to start snapshot poller", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		snapPoller.Stop(stopCtx)
	}()

	// Health server
	healthPort := 8080
	if cfg.Health.Port > 0 {
		healthPort = cfg.Health.Port
	}

	healthServer := &http.Server{
		Addr: fmt.Sprintf(":%d", healthPort),
		Handler: createHealthHandler(
			pool, rtClient, rtr, redisBridge,
			func() poller.Snapshot {
				snapMu.RLock()
				defer snapMu.RUnlock()
				return lastSnapshot
			},
		),
	}

	go func() {
		logger.Info("starting health server", "port", healthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Connect to the push server last, once every consumer is running
	rtClient.Start()
	defer rtClient.Stop()

	logger.Info("watcher running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", healthPort),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	fanoutWG.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("watcher stopped")
}

// connectURL builds the push server URL, carrying the API token as a query
// parameter when configured.
func connectURL(cfg *config.WatcherConfig) string {
	u := cfg.API.WSURL + cfg.Realtime.ConnectPath
	if cfg.API.Token != "" {
		u += "?token=" + url.QueryEscape(cfg.API.Token)
	}
	return u
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(
	pool interface {
		Ping(context.Context) error
	},
	rtClient *realtime.Client,
	rtr *router.Router,
	redisBridge *bridge.RedisBridge,
	snapshot func() poller.Snapshot,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		// Check realtime subscription
		state := rtClient.State()
		health.Components["realtime"] = string(state)
		if state != realtime.StateConnected {
			health.Status = "degraded"
		}

		// Redis fanout is best-effort
		if redisBridge.Available() {
			health.Components["redis_bridge"] = "connected"
		} else {
			health.Components["redis_bridge"] = "disabled"
		}

		stats := rtr.Stats()
		health.Components["router"] = map[string]int64{
			"received":     stats.Received,
			"routed":       stats.Routed,
			"parse_errors": stats.ParseErrors,
			"skipped":      stats.Skipped,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		s := snapshot()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"source":     s.Source,
			"fetched_at": s.FetchedAt,
			"stats":      s.Stats,
		})
	})

	return mux
}
