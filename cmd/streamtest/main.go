// streamtest connects to the monitoring platform push server and streams
// parsed frames to the console.
// Usage: go run ./cmd/streamtest --config configs/watcher.local.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minewatch/minewatch-data/internal/config"
	"github.com/minewatch/minewatch-data/internal/realtime"
)

func main() {
	configPath := flag.String("config", "configs/watcher.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	wsURL := cfg.API.WSURL + cfg.Realtime.ConnectPath
	if cfg.API.Token != "" {
		wsURL += "?token=" + url.QueryEscape(cfg.API.Token)
	}

	client := realtime.NewClient(realtime.Config{
		URL:                wsURL,
		Rooms:              cfg.Realtime.Rooms,
		ReconnectBaseDelay: cfg.Realtime.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Realtime.ReconnectMaxDelay,
		MaxReconnects:      cfg.Realtime.MaxReconnects,
	}, logger)

	client.Start()
	defer client.Stop()

	logger.Info("streaming frames", "url", wsURL, "rooms", cfg.Realtime.Rooms)

	var count int
	for {
		select {
		case <-ctx.Done():
			logger.Info("done", "frames", count)
			return
		case msg := <-client.Events():
			count++
			if *verbose {
				out, _ := json.Marshal(msg)
				fmt.Println(string(out))
			} else {
				fmt.Printf("%s  type=%-12s event=%-20s bytes=%d\n",
					msg.ReceivedAt.Format(time.TimeOnly),
					msg.Type, msg.Event, len(msg.Data),
				)
			}
		}
	}
}
