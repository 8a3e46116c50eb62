package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/minewatch/minewatch-data/internal/api"
	"github.com/minewatch/minewatch-data/internal/model"
)

// Snapshot is one poll result: the stats plus where they came from.
type Snapshot struct {
	Stats     model.DashboardStats
	Source    string // "live" or "fallback"
	FetchedAt time.Time
}

// SnapshotHandler receives each poll result.
type SnapshotHandler interface {
	HandleSnapshot(snapshot Snapshot) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(Snapshot) error

func (f SnapshotHandlerFunc) HandleSnapshot(s Snapshot) error {
	return f(s)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 10s)
	Timeout  time.Duration // Per-request timeout (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// fallbackStats is served when the dashboard endpoint cannot be reached.
var fallbackStats = model.DashboardStats{
	TotalSites:         4,
	ActiveSites:        4,
	TotalSensors:       128,
	OnlineSensors:      121,
	OfflineSensors:     7,
	ActiveAlerts:       3,
	CriticalAlerts:     1,
	HighAlerts:         1,
	OverallHealthScore: 94.5,
	OverallRiskScore:   18.0,
	AlertsLast24h:      9,
	IncidentsLast7d:    4,
}

// Poller periodically fetches the dashboard snapshot via REST API.
type Poller struct {
	cfg     Config
	client  *api.Client
	handler SnapshotHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client *api.Client, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started", "interval", p.cfg.Interval)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll fetches one snapshot and hands it to the handler. A failed fetch is
// replaced by the fallback snapshot, never propagated.
func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	snapshot := Snapshot{
		Source:    "live",
		FetchedAt: time.Now(),
	}

	stats, err := p.client.GetDashboardStats(ctx)
	if err != nil {
		p.logger.Warn("dashboard fetch failed, serving fallback snapshot", "err", err)
		snapshot.Stats = fallbackStats
		snapshot.Source = "fallback"
	} else {
		snapshot.Stats = stats
	}

	if p.handler != nil {
		if err := p.handler.HandleSnapshot(snapshot); err != nil {
			p.logger.Warn("snapshot handler failed", "err", err)
		}
	}
}
