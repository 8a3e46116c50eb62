package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minewatch/minewatch-data/internal/router"
)

// AlertWriter consumes AlertMsg from the router buffer and writes to the alerts table.
type AlertWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the message router
	input *router.Buffer[router.AlertMsg]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []alertRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewAlertWriter creates a new AlertWriter.
func NewAlertWriter(
	cfg WriterConfig,
	input *router.Buffer[router.AlertMsg],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *AlertWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]alertRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming messages and writing to the database.
func (w *AlertWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("alert writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *AlertWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping alert writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("alert writer stopped")
	case <-ctx.Done():
		w.logger.Warn("alert writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *AlertWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop drains the input buffer and accumulates batches.
func (w *AlertWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			msgs := w.input.Drain(w.cfg.BatchSize)
			if len(msgs) == 0 {
				// Buffer empty, wait a bit before trying again
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			for _, msg := range msgs {
				w.handleMessage(msg)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *AlertWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleMessage transforms and adds a message to the batch.
func (w *AlertWriter) handleMessage(msg router.AlertMsg) {
	row := w.transform(msg)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts an AlertMsg to an alertRow.
func (w *AlertWriter) transform(msg router.AlertMsg) alertRow {
	return alertRow{
		ID:          msg.ID.String(),
		SiteID:      msg.SiteID.String(),
		SensorID:    msg.SensorID.String(),
		AlertCode:   msg.AlertCode,
		Title:       msg.Title,
		Severity:    string(msg.Severity),
		Status:      string(msg.Status),
		TriggeredAt: msg.TriggeredAt,
		ReceivedAt:  msg.ReceivedAt.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (w *AlertWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]alertRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed alerts",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *AlertWriter) batchInsert(rows []alertRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO alerts (id, site_id, sensor_id, alert_code, title, severity, status, triggered_at, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.SiteID, r.SensorID, r.AlertCode, r.Title, r.Severity, r.Status, r.TriggeredAt, r.ReceivedAt)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
