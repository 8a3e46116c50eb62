package writer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minewatch/minewatch-data/internal/router"
)

// ReadingWriter consumes ReadingMsg from the router buffer and writes to the
// sensor_readings hypertable.
type ReadingWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the message router
	input *router.Buffer[router.ReadingMsg]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []readingRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewReadingWriter creates a new ReadingWriter.
func NewReadingWriter(
	cfg WriterConfig,
	input *router.Buffer[router.ReadingMsg],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *ReadingWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]readingRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming messages and writing to the database.
func (w *ReadingWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("reading writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *ReadingWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping reading writer")

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
		w.logger.Info("reading writer stopped")
	case <-ctx.Done():
		w.logger.Warn("reading writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *ReadingWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop drains the input buffer and accumulates batches.
func (w *ReadingWriter) consumeLoop() {
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
func (w *ReadingWriter) flushLoop() {
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
func (w *ReadingWriter) handleMessage(msg router.ReadingMsg) {
	row := w.transform(msg)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a ReadingMsg to a readingRow. Channel values are
// serialized to JSON for the jsonb column.
func (w *ReadingWriter) transform(msg router.ReadingMsg) readingRow {
	values := []byte("{}")
	if len(msg.Values) > 0 {
		if b, err := json.Marshal(msg.Values); err == nil {
			values = b
		}
	}
	return readingRow{
		SensorUID:  msg.SensorUID,
		SiteID:     msg.SiteID.String(),
		Values:     values,
		Quality:    msg.Quality,
		MeasuredAt: msg.MeasuredAt,
		ReceivedAt: msg.ReceivedAt.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (w *ReadingWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]readingRow, 0, w.cfg.BatchSize)
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

	w.logger.Debug("flushed readings",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *ReadingWriter) batchInsert(rows []readingRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO sensor_readings (sensor_uid, site_id, channel_values, quality, measured_at, received_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sensor_uid, measured_at) DO NOTHING
		`, r.SensorUID, r.SiteID, r.Values, r.Quality, r.MeasuredAt, r.ReceivedAt)
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
