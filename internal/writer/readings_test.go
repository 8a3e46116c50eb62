package writer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/minewatch/minewatch-data/internal/router"
)

func TestReadingWriter_Transform(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := router.NewBuffer[router.ReadingMsg](10)
	w := NewReadingWriter(cfg, input, nil, nil)

	siteID := uuid.MustParse("1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed")
	receivedAt := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

	msg := router.ReadingMsg{
		SensorUID:  "VIB-NORTH-04",
		SiteID:     siteID,
		Values:     map[string]float64{"velocity_mm_s": 4.2, "temp_c": 31.5},
		Quality:    98.5,
		MeasuredAt: 1741595400000000,
		ReceivedAt: receivedAt,
	}

	row := w.transform(msg)

	if row.SensorUID != "VIB-NORTH-04" {
		t.Errorf("SensorUID = %s, want VIB-NORTH-04", row.SensorUID)
	}
	if row.SiteID != siteID.String() {
		t.Errorf("SiteID = %s, want %s", row.SiteID, siteID)
	}
	if row.Quality != 98.5 {
		t.Errorf("Quality = %f, want 98.5", row.Quality)
	}
	if row.MeasuredAt != 1741595400000000 {
		t.Errorf("MeasuredAt = %d, want 1741595400000000", row.MeasuredAt)
	}
	if row.ReceivedAt != receivedAt.UnixMicro() {
		t.Errorf("ReceivedAt = %d, want %d", row.ReceivedAt, receivedAt.UnixMicro())
	}

	var values map[string]float64
	if err := json.Unmarshal(row.Values, &values); err != nil {
		t.Fatalf("Values is not valid JSON: %v", err)
	}
	if values["velocity_mm_s"] != 4.2 {
		t.Errorf("velocity_mm_s = %f, want 4.2", values["velocity_mm_s"])
	}
}

func TestReadingWriter_Transform_NilValues(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := router.NewBuffer[router.ReadingMsg](10)
	w := NewReadingWriter(cfg, input, nil, nil)

	msg := router.ReadingMsg{
		SensorUID:  "GAS-EAST-01",
		ReceivedAt: time.Now(),
	}

	row := w.transform(msg)

	var values map[string]float64
	if err := json.Unmarshal(row.Values, &values); err != nil {
		t.Fatalf("Values is not valid JSON: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
}

func TestReadingWriter_Lifecycle(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
	}
	input := router.NewBuffer[router.ReadingMsg](10)

	w := NewReadingWriter(cfg, input, nil, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestReadingWriter_HandleMessage_AddsToBatch(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100, // Large batch so no auto-flush
		FlushInterval: time.Hour,
	}
	input := router.NewBuffer[router.ReadingMsg](10)
	w := NewReadingWriter(cfg, input, nil, nil)

	msg := router.ReadingMsg{
		SensorUID:  "GAS-EAST-01",
		Values:     map[string]float64{"ch4_ppm": 120},
		ReceivedAt: time.Now(),
	}

	w.handleMessage(msg)

	w.batchMu.Lock()
	batchLen := len(w.batch)
	w.batchMu.Unlock()

	if batchLen != 1 {
		t.Errorf("batch length = %d, want 1", batchLen)
	}
}
