package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/tradecore/backend/pkg/logger"
)

// AuditEvent is one append-only analytics row: a trade execution, a risk
// verdict, or a breaker transition. The OLTP audit_log table in Postgres
// is the durable source of truth (§6); this sink is a secondary,
// queryable projection for dashboards and retrospective analysis, so a
// dropped batch here never loses data the Postgres row didn't already
// capture.
type AuditEvent struct {
	Sequence    int64
	EventKind   string
	OwnerID     string
	ResourceKey string
	Details     map[string]interface{}
	CreatedAt   time.Time
}

// ClickHouseSink opens a ClickHouse connection through the standard
// database/sql driver registered by the clickhouse-go package.
type ClickHouseSink struct {
	db *sqlx.DB
}

func OpenClickHouse(dsn string) (*ClickHouseSink, error) {
	db, err := sqlx.Connect("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &ClickHouseSink{db: db}, nil
}

func (s *ClickHouseSink) Close() error {
	return s.db.Close()
}

func (s *ClickHouseSink) insertBatch(ctx context.Context, events []AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start clickhouse transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO audit_events
		(sequence, event_kind, owner_id, resource_key, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare clickhouse statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		details, err := json.Marshal(e.Details)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.Sequence, e.EventKind, e.OwnerID, e.ResourceKey, string(details), e.CreatedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clickhouse transaction: %w", err)
	}
	return nil
}

// AuditBatchWriter buffers AuditEvents and flushes them to ClickHouse on
// a size or time trigger, so the hot path (risk evaluation, order
// submission) never blocks on an analytics write.
type AuditBatchWriter struct {
	sink      *ClickHouseSink
	buffer    []AuditEvent
	mu        sync.Mutex
	maxBatch  int
	ticker    *time.Ticker
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewAuditBatchWriter(sink *ClickHouseSink, maxBatch int, maxWait time.Duration) *AuditBatchWriter {
	ctx, cancel := context.WithCancel(context.Background())
	w := &AuditBatchWriter{
		sink:     sink,
		buffer:   make([]AuditEvent, 0, maxBatch),
		maxBatch: maxBatch,
		ticker:   time.NewTicker(maxWait),
		ctx:      ctx,
		cancel:   cancel,
	}
	w.wg.Add(1)
	go w.autoFlush()
	return w
}

func (w *AuditBatchWriter) Add(e AuditEvent) {
	w.mu.Lock()
	w.buffer = append(w.buffer, e)
	shouldFlush := len(w.buffer) >= w.maxBatch
	w.mu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

func (w *AuditBatchWriter) autoFlush() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ticker.C:
			w.flush()
		case <-w.ctx.Done():
			w.flush()
			return
		}
	}
}

func (w *AuditBatchWriter) flush() {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return
	}
	toWrite := make([]AuditEvent, len(w.buffer))
	copy(toWrite, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.sink.insertBatch(ctx, toWrite); err != nil {
		logger.Error("failed to flush audit batch to clickhouse", zap.Int("records", len(toWrite)), zap.Error(err))
		return
	}
	logger.Debug("flushed audit batch to clickhouse", zap.Int("records", len(toWrite)))
}

// Close stops the ticker and flushes whatever remains buffered.
func (w *AuditBatchWriter) Close() error {
	w.ticker.Stop()
	w.cancel()
	w.wg.Wait()
	return nil
}
