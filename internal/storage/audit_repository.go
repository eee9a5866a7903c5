package storage

import (
	"context"
	"encoding/json"

	"github.com/tradecore/backend/pkg/errs"
)

// AuditRepository appends to the durable Postgres audit_log (§6). Every
// row is immutable once written; the BIGSERIAL sequence gives callers a
// monotonic order for reconstructing what happened around an incident.
type AuditRepository struct {
	db *DB
}

func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts one audit row and returns its assigned sequence, which
// the caller can forward to the ClickHouse sink to keep both sides
// correlated.
func (r *AuditRepository) Record(ctx context.Context, eventKind, ownerID, resourceKey string, details map[string]interface{}) (int64, error) {
	payload, err := json.Marshal(details)
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, "failed to marshal audit details", err)
	}

	var sequence int64
	err = r.db.GetContext(ctx, &sequence, `
		INSERT INTO audit_log (event_kind, owner_id, resource_key, details)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		RETURNING sequence
	`, eventKind, ownerID, resourceKey, payload)
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, "failed to record audit event", err)
	}
	return sequence, nil
}
