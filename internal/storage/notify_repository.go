package storage

import (
	"context"

	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// NotifyRepository persists SmartAlert and Notification rows (§3, §4.8).
type NotifyRepository struct {
	db *DB
}

func NewNotifyRepository(db *DB) *NotifyRepository {
	return &NotifyRepository{db: db}
}

// CreateAlert enforces invariant 6 (one armed alert per fingerprint per
// owner) via the partial unique index; a conflict here means the caller
// should re-arm the existing row rather than insert a duplicate.
func (r *NotifyRepository) CreateAlert(ctx context.Context, a *models.SmartAlert) (*models.SmartAlert, error) {
	var out models.SmartAlert
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO smart_alerts (owner_id, symbol, condition, threshold, fingerprint, state)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, owner_id, symbol, condition, threshold, fingerprint, state, created_at, triggered_at
	`, a.OwnerID, a.Symbol, a.Condition, a.Threshold.String(), a.Fingerprint, models.AlertArmed)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.New(errs.KindConflict, "an armed alert with this fingerprint already exists")
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to create alert", err)
	}
	return &out, nil
}

func (r *NotifyRepository) ListArmedForOwner(ctx context.Context, ownerID string) ([]models.SmartAlert, error) {
	var out []models.SmartAlert
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, owner_id, symbol, condition, threshold, fingerprint, state, created_at, triggered_at
		FROM smart_alerts WHERE owner_id = $1 AND state = 'armed'
	`, ownerID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list alerts", err)
	}
	return out, nil
}

// ListArmedForSymbol is consulted for each watched symbol on every
// alert-scan tick of notify.Engine (§4.8).
func (r *NotifyRepository) ListArmedForSymbol(ctx context.Context, symbol string) ([]models.SmartAlert, error) {
	var out []models.SmartAlert
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, owner_id, symbol, condition, threshold, fingerprint, state, created_at, triggered_at
		FROM smart_alerts WHERE symbol = $1 AND state = 'armed'
	`, symbol)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list alerts for symbol", err)
	}
	return out, nil
}

// Trigger flips an alert from armed to triggered and reports whether
// this call performed the transition. The WHERE clause makes the
// armed->triggered move atomic so two concurrent scan passes racing on
// the same alert can't both report success and both emit a
// notification (§4.8: triggered exactly once per arming).
func (r *NotifyRepository) Trigger(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE smart_alerts SET state = 'triggered', triggered_at = now() WHERE id = $1 AND state = 'armed'
	`, id)
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, "failed to trigger alert", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *NotifyRepository) Dismiss(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM smart_alerts WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to dismiss alert", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.KindNotFound, "alert not found")
	}
	return nil
}

func (r *NotifyRepository) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	body := models.TruncateBody(n.Body)
	var out models.Notification
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO notifications (owner_id, kind, body, priority)
		VALUES ($1,$2,$3,$4)
		RETURNING id, owner_id, kind, body, priority, read_at, created_at
	`, n.OwnerID, n.Kind, body, n.Priority)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to create notification", err)
	}
	return &out, nil
}

func (r *NotifyRepository) ListForOwner(ctx context.Context, ownerID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, owner_id, kind, body, priority, read_at, created_at
		FROM notifications WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list notifications", err)
	}
	return out, nil
}
