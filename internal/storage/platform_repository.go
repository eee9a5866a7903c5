package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// PlatformRepository persists Platform rows (§3). Ciphertext columns
// only ever hold output from internal/vault; this repository never
// plaintext-decodes them (invariant 3).
type PlatformRepository struct {
	db *DB
}

func NewPlatformRepository(db *DB) *PlatformRepository {
	return &PlatformRepository{db: db}
}

func (r *PlatformRepository) Create(ctx context.Context, p *models.Platform) (*models.Platform, error) {
	var out models.Platform
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO platforms (owner_id, name, kind, is_sandbox, is_default, encrypted_api_key, encrypted_api_secret, encrypted_passphrase, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, owner_id, name, kind, is_sandbox, is_default, encrypted_api_key, encrypted_api_secret, encrypted_passphrase, status, last_tested_at, created_at
	`, p.OwnerID, p.Name, p.Kind, p.IsSandbox, p.IsDefault, p.EncryptedAPIKey, p.EncryptedAPISecret, p.EncryptedPassphrase, models.PlatformDisconnected)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to create platform", err)
	}
	return &out, nil
}

func (r *PlatformRepository) Get(ctx context.Context, id string) (*models.Platform, error) {
	var out models.Platform
	err := r.db.GetContext(ctx, &out, `
		SELECT id, owner_id, name, kind, is_sandbox, is_default, encrypted_api_key, encrypted_api_secret, encrypted_passphrase, status, last_tested_at, created_at
		FROM platforms WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.KindNotFound, "platform not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to load platform", err)
	}
	return &out, nil
}

// ListForOwner returns every platform belonging to ownerID, used by the
// Trade Router's platform-choice step (§4.6.2).
func (r *PlatformRepository) ListForOwner(ctx context.Context, ownerID string) ([]models.Platform, error) {
	var out []models.Platform
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, owner_id, name, kind, is_sandbox, is_default, encrypted_api_key, encrypted_api_secret, encrypted_passphrase, status, last_tested_at, created_at
		FROM platforms WHERE owner_id = $1
		ORDER BY is_default DESC, last_tested_at DESC NULLS LAST
	`, ownerID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list platforms", err)
	}
	return out, nil
}

// UpdateStatus records the outcome of an Adapter.test() call or a
// breaker-driven disconnect.
func (r *PlatformRepository) UpdateStatus(ctx context.Context, id string, status models.PlatformStatus, testedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE platforms SET status = $2, last_tested_at = $3 WHERE id = $1
	`, id, status, testedAt)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to update platform status", err)
	}
	return nil
}

func (r *PlatformRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM platforms WHERE id = $1`, id)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to delete platform", err)
	}
	return nil
}

// SetDefault clears every other platform's default flag for ownerID
// before marking id, so exactly one platform is ever default per owner
// (§4.6.2's platform-choice rule depends on this being true).
func (r *PlatformRepository) SetDefault(ctx context.Context, ownerID, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE platforms SET is_default = false WHERE owner_id = $1`, ownerID); err != nil {
		return errs.Wrap(errs.KindInternal, "failed to clear existing default", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE platforms SET is_default = true WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to set default platform", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.KindNotFound, "platform not found")
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindInternal, "failed to commit default platform change", err)
	}
	return nil
}
