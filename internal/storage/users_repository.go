package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// UsersRepository persists User rows.
type UsersRepository struct {
	db *DB
}

func NewUsersRepository(db *DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create inserts a new user. A duplicate email or username surfaces as
// KindConflict per §6 (409 on POST /auth/register).
func (r *UsersRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	var out models.User
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO users (email, username, password_hash, role, mode)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, username, password_hash, totp_secret, totp_enabled, role, mode, created_at, updated_at
	`, u.Email, u.Username, u.PasswordHash, u.Role, u.Mode)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.Wrap(errs.KindConflict, "email or username already registered", err)
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to create user", err)
	}
	return &out, nil
}

func (r *UsersRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UsersRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	var out models.User
	err := r.db.GetContext(ctx, &out, `
		SELECT id, email, username, password_hash, totp_secret, totp_enabled, role, mode, created_at, updated_at
		FROM users WHERE `+column+` = $1
	`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to load user", err)
	}
	return &out, nil
}

// ListActiveIDs returns every registered user id, used by the risk
// monitor's periodic per-user sweep (§4.5.3) and the ledger's daily
// reset job (§4.7) rather than those jobs each keeping their own
// membership list.
func (r *UsersRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users`); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list user ids", err)
	}
	return ids, nil
}

// SetMode updates a user's operating mode (§4.6.1).
func (r *UsersRepository) SetMode(ctx context.Context, userID string, mode models.TradingMode) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET mode = $2, updated_at = now() WHERE id = $1`, userID, mode)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to update mode", err)
	}
	return nil
}

// SetTOTP enables/disables 2FA and stores the secret.
func (r *UsersRepository) SetTOTP(ctx context.Context, userID, secret string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = $2, totp_enabled = $3, updated_at = now() WHERE id = $1
	`, userID, secret, enabled)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to update 2FA state", err)
	}
	return nil
}

// isUniqueViolation detects Postgres unique constraint errors without
// importing lib/pq's error type directly into callers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "unique constraint")
}
