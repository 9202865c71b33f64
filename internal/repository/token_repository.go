package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct{ db *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, principalID, tokenHash string, exp time.Time) error {
	q := r.db.Rebind("INSERT INTO refresh_tokens (principal_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)")
	_, err := r.db.ExecContext(ctx, q, principalID, tokenHash, exp.UTC(), time.Now().UTC())
	return err
}

// ValidateRefresh returns the principal id if a non-revoked, non-expired
// token exists, ErrNotFound otherwise.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	var row struct {
		PrincipalID string     `db:"principal_id"`
		ExpiresAt   time.Time  `db:"expires_at"`
		RevokedAt   *time.Time `db:"revoked_at"`
	}
	q := r.db.Rebind("SELECT principal_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1")
	if err := r.db.GetContext(ctx, &row, q, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if row.RevokedAt != nil || time.Now().UTC().After(row.ExpiresAt.UTC()) {
		return "", ErrNotFound
	}
	return row.PrincipalID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	q := r.db.Rebind("UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL")
	_, err := r.db.ExecContext(ctx, q, time.Now().UTC(), tokenHash)
	return err
}

// RevokeAllForPrincipal revokes all of a principal's active tokens.
func (r *TokenRepo) RevokeAllForPrincipal(ctx context.Context, principalID string) error {
	q := r.db.Rebind("UPDATE refresh_tokens SET revoked_at=? WHERE principal_id=? AND revoked_at IS NULL")
	_, err := r.db.ExecContext(ctx, q, time.Now().UTC(), principalID)
	return err
}
