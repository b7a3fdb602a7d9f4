package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrTokenInvalid is returned for unknown, revoked or expired refresh tokens.
var ErrTokenInvalid = errors.New("refresh token invalid")

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		userID, tokenHash, exp, now)
	if err != nil {
		return StoreError("store refresh token", err)
	}
	return nil
}

// ValidateRefresh returns userID if a non-revoked, non-expired token exists.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTokenInvalid
		}
		return 0, StoreError("validate refresh token", err)
	}
	if revokedAt.Valid || now.After(expiresAt) {
		return 0, ErrTokenInvalid
	}
	return userID, nil
}

// RevokeByHash consumes a live token.  Only one caller can revoke a given
// token: when no unrevoked, unexpired row matches it returns ErrTokenInvalid.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL AND expires_at > ?",
		now, tokenHash, now)
	if err != nil {
		return StoreError("revoke refresh token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return StoreError("revoke refresh token", err)
	}
	if n == 0 {
		return ErrTokenInvalid
	}
	return nil
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		now, userID)
	if err != nil {
		return StoreError("revoke refresh tokens", err)
	}
	return nil
}
