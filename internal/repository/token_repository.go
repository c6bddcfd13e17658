package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/video-access/internal/model"
)

const tokenColumns = "id,user_id,code,purpose,expires_at,is_used,used_at,ip_address,user_agent,created_at"

// TokenRepo persists one-time login codes.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Create inserts t, assigning an id when unset.
func (r *TokenRepo) Create(ctx context.Context, t *model.Token) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO tokens ("+tokenColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		t.ID, t.UserID, t.Code, t.Purpose, t.ExpiresAt, t.IsUsed, t.UsedAt, t.IPAddress, t.UserAgent, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// FindUnusedByCode returns the unused token of the given purpose that
// matches code exactly. Expiry is left to the caller.
func (r *TokenRepo) FindUnusedByCode(ctx context.Context, userID, code string, purpose model.TokenPurpose) (model.Token, error) {
	var t model.Token
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM tokens WHERE user_id=? AND code=? AND purpose=? AND is_used=0 ORDER BY created_at DESC LIMIT 1",
		userID, code, purpose).
		Scan(&t.ID, &t.UserID, &t.Code, &t.Purpose, &t.ExpiresAt, &t.IsUsed, &t.UsedAt, &t.IPAddress, &t.UserAgent, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Token{}, ErrTokenNotFound
	}
	return t, err
}

// MarkUsed consumes a token. The is_used guard makes a second consumer of
// the same row see ErrTokenNotFound.
func (r *TokenRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tokens SET is_used=1, used_at=? WHERE id=? AND is_used=0", at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// InvalidateOutstanding marks every unused token of the purpose as used.
func (r *TokenRepo) InvalidateOutstanding(ctx context.Context, userID string, purpose model.TokenPurpose, at time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tokens SET is_used=1, used_at=? WHERE user_id=? AND purpose=? AND is_used=0", at, userID, purpose)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountRecentByEmail counts tokens issued to email at or after since.
func (r *TokenRepo) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tokens t
		JOIN users u ON u.id = t.user_id
		WHERE u.email = ? AND t.created_at >= ?`,
		model.NormalizeEmail(email), since).Scan(&n)
	return n, err
}

// DeleteExpired removes every token whose expiry has passed, used or not.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats counts tokens created since midnight, how many of those were
// used, and how many unused tokens have already expired.
func (r *TokenRepo) Stats(ctx context.Context, midnight, now time.Time) (model.AuthStats, error) {
	var st model.AuthStats
	err := r.DB.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? AND is_used = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_used = 0 AND expires_at <= ? THEN 1 ELSE 0 END), 0)
		FROM tokens`,
		midnight, midnight, now).Scan(&st.TotalTokensToday, &st.SuccessfulLoginsToday, &st.AbandonedTokens)
	return st, err
}
