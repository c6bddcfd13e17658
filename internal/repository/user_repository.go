package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/video-access/internal/model"
)

const userColumns = "id,email,first_name,last_name,is_active,last_login_at,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts u, filling ID and timestamps when unset. The e-mail is
// normalized before the insert; a duplicate yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = model.NormalizeEmail(u.Email)
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,email,first_name,last_name,is_active,created_at,updated_at) VALUES (?,?,?,?,?,?,?)",
		u.ID, u.Email, u.FirstName, u.LastName, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user in any state.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// GetByEmail fetches an active user by normalized e-mail.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND is_active=1 LIMIT 1", model.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// FindOrCreateByEmail returns the active user for email, creating one with
// no name when none exists. When a concurrent request wins the insert the
// row is re-read. An e-mail that belongs to a deactivated account yields
// ErrUserInactive.
func (r *UserRepo) FindOrCreateByEmail(ctx context.Context, email string) (model.User, bool, error) {
	u, err := r.GetByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return model.User{}, false, err
	}

	u = model.User{Email: email, IsActive: true}
	switch err := r.Create(ctx, &u); {
	case err == nil:
		return u, true, nil
	case !errors.Is(err, ErrEmailExists):
		return model.User{}, false, err
	}

	existing, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", model.NormalizeEmail(email)))
	if err != nil {
		return model.User{}, false, fmt.Errorf("re-read user: %w", err)
	}
	if !existing.IsActive {
		return model.User{}, false, ErrUserInactive
	}
	return existing, false, nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login_at=?, updated_at=? WHERE id=?", at, at, id)
	return err
}

// Update replaces the name fields of an active user.
func (r *UserRepo) Update(ctx context.Context, id string, firstName, lastName *string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET first_name=?, last_name=?, updated_at=? WHERE id=? AND is_active=1",
		firstName, lastName, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Deactivate is the only removal path for users.
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=0, updated_at=? WHERE id=? AND is_active=1", time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Search matches active users by e-mail or name, newest first.
func (r *UserRepo) Search(ctx context.Context, query string, limit, offset int) ([]model.User, int64, error) {
	cond := "is_active=1 AND (LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?)"
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	args := []any{like, like, like}

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *UserRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE is_active=1").Scan(&n)
	return n, err
}
