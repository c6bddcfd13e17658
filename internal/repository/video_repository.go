package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/video-access/internal/model"
)

var videoCols = []string{
	"id", "title", "description", "url", "thumbnail_url", "duration", "duration_seconds",
	"status", "is_active", "category", "tags", "view_count", "file_size", "resolution",
	"created_at", "updated_at",
}

// videoColumns renders the column list, optionally qualified by a table alias.
func videoColumns(alias string) string {
	if alias == "" {
		return strings.Join(videoCols, ",")
	}
	out := make([]string, len(videoCols))
	for i, c := range videoCols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ",")
}

func videoDest(v *model.Video) []any {
	return []any{
		&v.ID, &v.Title, &v.Description, &v.URL, &v.ThumbnailURL, &v.Duration, &v.DurationSeconds,
		&v.Status, &v.IsActive, &v.Category, &v.Tags, &v.ViewCount, &v.FileSize, &v.Resolution,
		&v.CreatedAt, &v.UpdatedAt,
	}
}

// VideoRepo manages the catalog. Rows are never deleted; SoftDelete
// archives them and they stay readable through GetByID.
type VideoRepo struct{ DB *sql.DB }

func NewVideoRepo(db *sql.DB) *VideoRepo { return &VideoRepo{DB: db} }

// Create inserts v and stores the generated id back into it.
func (r *VideoRepo) Create(ctx context.Context, v *model.Video) error {
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO videos (title,description,url,thumbnail_url,duration,duration_seconds,status,is_active,category,tags,view_count,file_size,resolution,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		v.Title, v.Description, v.URL, v.ThumbnailURL, v.Duration, v.DurationSeconds, v.Status, v.IsActive,
		v.Category, v.Tags, v.ViewCount, v.FileSize, v.Resolution, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// GetByID returns the video in any state, archived included.
func (r *VideoRepo) GetByID(ctx context.Context, id uint64) (model.Video, error) {
	var v model.Video
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+videoColumns("")+" FROM videos WHERE id=? LIMIT 1", id).Scan(videoDest(&v)...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Video{}, ErrVideoNotFound
	}
	return v, err
}

// Update writes every mutable column of v. View count is left alone so a
// concurrent watch increment is never overwritten.
func (r *VideoRepo) Update(ctx context.Context, v *model.Video) error {
	v.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE videos SET title=?, description=?, url=?, thumbnail_url=?, duration=?, duration_seconds=?,
			status=?, is_active=?, category=?, tags=?, file_size=?, resolution=?, updated_at=?
		WHERE id=?`,
		v.Title, v.Description, v.URL, v.ThumbnailURL, v.Duration, v.DurationSeconds,
		v.Status, v.IsActive, v.Category, v.Tags, v.FileSize, v.Resolution, v.UpdatedAt, v.ID)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// SoftDelete archives and deactivates the video.
func (r *VideoRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE videos SET status=?, is_active=0, updated_at=? WHERE id=?",
		model.StatusArchived, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// ListAll is the back-office listing, newest first. Archived rows are
// excluded unless includeArchived is set.
func (r *VideoRepo) ListAll(ctx context.Context, includeArchived bool, limit, offset int) ([]model.Video, int64, error) {
	cond, args := "1=1", []any{}
	if !includeArchived {
		cond, args = "status<>?", []any{model.StatusArchived}
	}
	return r.page(ctx, cond, args, limit, offset)
}

// Search matches active videos by title, description, category or tags
// without any entitlement filter.
func (r *VideoRepo) Search(ctx context.Context, query string, limit, offset int) ([]model.Video, int64, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	cond := "is_active=1 AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ? OR LOWER(tags) LIKE ?)"
	return r.page(ctx, cond, []any{like, like, like, like}, limit, offset)
}

func (r *VideoRepo) page(ctx context.Context, cond string, args []any, limit, offset int) ([]model.Video, int64, error) {
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+videoColumns("")+" FROM videos WHERE "+cond+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Video, 0, limit)
	for rows.Next() {
		var v model.Video
		if err := rows.Scan(videoDest(&v)...); err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// IncrementViewCount bumps the aggregate counter in a single statement.
func (r *VideoRepo) IncrementViewCount(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE videos SET view_count = view_count + 1 WHERE id=?", id)
	return err
}

// Categories lists the distinct categories of published, active videos.
func (r *VideoRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT category FROM videos
		WHERE is_active=1 AND status=? AND category IS NOT NULL AND category<>''
		ORDER BY category`, model.StatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
