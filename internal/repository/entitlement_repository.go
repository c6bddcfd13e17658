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

var entitlementCols = []string{
	"id", "user_id", "video_id", "access_type", "expires_at", "is_active", "first_viewed_at",
	"last_viewed_at", "view_count", "watch_position", "completion_percentage", "is_completed",
	"granted_by", "notes", "created_at", "updated_at",
}

func entitlementColumns(alias string) string {
	out := make([]string, len(entitlementCols))
	for i, c := range entitlementCols {
		if alias != "" {
			c = alias + "." + c
		}
		out[i] = c
	}
	return strings.Join(out, ",")
}

func entitlementDest(e *model.Entitlement) []any {
	return []any{
		&e.ID, &e.UserID, &e.VideoID, &e.AccessType, &e.ExpiresAt, &e.IsActive, &e.FirstViewedAt,
		&e.LastViewedAt, &e.ViewCount, &e.WatchPosition, &e.CompletionPercentage, &e.IsCompleted,
		&e.GrantedBy, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
	}
}

// sortColumns maps accepted orderBy values onto video columns.
var sortColumns = map[string]string{
	"createdAt":       "v.created_at",
	"updatedAt":       "v.updated_at",
	"title":           "v.title",
	"viewCount":       "v.view_count",
	"durationSeconds": "v.duration_seconds",
	"category":        "v.category",
}

// EntitlementRepo stores the user_videos ledger. (user_id, video_id) is
// unique, so a pair has at most one row whatever its state.
type EntitlementRepo struct{ DB *sql.DB }

func NewEntitlementRepo(db *sql.DB) *EntitlementRepo { return &EntitlementRepo{DB: db} }

// Get returns the row for the pair in any state.
func (r *EntitlementRepo) Get(ctx context.Context, userID string, videoID uint64) (model.Entitlement, error) {
	var e model.Entitlement
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+entitlementColumns("")+" FROM user_videos WHERE user_id=? AND video_id=? LIMIT 1",
		userID, videoID).Scan(entitlementDest(&e)...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entitlement{}, ErrEntitlementNotFound
	}
	return e, err
}

// GetWithVideo returns the pair's row joined with its video, any state.
func (r *EntitlementRepo) GetWithVideo(ctx context.Context, userID string, videoID uint64) (model.UserVideo, error) {
	var uv model.UserVideo
	dest := append(entitlementDest(&uv.Entitlement), videoDest(&uv.Video)...)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+entitlementColumns("uv")+","+videoColumns("v")+`
		FROM user_videos uv
		JOIN videos v ON v.id = uv.video_id
		WHERE uv.user_id=? AND uv.video_id=? LIMIT 1`,
		userID, videoID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserVideo{}, ErrEntitlementNotFound
	}
	return uv, err
}

// ListForUser returns the videos userID may watch at now: the entitlement
// is active and unexpired and the video is published and active.
func (r *EntitlementRepo) ListForUser(ctx context.Context, userID string, f model.VideoFilter, now time.Time) ([]model.UserVideo, int64, error) {
	where := []string{
		"uv.user_id = ?",
		"uv.is_active = 1",
		"(uv.expires_at IS NULL OR uv.expires_at > ?)",
		"v.status = ?",
		"v.is_active = 1",
	}
	args := []any{userID, now, model.StatusPublished}

	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, "(LOWER(v.title) LIKE ? OR LOWER(v.description) LIKE ? OR LOWER(v.category) LIKE ? OR LOWER(v.tags) LIKE ?)")
		args = append(args, like, like, like, like)
	}
	if f.Category != "" {
		where = append(where, "v.category = ?")
		args = append(args, f.Category)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_videos uv JOIN videos v ON v.id = uv.video_id WHERE "+cond,
		args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := sortColumns[f.OrderBy]
	if !ok {
		col = "v.created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.OrderDirection, "ASC") {
		dir = "ASC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+entitlementColumns("uv")+","+videoColumns("v")+`
		FROM user_videos uv
		JOIN videos v ON v.id = uv.video_id
		WHERE `+cond+`
		ORDER BY `+col+` `+dir+`, v.id `+dir+`
		LIMIT ? OFFSET ?`,
		append(append([]any{}, args...), limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.UserVideo, 0, limit)
	for rows.Next() {
		var uv model.UserVideo
		if err := rows.Scan(append(entitlementDest(&uv.Entitlement), videoDest(&uv.Video)...)...); err != nil {
			return nil, 0, err
		}
		out = append(out, uv)
	}
	return out, total, rows.Err()
}

// Upsert grants e. An existing row for the pair takes e's access type,
// expiry, notes and grantor and is reactivated; watch history is kept.
// Two concurrent first grants both land on the same row, so e is
// refreshed from the stored row afterwards.
func (r *EntitlementRepo) Upsert(ctx context.Context, e *model.Entitlement) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.IsActive = true
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_videos (id,user_id,video_id,access_type,expires_at,is_active,granted_by,notes,created_at,updated_at)
		VALUES (?,?,?,?,?,1,?,?,?,?)
		ON DUPLICATE KEY UPDATE
			access_type = VALUES(access_type),
			expires_at  = VALUES(expires_at),
			granted_by  = VALUES(granted_by),
			notes       = VALUES(notes),
			is_active   = 1,
			updated_at  = VALUES(updated_at)`,
		e.ID, e.UserID, e.VideoID, e.AccessType, e.ExpiresAt, e.GrantedBy, e.Notes, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	stored, err := r.Get(ctx, e.UserID, e.VideoID)
	if err != nil {
		return fmt.Errorf("re-read entitlement: %w", err)
	}
	*e = stored
	return nil
}

// SaveProgress persists one watch event. The counter is incremented in SQL
// so parallel watches of the same pair are not lost; the position fields
// take e's values.
func (r *EntitlementRepo) SaveProgress(ctx context.Context, e *model.Entitlement) error {
	e.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE user_videos SET
			view_count = view_count + 1,
			first_viewed_at = COALESCE(first_viewed_at, ?),
			last_viewed_at = ?,
			watch_position = ?,
			completion_percentage = ?,
			is_completed = ?,
			updated_at = ?
		WHERE id = ?`,
		e.FirstViewedAt, e.LastViewedAt, e.WatchPosition, e.CompletionPercentage, e.IsCompleted, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntitlementNotFound
	}
	return nil
}

// Deactivate revokes future access but keeps history.
func (r *EntitlementRepo) Deactivate(ctx context.Context, userID string, videoID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE user_videos SET is_active=0, updated_at=? WHERE user_id=? AND video_id=?",
		time.Now().UTC(), userID, videoID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntitlementNotFound
	}
	return nil
}

// ListForStats returns every row, optionally scoped to one video.
func (r *EntitlementRepo) ListForStats(ctx context.Context, videoID *uint64) ([]model.Entitlement, error) {
	q := "SELECT " + entitlementColumns("") + " FROM user_videos"
	var args []any
	if videoID != nil {
		q += " WHERE video_id=?"
		args = append(args, *videoID)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Entitlement
	for rows.Next() {
		var e model.Entitlement
		if err := rows.Scan(entitlementDest(&e)...); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
