package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/queue"
	"github.com/iliyamo/video-access/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// CatalogService serves entitled video listings to users and the catalog
// and entitlement back office to administrators.
type CatalogService struct {
	videos       VideoStore
	entitlements EntitlementStore
	users        UserStore
	events       EventPublisher
	signer       URLSigner
	log          *slog.Logger

	now func() time.Time
}

// NewCatalogService wires the catalog. events and signer may be nil.
func NewCatalogService(videos VideoStore, entitlements EntitlementStore, users UserStore, events EventPublisher, signer URLSigner, log *slog.Logger) *CatalogService {
	if events == nil {
		events = nopPublisher{}
	}
	return &CatalogService{
		videos:       videos,
		entitlements: entitlements,
		users:        users,
		events:       events,
		signer:       signer,
		log:          log.With("component", "catalog"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ListForUser returns the caller's watchable videos with their progress.
func (s *CatalogService) ListForUser(ctx context.Context, userID string, f model.VideoFilter) (model.Page[model.UserVideo], error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	f.Query = strings.TrimSpace(f.Query)
	f.Category = strings.TrimSpace(f.Category)
	if !strings.EqualFold(f.OrderDirection, "ASC") {
		f.OrderDirection = "DESC"
	} else {
		f.OrderDirection = "ASC"
	}

	now := s.now()
	rows, total, err := s.entitlements.ListForUser(ctx, userID, f, now)
	if err != nil {
		return model.Page[model.UserVideo]{}, Internal("list user videos", err)
	}
	items := make([]model.UserVideo, 0, len(rows))
	for _, uv := range rows {
		if !uv.Video.IsPublished() || !uv.Entitlement.HasAccess(now) {
			s.log.Warn("store returned a non-watchable row", "user_id", userID, "video_id", uv.Video.ID)
			total--
			continue
		}
		uv.Video.URL = s.playbackURL(ctx, uv.Video.URL)
		items = append(items, uv)
	}
	return model.Page[model.UserVideo]{Items: items, Total: total}, nil
}

// GetForUser returns one video the caller may watch.
func (s *CatalogService) GetForUser(ctx context.Context, userID string, videoID uint64) (model.UserVideo, error) {
	uv, err := s.watchable(ctx, userID, videoID)
	if err != nil {
		return model.UserVideo{}, err
	}
	uv.Video.URL = s.playbackURL(ctx, uv.Video.URL)
	return uv, nil
}

// watchable loads the pair and applies the access rules: no row or a
// revoked row is NotFound, a lapsed grant or a hidden video is Forbidden.
func (s *CatalogService) watchable(ctx context.Context, userID string, videoID uint64) (model.UserVideo, error) {
	uv, err := s.entitlements.GetWithVideo(ctx, userID, videoID)
	switch {
	case errors.Is(err, repository.ErrEntitlementNotFound):
		return model.UserVideo{}, NotFound("video not found or access denied")
	case err != nil:
		return model.UserVideo{}, Internal("load entitlement", err)
	case !uv.Entitlement.IsActive:
		return model.UserVideo{}, NotFound("video not found or access denied")
	case uv.Entitlement.IsExpired(s.now()):
		return model.UserVideo{}, Forbidden("access to this video has expired")
	case !uv.Video.IsPublished():
		return model.UserVideo{}, Forbidden("video is not available")
	}
	return uv, nil
}

// RecordWatch counts one view for the caller and the video. When position
// is given the watch position is stored and, if the video length is known,
// completion is recomputed.
func (s *CatalogService) RecordWatch(ctx context.Context, userID string, videoID uint64, position *int) (model.Entitlement, error) {
	if position != nil && *position < 0 {
		return model.Entitlement{}, Validation("position must not be negative")
	}
	uv, err := s.watchable(ctx, userID, videoID)
	if err != nil {
		return model.Entitlement{}, err
	}

	now := s.now()
	e := uv.Entitlement
	e.MarkViewed(now)
	if position != nil {
		total := 0
		if uv.Video.DurationSeconds != nil {
			total = *uv.Video.DurationSeconds
		}
		e.ApplyProgress(*position, total)
	}
	switch err := s.entitlements.SaveProgress(ctx, &e); {
	case errors.Is(err, repository.ErrEntitlementNotFound):
		return model.Entitlement{}, NotFound("video not found or access denied")
	case err != nil:
		return model.Entitlement{}, Internal("save progress", err)
	}
	if err := s.videos.IncrementViewCount(ctx, videoID); err != nil {
		return model.Entitlement{}, Internal("increment view count", err)
	}

	s.publish(ctx, queue.QueueVideoWatched, queue.VideoWatchedEvent{
		UserID:               userID,
		VideoID:              videoID,
		Position:             position,
		CompletionPercentage: e.CompletionPercentage,
		Completed:            e.IsCompleted,
		WatchedAt:            now.Format(time.RFC3339),
	})
	return e, nil
}

// AssignInput grants a user access. Nil fields keep the values of an
// existing grant, or take the defaults for a new one.
type AssignInput struct {
	UserID     string
	VideoID    uint64
	AccessType *model.AccessType
	ExpiresAt  *time.Time
	Notes      *string
	GrantedBy  string
}

// Assign creates or renews the grant for the pair and reactivates it.
func (s *CatalogService) Assign(ctx context.Context, in AssignInput) (model.Entitlement, error) {
	if in.AccessType != nil && !in.AccessType.Valid() {
		return model.Entitlement{}, Validation("invalid access type")
	}
	video, err := s.videos.GetByID(ctx, in.VideoID)
	switch {
	case errors.Is(err, repository.ErrVideoNotFound):
		return model.Entitlement{}, NotFound("video not found")
	case err != nil:
		return model.Entitlement{}, Internal("load video", err)
	}
	user, err := s.users.GetByID(ctx, in.UserID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return model.Entitlement{}, NotFound("user not found")
	case err != nil:
		return model.Entitlement{}, Internal("load user", err)
	}

	e, err := s.entitlements.Get(ctx, in.UserID, in.VideoID)
	switch {
	case errors.Is(err, repository.ErrEntitlementNotFound):
		e = model.Entitlement{UserID: in.UserID, VideoID: in.VideoID, AccessType: model.AccessAssigned}
	case err != nil:
		return model.Entitlement{}, Internal("load entitlement", err)
	}
	if in.AccessType != nil {
		e.AccessType = *in.AccessType
	}
	if in.ExpiresAt != nil {
		at := in.ExpiresAt.UTC()
		e.ExpiresAt = &at
	}
	if in.Notes != nil {
		e.Notes = in.Notes
	}
	if in.GrantedBy != "" {
		e.GrantedBy = &in.GrantedBy
	}
	if err := s.entitlements.Upsert(ctx, &e); err != nil {
		return model.Entitlement{}, Internal("upsert entitlement", err)
	}

	ev := queue.VideoAssignedEvent{
		UserID:     user.ID,
		Email:      user.Email,
		VideoID:    video.ID,
		VideoTitle: video.Title,
		AccessType: string(e.AccessType),
		Notes:      e.Notes,
		AssignedAt: s.now().Format(time.RFC3339),
	}
	if user.FirstName != nil {
		ev.FirstName = *user.FirstName
	}
	if e.ExpiresAt != nil {
		exp := e.ExpiresAt.Format(time.RFC3339)
		ev.ExpiresAt = &exp
	}
	s.publish(ctx, queue.QueueVideoAssigned, ev)

	s.log.Info("video assigned", "user_id", user.ID, "video_id", video.ID, "access_type", e.AccessType)
	return e, nil
}

// Revoke removes future access to the video; history stays.
func (s *CatalogService) Revoke(ctx context.Context, userID string, videoID uint64) error {
	switch err := s.entitlements.Deactivate(ctx, userID, videoID); {
	case errors.Is(err, repository.ErrEntitlementNotFound):
		return NotFound("assignment not found")
	case err != nil:
		return Internal("revoke entitlement", err)
	}
	s.log.Info("video access revoked", "user_id", userID, "video_id", videoID)
	return nil
}

// VideoInput carries catalog fields. On create Title and URL are required;
// on update nil fields are left unchanged.
type VideoInput struct {
	Title           *string
	Description     *string
	URL             *string
	ThumbnailURL    *string
	Duration        *string
	DurationSeconds *int
	Status          *model.VideoStatus
	IsActive        *bool
	Category        *string
	Tags            *string
	FileSize        *int64
	Resolution      *string
}

func (in VideoInput) apply(v *model.Video) error {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return Validation("title must not be empty")
		}
		v.Title = t
	}
	if in.URL != nil {
		u := strings.TrimSpace(*in.URL)
		if u == "" {
			return Validation("url must not be empty")
		}
		v.URL = u
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return Validation("invalid status")
		}
		v.Status = *in.Status
	}
	if in.DurationSeconds != nil && *in.DurationSeconds < 1 {
		return Validation("durationSeconds must be positive")
	}
	setIf(&v.Description, in.Description)
	setIf(&v.ThumbnailURL, in.ThumbnailURL)
	setIf(&v.Duration, in.Duration)
	setIf(&v.DurationSeconds, in.DurationSeconds)
	setIf(&v.Category, in.Category)
	setIf(&v.Tags, in.Tags)
	setIf(&v.FileSize, in.FileSize)
	setIf(&v.Resolution, in.Resolution)
	if in.IsActive != nil {
		v.IsActive = *in.IsActive
	}
	return nil
}

func setIf[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// CreateVideo adds a catalog entry, published and active unless told
// otherwise.
func (s *CatalogService) CreateVideo(ctx context.Context, in VideoInput) (model.Video, error) {
	if in.Title == nil || in.URL == nil {
		return model.Video{}, Validation("title and url are required")
	}
	v := model.Video{Status: model.StatusPublished, IsActive: true}
	if err := in.apply(&v); err != nil {
		return model.Video{}, err
	}
	if err := s.videos.Create(ctx, &v); err != nil {
		return model.Video{}, Internal("create video", err)
	}
	s.log.Info("video created", "video_id", v.ID, "title", v.Title)
	return v, nil
}

// UpdateVideo patches the given fields.
func (s *CatalogService) UpdateVideo(ctx context.Context, id uint64, in VideoInput) (model.Video, error) {
	v, err := s.GetVideo(ctx, id)
	if err != nil {
		return model.Video{}, err
	}
	if err := in.apply(&v); err != nil {
		return model.Video{}, err
	}
	switch err := s.videos.Update(ctx, &v); {
	case errors.Is(err, repository.ErrVideoNotFound):
		return model.Video{}, NotFound("video not found")
	case err != nil:
		return model.Video{}, Internal("update video", err)
	}
	return v, nil
}

// DeleteVideo archives and deactivates the video. The row stays readable
// through GetVideo.
func (s *CatalogService) DeleteVideo(ctx context.Context, id uint64) error {
	switch err := s.videos.SoftDelete(ctx, id); {
	case errors.Is(err, repository.ErrVideoNotFound):
		return NotFound("video not found")
	case err != nil:
		return Internal("delete video", err)
	}
	s.log.Info("video archived", "video_id", id)
	return nil
}

// GetVideo is the administrative lookup; archived videos are included.
func (s *CatalogService) GetVideo(ctx context.Context, id uint64) (model.Video, error) {
	v, err := s.videos.GetByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrVideoNotFound):
		return model.Video{}, NotFound("video not found")
	case err != nil:
		return model.Video{}, Internal("load video", err)
	}
	return v, nil
}

func (s *CatalogService) ListAllVideos(ctx context.Context, includeArchived bool, limit, offset int) (model.Page[model.Video], error) {
	limit, offset = clampPage(limit, offset)
	items, total, err := s.videos.ListAll(ctx, includeArchived, limit, offset)
	if err != nil {
		return model.Page[model.Video]{}, Internal("list videos", err)
	}
	return model.Page[model.Video]{Items: items, Total: total}, nil
}

// SearchCatalog matches the whole catalog, ignoring entitlements.
func (s *CatalogService) SearchCatalog(ctx context.Context, query string, limit, offset int) (model.Page[model.Video], error) {
	limit, offset = clampPage(limit, offset)
	items, total, err := s.videos.Search(ctx, query, limit, offset)
	if err != nil {
		return model.Page[model.Video]{}, Internal("search videos", err)
	}
	return model.Page[model.Video]{Items: items, Total: total}, nil
}

// Stats aggregates watch data over all grants, or those of one video.
func (s *CatalogService) Stats(ctx context.Context, videoID *uint64) (model.VideoStats, error) {
	if videoID != nil {
		if _, err := s.GetVideo(ctx, *videoID); err != nil {
			return model.VideoStats{}, err
		}
	}
	rows, err := s.entitlements.ListForStats(ctx, videoID)
	if err != nil {
		return model.VideoStats{}, Internal("load stats", err)
	}
	return model.ComputeStats(rows), nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.videos.Categories(ctx)
	if err != nil {
		return nil, Internal("list categories", err)
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, nil
}

func (s *CatalogService) playbackURL(ctx context.Context, raw string) string {
	if s.signer == nil {
		return raw
	}
	u, err := s.signer.PlaybackURL(ctx, raw)
	if err != nil {
		s.log.Warn("playback url signing failed", "url", raw, "error", err)
		return raw
	}
	return u
}

func (s *CatalogService) publish(ctx context.Context, q string, payload any) {
	if err := s.events.Publish(ctx, q, payload); err != nil {
		s.log.Warn("event publish failed", "queue", q, "error", err)
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
