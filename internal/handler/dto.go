package handler

import (
	"time"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/service"
)

// Request bodies and query strings.

type requestTokenRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type validateTokenRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Token string `json:"token" validate:"required,len=6,alphanum"`
}

type videoQuery struct {
	Query          string `query:"query" validate:"max=100"`
	Category       string `query:"category" validate:"max=100"`
	OrderBy        string `query:"orderBy" validate:"omitempty,oneof=createdAt updatedAt title viewCount durationSeconds category"`
	OrderDirection string `query:"orderDirection" validate:"omitempty,oneof=ASC DESC"`
	Limit          int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset         int    `query:"offset" validate:"min=0"`
}

func (q videoQuery) filter() model.VideoFilter {
	return model.VideoFilter{
		Query:          q.Query,
		Category:       q.Category,
		OrderBy:        q.OrderBy,
		OrderDirection: q.OrderDirection,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}
}

type adminListQuery struct {
	IncludeArchived bool   `query:"includeArchived"`
	Query           string `query:"query" validate:"max=100"`
	Limit           int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset          int    `query:"offset" validate:"min=0"`
}

type createUserRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

type updateUserRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
}

type userSearchQuery struct {
	Query  string `query:"query" validate:"max=100"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int    `query:"offset" validate:"min=0"`
}

// watchRequest: Position is optional on /watch and required on /progress.
type watchRequest struct {
	Position *int `json:"position" validate:"omitempty,min=0"`
}

type progressRequest struct {
	Position *int `json:"position" validate:"required,min=0"`
}

// videoRequest serves create and patch alike; the service enforces the
// fields a create needs.
type videoRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description     *string `json:"description" validate:"omitempty,max=5000"`
	URL             *string `json:"url" validate:"omitempty,url,max=2048"`
	ThumbnailURL    *string `json:"thumbnailUrl" validate:"omitempty,url,max=2048"`
	Duration        *string `json:"duration" validate:"omitempty,max=20"`
	DurationSeconds *int    `json:"durationSeconds" validate:"omitempty,min=1"`
	Status          *string `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	IsActive        *bool   `json:"isActive"`
	Category        *string `json:"category" validate:"omitempty,max=100"`
	Tags            *string `json:"tags" validate:"omitempty,max=1000"`
	FileSize        *int64  `json:"fileSize" validate:"omitempty,min=1"`
	Resolution      *string `json:"resolution" validate:"omitempty,max=20"`
}

func (r videoRequest) input() service.VideoInput {
	in := service.VideoInput{
		Title:           r.Title,
		Description:     r.Description,
		URL:             r.URL,
		ThumbnailURL:    r.ThumbnailURL,
		Duration:        r.Duration,
		DurationSeconds: r.DurationSeconds,
		IsActive:        r.IsActive,
		Category:        r.Category,
		Tags:            r.Tags,
		FileSize:        r.FileSize,
		Resolution:      r.Resolution,
	}
	if r.Status != nil {
		st := model.VideoStatus(*r.Status)
		in.Status = &st
	}
	return in
}

type assignRequest struct {
	UserID     string     `json:"userId" validate:"required,uuid"`
	VideoID    uint64     `json:"videoId" validate:"required,min=1"`
	AccessType *string    `json:"accessType" validate:"omitempty,oneof=ASSIGNED PURCHASED TRIAL ADMIN"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	Notes      *string    `json:"notes" validate:"omitempty,max=500"`
}

// Response bodies.

type userView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   *string    `json:"firstName,omitempty"`
	LastName    *string    `json:"lastName,omitempty"`
	FullName    string     `json:"fullName"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func newUserView(u model.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type sessionView struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userView  `json:"user"`
	Message   string    `json:"message,omitempty"`
}

type progressView struct {
	ViewCount            int        `json:"viewCount"`
	LastViewedAt         *time.Time `json:"lastViewedAt,omitempty"`
	CompletionPercentage float64    `json:"completionPercentage"`
	IsCompleted          bool       `json:"isCompleted"`
	WatchPosition        int        `json:"watchPosition"`
}

type videoView struct {
	ID              uint64        `json:"id"`
	Title           string        `json:"title"`
	Description     *string       `json:"description,omitempty"`
	URL             string        `json:"url"`
	ThumbnailURL    *string       `json:"thumbnailUrl,omitempty"`
	Duration        *string       `json:"duration,omitempty"`
	DurationSeconds *int          `json:"durationSeconds,omitempty"`
	Category        *string       `json:"category,omitempty"`
	TagsArray       []string      `json:"tagsArray"`
	ViewCount       int           `json:"viewCount"`
	UserVideoInfo   *progressView `json:"userVideoInfo,omitempty"`
}

func newVideoView(v model.Video) videoView {
	return videoView{
		ID:              v.ID,
		Title:           v.Title,
		Description:     v.Description,
		URL:             v.URL,
		ThumbnailURL:    v.ThumbnailURL,
		Duration:        v.Duration,
		DurationSeconds: v.DurationSeconds,
		Category:        v.Category,
		TagsArray:       v.TagList(),
		ViewCount:       v.ViewCount,
	}
}

func newUserVideoView(uv model.UserVideo) videoView {
	out := newVideoView(uv.Video)
	e := uv.Entitlement
	out.UserVideoInfo = &progressView{
		ViewCount:            e.ViewCount,
		LastViewedAt:         e.LastViewedAt,
		CompletionPercentage: e.CompletionPercentage,
		IsCompleted:          e.IsCompleted,
		WatchPosition:        e.WatchPosition,
	}
	return out
}

// adminVideoView adds the catalog bookkeeping fields end users never see.
type adminVideoView struct {
	videoView
	Status     model.VideoStatus `json:"status"`
	IsActive   bool              `json:"isActive"`
	Tags       *string           `json:"tags,omitempty"`
	FileSize   *int64            `json:"fileSize,omitempty"`
	Resolution *string           `json:"resolution,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func newAdminVideoView(v model.Video) adminVideoView {
	return adminVideoView{
		videoView:  newVideoView(v),
		Status:     v.Status,
		IsActive:   v.IsActive,
		Tags:       v.Tags,
		FileSize:   v.FileSize,
		Resolution: v.Resolution,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

type entitlementView struct {
	ID                   string           `json:"id"`
	UserID               string           `json:"userId"`
	VideoID              uint64           `json:"videoId"`
	AccessType           model.AccessType `json:"accessType"`
	ExpiresAt            *time.Time       `json:"expiresAt,omitempty"`
	IsActive             bool             `json:"isActive"`
	ViewCount            int              `json:"viewCount"`
	WatchPosition        int              `json:"watchPosition"`
	CompletionPercentage float64          `json:"completionPercentage"`
	IsCompleted          bool             `json:"isCompleted"`
	GrantedBy            *string          `json:"grantedBy,omitempty"`
	Notes                *string          `json:"notes,omitempty"`
}

func newEntitlementView(e model.Entitlement) entitlementView {
	return entitlementView{
		ID:                   e.ID,
		UserID:               e.UserID,
		VideoID:              e.VideoID,
		AccessType:           e.AccessType,
		ExpiresAt:            e.ExpiresAt,
		IsActive:             e.IsActive,
		ViewCount:            e.ViewCount,
		WatchPosition:        e.WatchPosition,
		CompletionPercentage: e.CompletionPercentage,
		IsCompleted:          e.IsCompleted,
		GrantedBy:            e.GrantedBy,
		Notes:                e.Notes,
	}
}

type listResponse[T any] struct {
	Videos []T    `json:"videos"`
	Total  int64  `json:"total"`
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset"`
}

type userListResponse struct {
	Users  []userView `json:"users"`
	Total  int64      `json:"total"`
	Query  string     `json:"query,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset"`
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
