// Package service holds the authentication and catalog services. Both are
// built from explicit collaborators; the interfaces below are satisfied by
// the repository, notification, queue, storage and utils packages.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/utils"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	FindOrCreateByEmail(ctx context.Context, email string) (model.User, bool, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// DirectoryStore is the administrative side of the user table.
type DirectoryStore interface {
	UserStore
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, id string, firstName, lastName *string) error
	Deactivate(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit, offset int) ([]model.User, int64, error)
	CountActive(ctx context.Context) (int64, error)
}

type TokenStore interface {
	Create(ctx context.Context, t *model.Token) error
	FindUnusedByCode(ctx context.Context, userID, code string, purpose model.TokenPurpose) (model.Token, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	InvalidateOutstanding(ctx context.Context, userID string, purpose model.TokenPurpose, at time.Time) (int64, error)
	CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context, midnight, now time.Time) (model.AuthStats, error)
}

type VideoStore interface {
	Create(ctx context.Context, v *model.Video) error
	GetByID(ctx context.Context, id uint64) (model.Video, error)
	Update(ctx context.Context, v *model.Video) error
	SoftDelete(ctx context.Context, id uint64) error
	ListAll(ctx context.Context, includeArchived bool, limit, offset int) ([]model.Video, int64, error)
	Search(ctx context.Context, query string, limit, offset int) ([]model.Video, int64, error)
	IncrementViewCount(ctx context.Context, id uint64) error
	Categories(ctx context.Context) ([]string, error)
}

type EntitlementStore interface {
	Get(ctx context.Context, userID string, videoID uint64) (model.Entitlement, error)
	GetWithVideo(ctx context.Context, userID string, videoID uint64) (model.UserVideo, error)
	ListForUser(ctx context.Context, userID string, f model.VideoFilter, now time.Time) ([]model.UserVideo, int64, error)
	Upsert(ctx context.Context, e *model.Entitlement) error
	SaveProgress(ctx context.Context, e *model.Entitlement) error
	Deactivate(ctx context.Context, userID string, videoID uint64) error
	ListForStats(ctx context.Context, videoID *uint64) ([]model.Entitlement, error)
}

// Notifier delivers e-mail. SendLoginToken must succeed for a login to
// proceed; SendWelcome is best effort.
type Notifier interface {
	SendLoginToken(ctx context.Context, to, code string) error
	SendWelcome(ctx context.Context, to, firstName string) error
}

// SessionIssuer mints signed session credentials.
type SessionIssuer interface {
	Issue(userID, email string) (utils.AccessToken, error)
}

// EventPublisher emits a domain event on the named queue.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, payload any) error
}

// URLSigner turns a stored playback location into a URL a client can fetch.
type URLSigner interface {
	PlaybackURL(ctx context.Context, raw string) (string, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }
