package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/service"
)

// CatalogAPI is the slice of the catalog service the HTTP layer calls.
type CatalogAPI interface {
	ListForUser(ctx context.Context, userID string, f model.VideoFilter) (model.Page[model.UserVideo], error)
	GetForUser(ctx context.Context, userID string, videoID uint64) (model.UserVideo, error)
	RecordWatch(ctx context.Context, userID string, videoID uint64, position *int) (model.Entitlement, error)
	Categories(ctx context.Context) ([]string, error)

	CreateVideo(ctx context.Context, in service.VideoInput) (model.Video, error)
	UpdateVideo(ctx context.Context, id uint64, in service.VideoInput) (model.Video, error)
	DeleteVideo(ctx context.Context, id uint64) error
	ListAllVideos(ctx context.Context, includeArchived bool, limit, offset int) (model.Page[model.Video], error)
	SearchCatalog(ctx context.Context, query string, limit, offset int) (model.Page[model.Video], error)
	Assign(ctx context.Context, in service.AssignInput) (model.Entitlement, error)
	Revoke(ctx context.Context, userID string, videoID uint64) error
	Stats(ctx context.Context, videoID *uint64) (model.VideoStats, error)
}

// VideoHandler serves the entitled catalog to end users.
type VideoHandler struct {
	catalog CatalogAPI
	log     *slog.Logger
}

func NewVideoHandler(catalog CatalogAPI, log *slog.Logger) *VideoHandler {
	return &VideoHandler{catalog: catalog, log: log.With("component", "http.videos")}
}

// List returns the caller's watchable videos. Search is the same listing
// under its own path.
func (h *VideoHandler) List(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var q videoQuery
	if err := bindValid(c, &q, nil); err != nil {
		return respondError(c, h.log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	page, err := h.catalog.ListForUser(ctx, u.ID, q.filter())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, listResponse[videoView]{
		Videos: mapSlice(page.Items, newUserVideoView),
		Total:  page.Total,
		Query:  q.Query,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

func (h *VideoHandler) Search(c echo.Context) error { return h.List(c) }

func (h *VideoHandler) Categories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	cats, err := h.catalog.Categories(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": cats})
}

// Get returns one video if the caller may watch it right now.
func (h *VideoHandler) Get(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	id, err := parseVideoID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	uv, err := h.catalog.GetForUser(ctx, u.ID, id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"video": newUserVideoView(uv)})
}

// Watch records a view; the body and its position are optional.
func (h *VideoHandler) Watch(c echo.Context) error {
	var req watchRequest
	if err := bindValid(c, &req, nil); err != nil {
		return respondError(c, h.log, err)
	}
	return h.record(c, req.Position, "view recorded")
}

// Progress records a view with a mandatory position.
func (h *VideoHandler) Progress(c echo.Context) error {
	var req progressRequest
	if err := bindValid(c, &req, nil); err != nil {
		return respondError(c, h.log, err)
	}
	return h.record(c, req.Position, "progress updated")
}

func (h *VideoHandler) record(c echo.Context, position *int, msg string) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	id, err := parseVideoID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if _, err := h.catalog.RecordWatch(ctx, u.ID, id, position); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}
