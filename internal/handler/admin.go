package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/service"
)

// AdminHandler manages the catalog and grants. Its routes sit behind
// RequireAdmin.
type AdminHandler struct {
	catalog CatalogAPI
	log     *slog.Logger
}

func NewAdminHandler(catalog CatalogAPI, log *slog.Logger) *AdminHandler {
	return &AdminHandler{catalog: catalog, log: log.With("component", "http.admin")}
}

func (h *AdminHandler) Create(c echo.Context) error {
	var req videoRequest
	if err := bindValid(c, &req, nil); err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	v, err := h.catalog.CreateVideo(ctx, req.input())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, newAdminVideoView(v))
}

// ListAll pages through the catalog; archived videos only with
// ?includeArchived=true.
func (h *AdminHandler) ListAll(c echo.Context) error {
	var q adminListQuery
	if err := bindValid(c, &q, nil); err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	page, err := h.catalog.ListAllVideos(ctx, q.IncludeArchived, q.Limit, q.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, listResponse[adminVideoView]{
		Videos: mapSlice(page.Items, newAdminVideoView),
		Total:  page.Total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// Update applies a partial change; absent fields stay as they are.
func (h *AdminHandler) Update(c echo.Context) error {
	id, err := parseVideoID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req videoRequest
	if err := bindValid(c, &req, nil); err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	v, err := h.catalog.UpdateVideo(ctx, id, req.input())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newAdminVideoView(v))
}

// Delete archives the video.
func (h *AdminHandler) Delete(c echo.Context) error {
	id, err := parseVideoID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.catalog.DeleteVideo(ctx, id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) Assign(c echo.Context) error {
	var req assignRequest
	if err := bindValid(c, &req, nil); err != nil {
		return respondError(c, h.log, err)
	}
	in := service.AssignInput{
		UserID:    req.UserID,
		VideoID:   req.VideoID,
		ExpiresAt: req.ExpiresAt,
		Notes:     req.Notes,
	}
	if req.AccessType != nil {
		at := model.AccessType(*req.AccessType)
		in.AccessType = &at
	}
	if admin, err := currentUser(c); err == nil {
		in.GrantedBy = admin.Email
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	e, err := h.catalog.Assign(ctx, in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, newEntitlementView(e))
}

// Revoke removes a user's access to one video.
func (h *AdminHandler) Revoke(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return respondError(c, h.log, service.Validation("userId is required"))
	}
	videoID, err := parseVideoID(c, "videoId")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.catalog.Revoke(ctx, userID, videoID); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Search matches the whole catalog regardless of grants.
func (h *AdminHandler) Search(c echo.Context) error {
	var q adminListQuery
	if err := bindValid(c, &q, nil); err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	page, err := h.catalog.SearchCatalog(ctx, q.Query, q.Limit, q.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, listResponse[adminVideoView]{
		Videos: mapSlice(page.Items, newAdminVideoView),
		Total:  page.Total,
		Query:  q.Query,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

func (h *AdminHandler) Stats(c echo.Context) error {
	return h.stats(c, nil)
}

func (h *AdminHandler) StatsByID(c echo.Context) error {
	id, err := parseVideoID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	return h.stats(c, &id)
}

func (h *AdminHandler) stats(c echo.Context, videoID *uint64) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	st, err := h.catalog.Stats(ctx, videoID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, st)
}
