package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/service"
)

type UserAPI interface {
	Create(ctx context.Context, in service.UserInput) (model.User, error)
	Get(ctx context.Context, id string) (model.User, error)
	Update(ctx context.Context, id string, firstName, lastName *string) (model.User, error)
	Deactivate(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit, offset int) (model.Page[model.User], error)
	CountActive(ctx context.Context) (int64, error)
}

// UserHandler is the administrative user directory. Its routes sit behind
// RequireAdmin.
type UserHandler struct {
	users UserAPI
	log   *slog.Logger
}

func NewUserHandler(users UserAPI, log *slog.Logger) *UserHandler {
	return &UserHandler{users: users, log: log.With("component", "http.users")}
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := bindValid(c, &req, func() { req.Email = model.NormalizeEmail(req.Email) }); err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.users.Create(ctx, service.UserInput{Email: req.Email, FirstName: req.FirstName, LastName: req.LastName})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": newUserView(u)})
}

func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.users.Get(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": newUserView(u)})
}

// Update changes the name fields present in the body.
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := bindValid(c, &req, nil); err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.users.Update(ctx, c.Param("id"), req.FirstName, req.LastName)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": newUserView(u)})
}

// Deactivate soft-deletes the account.
func (h *UserHandler) Deactivate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.users.Deactivate(ctx, c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) Search(c echo.Context) error {
	var q userSearchQuery
	if err := bindValid(c, &q, nil); err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	page, err := h.users.Search(ctx, q.Query, q.Limit, q.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, userListResponse{
		Users:  mapSlice(page.Items, newUserView),
		Total:  page.Total,
		Query:  q.Query,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

func (h *UserHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	n, err := h.users.CountActive(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activeUsers": n})
}
