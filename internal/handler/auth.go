package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/service"
)

// requestTimeout bounds the store work behind one request. Code delivery
// goes through SMTP, so the auth endpoints get longer.
const (
	requestTimeout = 5 * time.Second
	mailTimeout    = 30 * time.Second
)

// AuthAPI is the slice of the auth service the HTTP layer calls.
type AuthAPI interface {
	RequestToken(ctx context.Context, in service.RequestTokenInput) (service.RequestTokenResult, error)
	ValidateToken(ctx context.Context, in service.ValidateTokenInput) (service.Session, error)
	Logout(ctx context.Context, userID string) service.LogoutResult
	Refresh(ctx context.Context, userID string) (service.Session, error)
	Stats(ctx context.Context) (model.AuthStats, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	auth AuthAPI
	log  *slog.Logger
}

func NewAuthHandler(auth AuthAPI, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log.With("component", "http.auth")}
}

// RequestToken e-mails a one-time login code, creating the account on
// first use.
func (h *AuthHandler) RequestToken(c echo.Context) error {
	var req requestTokenRequest
	if err := bindValid(c, &req, func() { req.Email = model.NormalizeEmail(req.Email) }); err != nil {
		return respondError(c, h.log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), mailTimeout)
	defer cancel()

	h.log.Info("login code requested", "email", req.Email, "ip", c.RealIP())
	res, err := h.auth.RequestToken(ctx, service.RequestTokenInput{
		Email:     req.Email,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ValidateToken exchanges a login code for a session credential.
func (h *AuthHandler) ValidateToken(c echo.Context) error {
	var req validateTokenRequest
	prepare := func() {
		req.Email = model.NormalizeEmail(req.Email)
		req.Token = strings.ToUpper(strings.TrimSpace(req.Token))
	}
	if err := bindValid(c, &req, prepare); err != nil {
		return respondError(c, h.log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), mailTimeout)
	defer cancel()

	sess, err := h.auth.ValidateToken(ctx, service.ValidateTokenInput{
		Email:     req.Email,
		Code:      req.Token,
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, sessionView{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      newUserView(sess.User),
		Message:   "login successful",
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.auth.Logout(c.Request().Context(), u.ID))
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": newUserView(u)})
}

// Refresh issues a new credential for the caller.
func (h *AuthHandler) Refresh(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.auth.Refresh(ctx, u.ID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, sessionView{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: newUserView(sess.User)})
}

func (h *AuthHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	st, err := h.auth.Stats(ctx)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, st)
}
