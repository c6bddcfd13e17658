package middleware

// identity.go holds the context keys the auth middleware fills in and the
// accessors handlers and other middleware read them through.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/video-access/internal/model"
)

const (
    ctxUser   = "user"
    ctxUserID = "user_id"
)

// CurrentUser returns the authenticated user stored by JWTAuth.
func CurrentUser(c echo.Context) (model.User, bool) {
    u, ok := c.Get(ctxUser).(model.User)
    return u, ok
}

// SetCurrentUser stores the authenticated user on the request context.
func SetCurrentUser(c echo.Context, u model.User) {
    c.Set(ctxUser, u)
    c.Set(ctxUserID, u.ID)
}

// userID returns the authenticated user id or "anon".
func userID(c echo.Context) string {
    if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
        return s
    }
    return "anon"
}

func errorBody(code, msg string) echo.Map {
    return echo.Map{"error": code, "message": msg}
}
