package middleware

import (
    "context"
    "log/slog"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/video-access/internal/model"
    "github.com/iliyamo/video-access/internal/service"
    "github.com/iliyamo/video-access/internal/utils"
)

// SessionParser verifies a raw bearer credential.
type SessionParser interface {
    Parse(raw string) (utils.SessionClaims, error)
}

// SubjectResolver maps a verified subject onto an active user.
type SubjectResolver interface {
    ResolveSubject(ctx context.Context, userID string) (model.User, error)
}

// JWTAuth requires a valid Bearer credential whose subject is still an
// active user. The user is stored in the context for CurrentUser.
func JWTAuth(parser SessionParser, resolver SubjectResolver, log *slog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            raw, found := strings.CutPrefix(auth, "Bearer ")
            if !found || strings.TrimSpace(raw) == "" {
                return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "missing bearer token"))
            }

            claims, err := parser.Parse(strings.TrimSpace(raw))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "invalid token"))
            }

            user, err := resolver.ResolveSubject(c.Request().Context(), claims.Subject)
            if err != nil {
                if service.KindOf(err) == service.KindUnauthorized {
                    return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "user not found"))
                }
                log.Error("resolve session subject", "subject", claims.Subject, "error", err)
                return c.JSON(http.StatusInternalServerError, errorBody("internal", "request processing failed"))
            }

            SetCurrentUser(c, user)
            return next(c)
        }
    }
}
