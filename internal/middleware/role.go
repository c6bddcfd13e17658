package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
)

// RequireAdmin lets through only users whose e-mail is in the allowlist.
// An empty allowlist disables the check, which keeps administrative routes
// open to every authenticated user. It must run after JWTAuth.
func RequireAdmin(emails []string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(emails))
    for _, e := range emails {
        if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
            allowed[e] = true
        }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if len(allowed) == 0 {
                return next(c)
            }
            u, ok := CurrentUser(c)
            if !ok || !allowed[strings.ToLower(u.Email)] {
                return c.JSON(http.StatusForbidden, errorBody("forbidden", "administrator access required"))
            }
            return next(c)
        }
    }
}
