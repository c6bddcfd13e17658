package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-access/internal/middleware"
	"github.com/iliyamo/video-access/internal/model"
	"github.com/iliyamo/video-access/internal/service"
)

// RequestValidator adapts validator/v10 to echo.Validator. Field names in
// messages use the json (or query) tag so clients see their own keys.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// bindValid binds the request into dst, lets prepare normalise it and then
// validates it. Every failure comes back as a service validation error.
func bindValid(c echo.Context, dst any, prepare func()) error {
	if err := c.Bind(dst); err != nil {
		return service.Validation("invalid request body")
	}
	if prepare != nil {
		prepare()
	}
	if err := c.Validate(dst); err != nil {
		return service.Validation(describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "email":
		return f + " must be a valid e-mail address"
	case "url":
		return f + " must be a valid URL"
	case "uuid":
		return f + " must be a UUID"
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", f, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f, fe.Param())
	case "alphanum":
		return f + " must contain only letters and digits"
	}
	return fmt.Sprintf("%s is invalid (%s)", f, fe.Tag())
}

func errorJSON(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

// respondError maps a service error onto its HTTP status. Internal
// failures are logged with their cause and answered generically.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		se = service.Internal("unclassified", err)
	}
	switch se.Kind {
	case service.KindValidation:
		return errorJSON(c, http.StatusBadRequest, "bad_request", se.Message)
	case service.KindRateLimited:
		return errorJSON(c, http.StatusTooManyRequests, "too_many_requests", se.Message)
	case service.KindUnauthorized:
		return errorJSON(c, http.StatusUnauthorized, "unauthorized", se.Message)
	case service.KindForbidden:
		return errorJSON(c, http.StatusForbidden, "forbidden", se.Message)
	case service.KindNotFound:
		return errorJSON(c, http.StatusNotFound, "not_found", se.Message)
	case service.KindConflict:
		return errorJSON(c, http.StatusConflict, "conflict", se.Message)
	case service.KindSendFailure:
		log.Error("request failed", "path", c.Path(), "error", err)
		return errorJSON(c, http.StatusBadRequest, "bad_request", "failed to process token request")
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return errorJSON(c, http.StatusInternalServerError, "internal", "request processing failed")
}

// currentUser reads the user stored by the auth middleware. Routes using it
// are always mounted behind JWTAuth, so a miss is answered with 401.
func currentUser(c echo.Context) (model.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return model.User{}, service.Unauthorized("authentication required")
	}
	return u, nil
}

func parseVideoID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, service.Validation(name + " must be a positive integer")
	}
	return id, nil
}
