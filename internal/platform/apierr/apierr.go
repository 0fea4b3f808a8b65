// Package apierr maps domain and storage errors to HTTP errors.
package apierr

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/hms/internal/platform/persistence"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, persistence.ErrConflict), errors.Is(err, persistence.ErrConstraint):
		return http.StatusConflict
	case errors.Is(err, persistence.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FromContext converts err into an *echo.HTTPError for c. Server errors are
// logged with the request logger and reported without detail.
func FromContext(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := Status(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).
			Str("path", c.Path()).
			Msg("request failed")
		return echo.NewHTTPError(status, http.StatusText(status)).SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}

// BadRequest wraps a binding or parsing failure.
func BadRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// ParamID parses the positive integer path parameter name.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequest("invalid " + name)
	}
	return id, nil
}

// QueryID parses an optional positive integer query parameter. A missing
// parameter yields 0.
func QueryID(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequest("invalid " + name)
	}
	return id, nil
}
