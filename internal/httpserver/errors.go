package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_guard/internal/apperr"
	"github.com/Skotchmaster/blog_guard/internal/logging"
)

// HTTPErrorHandler renders every failure as apperr.ErrorResponse.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := toHTTPError(err)
	if he.Code >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("request_failed", "status", he.Code, "error", err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(he.Code)
	} else {
		werr = c.JSON(he.Code, he.Message)
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("write error response", "error", werr)
	}
}

func toHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if apperr.Known(err) || !errors.As(err, &he) {
		return apperr.ToHTTP(err)
	}
	if _, ok := he.Message.(apperr.ErrorResponse); ok {
		return he
	}
	// echo's own errors: unknown route, wrong method, bad body
	return echo.NewHTTPError(he.Code, apperr.ErrorResponse{
		Error: strings.ToLower(http.StatusText(he.Code)),
		Code:  statusCode(he.Code),
	})
}

func statusCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return "VALIDATION_ERROR"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusTooManyRequests:
		return "RATE_LIMIT_EXCEEDED"
	default:
		if status >= http.StatusInternalServerError {
			return "INTERNAL_ERROR"
		}
		return "ERROR"
	}
}
