package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/otsched/internal/platform/apperr"
)

// ErrorHandler renders every error as an apperr.Body. Domain errors that
// reach echo unconverted are classified here as well.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = apperr.ToHTTP(err)
		}

		body, ok := he.Message.(apperr.Body)
		if !ok {
			body = apperr.Body{Error: errorCode(he.Code), Message: http.StatusText(he.Code)}
			if msg, isStr := he.Message.(string); isStr && msg != "" {
				body.Message = msg
			}
		}

		if he.Code >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("request_id", stringValue(c.Get(RequestIDKey))).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.ErrValidation.Error()
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return apperr.ErrNotFound.Error()
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return apperr.ErrDependencyUnavailable.Error()
	default:
		if status >= 500 {
			return "internal_error"
		}
		return "error"
	}
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
