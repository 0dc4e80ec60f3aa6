package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/amenity-reservations/internal/internaltypes"
)

var statusByKind = map[internaltypes.Kind]int{
	internaltypes.KindInvalidRequest:      http.StatusBadRequest,
	internaltypes.KindUnauthorized:        http.StatusUnauthorized,
	internaltypes.KindForbidden:           http.StatusForbidden,
	internaltypes.KindNotFound:            http.StatusNotFound,
	internaltypes.KindSlotTaken:           http.StatusConflict,
	internaltypes.KindSlotBlocked:         http.StatusConflict,
	internaltypes.KindPolicyDenied:        http.StatusForbidden,
	internaltypes.KindIdempotencyConflict: http.StatusUnprocessableEntity,
	internaltypes.KindVersionConflict:     http.StatusConflict,
	internaltypes.KindUpstreamUnavailable: http.StatusBadGateway,
	internaltypes.KindWindowNotOpen:       http.StatusConflict,
	internaltypes.KindWindowClosed:        http.StatusConflict,
	internaltypes.KindAlreadyCheckedIn:    http.StatusConflict,
	internaltypes.KindNotCheckedIn:        http.StatusConflict,
	internaltypes.KindAlreadyCheckedOut:   http.StatusConflict,
	internaltypes.KindUnavailable:         http.StatusServiceUnavailable,
}

type conflictBody struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type errorBody struct {
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	Conflict  *conflictBody `json:"conflict,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
}

// errorHandler renders every handler error as {error, message, conflict}.
func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.Any("error", err))
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response", slog.Any("error", err))
		}
	}
}

func render(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return he.Code, errorBody{Error: codeForStatus(he.Code), Message: msg}
	}

	var e *internaltypes.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: "internal error"}
	}
	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := errorBody{Error: string(e.Kind), Message: e.Message, Retryable: e.Retryable()}
	if body.Message == "" {
		body.Message = string(e.Kind)
	}
	if e.Conflict != nil {
		body.Conflict = &conflictBody{StartTime: e.Conflict.Start, EndTime: e.Conflict.End}
	}
	return status, body
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(internaltypes.KindNotFound)
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusUnauthorized:
		return string(internaltypes.KindUnauthorized)
	case http.StatusForbidden:
		return string(internaltypes.KindForbidden)
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	}
	if status < http.StatusInternalServerError {
		return string(internaltypes.KindInvalidRequest)
	}
	return "INTERNAL"
}
