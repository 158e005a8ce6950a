package http

import (
	"errors"
	"log/slog"
	"net/http"

	"leaseprotect/internal/domain/apperr"

	"github.com/labstack/echo/v4"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindAuth:       http.StatusUnauthorized,
	apperr.KindForbidden:  http.StatusForbidden,
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindConflict:   http.StatusConflict,
}

const genericFailure = "ocurrió un error interno; intente de nuevo más tarde"

// StatusFor maps an error's taxonomy kind onto an HTTP status.
func StatusFor(err error) int {
	if s, ok := statusByKind[apperr.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders err as the JSON envelope. Infra failures are logged
// with their cause and reach the client as a generic message.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	status := StatusFor(err)
	ae, ok := apperr.As(err)
	if status == http.StatusInternalServerError || !ok {
		code := "internal_error"
		if ok {
			code = ae.Code
		}
		log.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("route", c.Path()),
			slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: genericFailure, Code: code})
	}
	resp := ErrorResponse{Error: ae.Message, Code: ae.Code}
	for _, f := range ae.Fields {
		resp.Details = append(resp.Details, FieldError(f))
	}
	return c.JSON(status, resp)
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cuerpo de la solicitud inválido", Code: "invalid_body"})
}

func invalid(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "la validación falló",
		Code:    "validation_failed",
		Details: ToFieldErrors(err),
	})
}

// ErrorHandler replaces echo's default so framework errors (404 routes,
// oversized bodies) share the envelope.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok {
				msg = m
			}
			_ = c.JSON(he.Code, ErrorResponse{Error: msg, Code: "http_error"})
			return
		}
		_ = writeError(c, log, err)
	}
}
