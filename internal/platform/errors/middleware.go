package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Translator maps errors from lower layers onto structured errors. It returns
// nil for errors it does not recognise.
type Translator func(err error) *Error

// Middleware returns an Echo middleware that converts handler errors into
// structured JSON responses. Errors the translator does not recognise become
// internal errors. counter may be nil.
func Middleware(translate Translator, counter *prometheus.CounterVec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// Echo errors (404 route, rate limiter, binder) keep their status.
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				record(counter, WrapHTTPError(httpErr))
				return err
			}

			var structuredErr *Error
			if translate != nil {
				structuredErr = translate(err)
			}
			if structuredErr == nil {
				structuredErr = AsStructuredError(err)
			}

			record(counter, structuredErr)
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func record(counter *prometheus.CounterVec, err *Error) {
	if counter != nil {
		counter.WithLabelValues(string(err.Type)).Inc()
	}
}

func logError(c echo.Context, err *Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case TypeValidation, TypeNotFound, TypeUnauthorized, TypeForbidden, TypeNotImplemented:
		slog.InfoContext(ctx, "Screen request rejected", attrs...)
	case TypeUpstream:
		slog.WarnContext(ctx, "Backend returned an error", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "error", err.Cause)
		}
		slog.ErrorContext(ctx, "Screen request failed", attrs...)
	}
}

// WrapHTTPError converts Echo's HTTPError to a structured error.
func WrapHTTPError(httpErr *echo.HTTPError) *Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok {
		message = msg
	}

	var errType ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest:
		errType = TypeValidation
	case http.StatusUnauthorized:
		errType = TypeUnauthorized
	case http.StatusForbidden:
		errType = TypeForbidden
	case http.StatusNotFound:
		errType = TypeNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		errType = TypeExternal
	default:
		errType = TypeInternal
	}

	err := newError(errType, message, httpErr.Internal)
	return err
}
