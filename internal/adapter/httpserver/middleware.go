package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/gateway"
	"github.com/ishworii/jobboard/internal/navigation"
	"github.com/ishworii/jobboard/internal/platform/correlation"
	apperrors "github.com/ishworii/jobboard/internal/platform/errors"
	"github.com/ishworii/jobboard/internal/session"
)

const maxRequestIDLength = 128

// correlationMiddleware adopts the caller's X-Request-ID or generates one,
// and echoes it on the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlation.Header)
		if id == "" || len(id) > maxRequestIDLength {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// guard evaluates the navigation guard against the current session on every
// request and redirects when it denies.
func (s *Server) guard(req navigation.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := navigation.Guard(req, s.app.Session())
			if !d.Allow {
				return c.Redirect(http.StatusFound, d.RedirectTo)
			}
			return next(c)
		}
	}
}

// translateError maps screen, session and gateway errors onto structured
// errors. Unknown errors return nil and become internal errors.
func translateError(err error) *apperrors.Error {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		e := apperrors.ValidationError("validation failed", validationErr.Fields)
		e.Cause = err
		return e
	}

	var loginErr *session.LoginError
	if errors.As(err, &loginErr) {
		switch loginErr.Reason {
		case session.ReasonInvalidCredentials:
			return apperrors.UnauthorizedError(loginErr.Message, err).WithField("reason", string(loginErr.Reason))
		case session.ReasonNetworkUnreachable:
			return apperrors.ExternalError(loginErr.Message, err).WithField("reason", string(loginErr.Reason))
		default:
			return apperrors.UpstreamError(http.StatusBadGateway, loginErr.Message, err).WithField("reason", string(loginErr.Reason))
		}
	}

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return apperrors.UnauthorizedError("sign in to continue", err)
	case errors.Is(err, domain.ErrEmployerCannotApply), errors.Is(err, domain.ErrForbiddenRole):
		return apperrors.ForbiddenError(err.Error(), err)
	case errors.Is(err, domain.ErrNoBackendEndpoint):
		return apperrors.NotImplementedError("this screen is not available yet", err)
	}

	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) {
		e := apperrors.UpstreamError(httpErr.Status, httpErr.Detail, err)
		e.Fields = httpErr.Fields
		return e
	}

	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) {
		return apperrors.ExternalError("backend unreachable", err)
	}

	return nil
}
