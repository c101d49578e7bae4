package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ishworii/jobboard/internal/navigation"
	apperrors "github.com/ishworii/jobboard/internal/platform/errors"
)

const (
	formRatePerSecond = 1
	formBurst         = 5
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	var errorCounter *prometheus.CounterVec
	if s.httpMetrics != nil {
		errorCounter = s.httpMetrics.ErrorsTotal
	}
	s.echo.Use(apperrors.Middleware(translateError, errorCounter))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            63072000, // 2 years; only sent over HTTPS
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	s.registerHealthRoutes()
	s.registerPageRoutes()
	s.registerFormRoutes()
	s.echo.GET("/live", s.handleLive)
}

// registerPageRoutes registers every navigation page once, behind its guard.
func (s *Server) registerPageRoutes() {
	handlers := s.pageHandlers()
	for _, page := range s.pages.Pages() {
		h, ok := handlers[page.Name]
		if !ok {
			slog.Warn("Navigation page has no screen handler", "path", page.Path, "page", page.Name)
			continue
		}
		s.echo.GET(page.Path, h, s.guard(page.Requirement))
	}
}

func (s *Server) registerFormRoutes() {
	limited := newRateLimiter(formRatePerSecond, formBurst)

	s.echo.POST("/login", s.handleLogin, limited)
	s.echo.POST("/register", s.handleRegister, limited)
	s.echo.POST("/logout", s.handleLogout)
	s.echo.POST("/create-job", s.handleCreateJob, s.guard(s.requirementOf("/create-job")))
	s.echo.POST("/jobs/:id/apply", s.handleApply)
	s.echo.POST("/applications/:id/status", s.handleUpdateStatus, s.guard(s.requirementOf("/applications")))
}

// requirementOf returns the requirement of the page registered at path;
// unknown paths require a session.
func (s *Server) requirementOf(path string) navigation.Requirement {
	if page, ok := s.pages.Lookup(path); ok {
		return page.Requirement
	}
	return navigation.Authenticated
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
