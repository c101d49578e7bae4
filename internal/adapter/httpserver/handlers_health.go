package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ishworii/jobboard/internal/adapter/metrics"
	"github.com/ishworii/jobboard/internal/platform/version"
)

const readinessProbeTimeout = 5 * time.Second

// HealthCheck is a named readiness dependency (token store, backend).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type checkResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status":        "ok",
		"uptime":        time.Since(s.startTime).Seconds(),
		"authenticated": s.app.Session() != nil,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness runs every check and reports each result; any failure
// makes the endpoint answer 503.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	results := make([]checkResult, 0, len(s.healthChecks))
	for _, hc := range s.healthChecks {
		r := checkResult{Name: hc.Name, OK: true}
		if err := hc.Check(ctx); err != nil {
			r.OK = false
			r.Error = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		results = append(results, r)
	}

	if err := c.JSON(code, map[string]any{"status": status, "checks": results}); err != nil {
		return fmt.Errorf("failed to send readiness response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
