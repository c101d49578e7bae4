package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ishworii/jobboard/internal/app"
	"github.com/ishworii/jobboard/internal/navigation"
)

// handleLive upgrades to a websocket streaming the cache state behind the
// page named by ?path=. The page's guard runs before the upgrade.
func (s *Server) handleLive(c echo.Context) error {
	path := c.QueryParam("path")
	key, page, ok := app.ScreenKey(s.pages, path)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no live data for this page")
	}

	d := navigation.Guard(page.Requirement, s.app.Session())
	if !d.Allow {
		return c.Redirect(http.StatusFound, d.RedirectTo)
	}

	ip := c.RealIP()
	if ok, reason := s.limits.acquire(ip); !ok {
		slog.WarnContext(c.Request().Context(), "Live connection rejected", "ip", ip, "reason", reason)
		if reason == limitReasonPerIP {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many live connections")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "live updates at capacity")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.release(ip)
		// The upgrader already wrote the HTTP error.
		slog.WarnContext(c.Request().Context(), "Live upgrade failed", "path", path, "error", err)
		return nil
	}

	if err := s.hub.Register(key, conn); err != nil {
		s.limits.release(ip)
		slog.WarnContext(c.Request().Context(), "Live registration rejected", "path", path, "error", err)
		return nil
	}

	go func() {
		defer s.limits.release(ip)
		defer s.hub.Unregister(key, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
