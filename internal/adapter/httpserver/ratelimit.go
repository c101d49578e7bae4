package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter throttles form submissions per client IP and route.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / ratePerSecond)))

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		// Keyed by route as well as IP: a user who fumbles the login form
		// must still be able to reach the register form.
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP() + " " + c.Path(), nil
		},
		Store: store,
		// Returned to the person filling in the form, so it says what to do
		// next instead of naming the limit.
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.Warn("Form submission throttled", "client", identifier)
			c.Response().Header().Set("Retry-After", retryAfter)
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many attempts, try again shortly")
		},
	})
}
