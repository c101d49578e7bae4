package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/ishworii/jobboard/internal/adapter/metrics"
	"github.com/ishworii/jobboard/internal/platform/correlation"
	"github.com/ishworii/jobboard/internal/platform/retry"
	"github.com/ishworii/jobboard/internal/platform/version"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// Request describes one backend call. Body is JSON-encoded; Form, when set,
// is sent form-encoded instead. An empty Token sends no Authorization header.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Form   url.Values
	Token  string
}

// Config holds the tunables for a Client.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimit       float64 // requests per second, zero disables limiting
	RateBurst       int
	RetryAttempts   int
	RetryBackoff    time.Duration
	BreakerFailures uint
	BreakerDelay    time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	breaker   circuitbreaker.CircuitBreaker[any]
	policy    retry.Policy
	metrics   *metrics.GatewayMetrics
	userAgent string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records request metrics on m.
func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock drives retry backoff from clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.policy.Clock = clock }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend base URL must be absolute, got %q", cfg.BaseURL)
	}

	attempts := max(cfg.RetryAttempts, 1)
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	delay := cfg.BreakerDelay
	if delay == 0 {
		delay = 30 * time.Second
	}

	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		policy: retry.Policy{
			MaxAttempts:      attempts,
			InitialBackoff:   cfg.RetryBackoff,
			MaxBackoff:       5 * time.Second,
			RateLimitBackoff: 2 * time.Second,
		},
		userAgent: version.UserAgent(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(failures).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "gateway",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if c.metrics != nil {
				c.metrics.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	return c, nil
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// Do performs req and decodes a successful JSON response into out (which may
// be nil). Failures are *TransportError or *HTTPError, possibly wrapped.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	ctx, _ = correlation.Ensure(ctx)

	payload, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}

	route := routeLabel(req.Path)
	policy := c.policy
	if req.Method != http.MethodGet {
		policy.MaxAttempts = 1
	}
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Retrying backend request",
			"method", req.Method,
			"route", route,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.Retries.WithLabelValues(route).Inc()
		}
	}

	body, err := retry.Do(ctx, policy, classify, func() ([]byte, error) {
		return c.attempt(ctx, req, route, payload, contentType)
	})
	if err != nil {
		var perm *retry.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, req Request, route string, payload []byte, contentType string) ([]byte, error) {
	target := c.resolve(req)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gateway rate limiter: %w", err)
		}
	}

	if !c.breaker.TryAcquirePermit() {
		c.observe(req.Method, route, "breaker_open", 0)
		return nil, &TransportError{Method: req.Method, URL: target, Err: circuitbreaker.ErrOpen}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		c.breaker.RecordSuccess()
		return nil, fmt.Errorf("build %s %s request: %w", req.Method, req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if id, ok := correlation.ID(ctx); ok {
		httpReq.Header.Set(correlation.Header, id)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.breaker.RecordError(err)
		c.observe(req.Method, route, "transport", time.Since(start))
		return nil, &TransportError{Method: req.Method, URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.breaker.RecordError(err)
		c.observe(req.Method, route, "transport", time.Since(start))
		return nil, &TransportError{Method: req.Method, URL: target, Err: fmt.Errorf("read response: %w", err)}
	}
	c.observe(req.Method, route, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.RecordError(fmt.Errorf("backend status %d", resp.StatusCode))
	} else {
		c.breaker.RecordSuccess()
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newHTTPError(req.Method, req.Path, resp.StatusCode, body, resp.Header)
	}

	slog.DebugContext(ctx, "Backend request completed",
		"method", req.Method,
		"route", route,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return body, nil
}

func (c *Client) resolve(req Request) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String()
}

func (c *Client) observe(method, route, outcome string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestsTotal.WithLabelValues(method, route, outcome).Inc()
	if d > 0 {
		c.metrics.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

func encodeBody(req Request) ([]byte, string, error) {
	switch {
	case req.Form != nil:
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		return b, "application/json", nil
	default:
		return nil, "", nil
	}
}

func classify(err error) retry.Action {
	if errors.Is(err, circuitbreaker.ErrOpen) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == http.StatusTooManyRequests:
			return retry.After
		case httpErr.Status >= http.StatusInternalServerError:
			return retry.Retry
		default:
			return retry.Stop
		}
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return retry.Retry
	}
	return retry.Stop
}

// routeLabel collapses numeric path segments so metrics stay low-cardinality.
func routeLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}
