package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/ishworii/jobboard/internal/adapter/metrics"
	"github.com/ishworii/jobboard/internal/platform/correlation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:       srv.URL,
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New(Config{BaseURL: "/api"})
	assert.Error(t, err)
}

func TestDo_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotAgent, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotRequestID = r.Header.Get(correlation.Header)
		_, _ = w.Write([]byte(`{"id":1,"email":"a@b.c","name":"Ann","role":"employer"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := correlation.WithID(context.Background(), "req-1")

	var out map[string]any
	require.NoError(t, c.Do(ctx, Request{Method: http.MethodGet, Path: "/profile", Token: "tok"}, &out))

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Contains(t, gotAgent, "jobboard-client/")
	assert.Equal(t, "req-1", gotRequestID)
	assert.Equal(t, "Ann", out["name"])
}

func TestDo_OmitsAuthorizationWithoutToken(t *testing.T) {
	var hadAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/jobs"}, nil))
	assert.False(t, hadAuth)
}

func TestDo_EncodesQueryFormAndJSON(t *testing.T) {
	type seen struct {
		path, query, contentType, body string
	}
	var got seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = seen{r.URL.Path, r.URL.RawQuery, r.Header.Get("Content-Type"), string(b)}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/jobs",
		Query:  url.Values{"title": {"go dev"}, "location": {"Remote"}},
	}, nil))
	assert.Equal(t, "/jobs", got.path)
	assert.Equal(t, "location=Remote&title=go+dev", got.query)

	require.NoError(t, c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/token",
		Form:   url.Values{"username": {"a@b.c"}, "password": {"pw"}},
	}, nil))
	assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
	assert.Equal(t, "password=pw&username=a%40b.c", got.body)

	require.NoError(t, c.Do(ctx, Request{
		Method: http.MethodPut,
		Path:   "/applications/3",
		Body:   map[string]string{"status": "accepted"},
	}, nil))
	assert.Equal(t, "/applications/3", got.path)
	assert.Equal(t, "application/json", got.contentType)
	assert.JSONEq(t, `{"status":"accepted"}`, got.body)
}

func TestDo_HTTPErrorWithDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/token"}, nil)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Equal(t, "Incorrect username or password", httpErr.Detail)
	assert.JSONEq(t, `{"detail":"Incorrect username or password"}`, string(httpErr.Payload))
}

func TestDo_RetriesIdempotentGet(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var jobs []map[string]any
	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/jobs"}, &jobs))
	assert.Len(t, jobs, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDo_DoesNotRetryMutations(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/jobs", Body: map[string]string{}}, nil)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Job not found"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/jobs/99"}, nil)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Job not found", httpErr.Detail)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.RetryAttempts = 1 })
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/jobs"}, nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.MethodGet, transportErr.Method)
}

func TestDo_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) {
		cfg.RetryAttempts = 1
		cfg.BreakerFailures = 2
		cfg.BreakerDelay = time.Minute
	})
	ctx := context.Background()
	req := Request{Method: http.MethodPost, Path: "/applications"}

	for range 2 {
		var httpErr *HTTPError
		require.ErrorAs(t, c.Do(ctx, req, nil), &httpErr)
	}

	err := c.Do(ctx, req, nil)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, errors.Is(err, circuitbreaker.ErrOpen))
	assert.EqualValues(t, 2, calls.Load())
}

func TestDo_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"id": 4})
	}))
	defer srv.Close()

	m := metrics.NewGatewayMetrics(prometheus.NewRegistry())
	c, err := New(Config{BaseURL: srv.URL, RetryAttempts: 1}, WithMetrics(m))
	require.NoError(t, err)

	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/jobs/4"}, nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/jobs/:id", "200")))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/jobs/:id", routeLabel("/jobs/12"))
	assert.Equal(t, "/jobs/my-jobs", routeLabel("/jobs/my-jobs"))
	assert.Equal(t, "/applications/:id", routeLabel("applications/3/"))
}
