package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel")

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_errors_total"}, []string{"type"})
}

func serve(t *testing.T, translate Translator, counter *prometheus.CounterVec, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/jobs/1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, Middleware(translate, counter)(h)(c))
	return rec
}

func TestMiddleware_StructuredError(t *testing.T) {
	counter := newCounter()
	rec := serve(t, nil, counter, func(echo.Context) error {
		return ValidationError("validation failed", map[string]string{"title": "required"})
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "required", resp.Fields["title"])
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("validation")))
}

func TestMiddleware_TranslatorMapsError(t *testing.T) {
	translate := func(err error) *Error {
		if errors.Is(err, errSentinel) {
			return ForbiddenError("employers cannot apply", err)
		}
		return nil
	}

	rec := serve(t, translate, nil, func(echo.Context) error {
		return fmt.Errorf("apply: %w", errSentinel)
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, TypeForbidden, resp.Type)
}

func TestMiddleware_UnknownErrorIsInternal(t *testing.T) {
	counter := newCounter()
	rec := serve(t, func(error) *Error { return nil }, counter, func(echo.Context) error {
		return fmt.Errorf("standard error")
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal error", resp.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("internal")))
}

func TestMiddleware_NoError(t *testing.T) {
	counter := newCounter()
	rec := serve(t, nil, counter, func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
	assert.Equal(t, 0, testutil.CollectAndCount(counter))
}

func TestMiddleware_EchoErrorPassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	counter := newCounter()

	err := Middleware(nil, counter)(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	})(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("internal")))
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{http.StatusBadRequest, TypeValidation},
		{http.StatusUnauthorized, TypeUnauthorized},
		{http.StatusForbidden, TypeForbidden},
		{http.StatusNotFound, TypeNotFound},
		{http.StatusBadGateway, TypeExternal},
		{http.StatusServiceUnavailable, TypeExternal},
		{http.StatusTeapot, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			got := WrapHTTPError(echo.NewHTTPError(tt.code))
			assert.Equal(t, tt.want, got.Type)
		})
	}

	withMessage := WrapHTTPError(echo.NewHTTPError(http.StatusNotFound, "no such page"))
	assert.Equal(t, "no such page", withMessage.Message)

	cause := errors.New("bind failed")
	withCause := WrapHTTPError(echo.NewHTTPError(http.StatusBadRequest).SetInternal(cause))
	assert.ErrorIs(t, withCause, cause)
}
