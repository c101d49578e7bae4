package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// TransportError means no response reached the client: DNS, connection,
// timeout or an open circuit breaker.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a 4xx/5xx response from the backend.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Payload json.RawMessage
	// Detail is the human-readable message: payload.detail when it is a
	// string, the joined validation messages when it is a list, otherwise
	// the status text.
	Detail string
	// Fields holds field-level validation messages keyed by field name.
	Fields map[string]string

	retryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: backend returned %d: %s", e.Method, e.Path, e.Status, e.Detail)
}

// RetryAfter reports the server's Retry-After hint for 429/503 responses.
func (e *HTTPError) RetryAfter() time.Duration { return e.retryAfter }

func newHTTPError(method, path string, status int, body []byte, header http.Header) *HTTPError {
	e := &HTTPError{
		Method: method,
		Path:   path,
		Status: status,
	}
	if gjson.ValidBytes(body) {
		e.Payload = json.RawMessage(body)
		e.Detail, e.Fields = parseDetail(body)
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		e.Detail = text
	}
	if e.Detail == "" {
		e.Detail = http.StatusText(status)
	}
	if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
		e.retryAfter = time.Duration(secs) * time.Second
	}
	return e
}

// parseDetail extracts a message and field errors from the payload shapes the
// backend produces:
//
//	{"detail": "Incorrect username or password"}
//	{"detail": [{"loc": ["body", "title"], "msg": "field required"}]}
//	{"title": "too short", "description": "too short"}
func parseDetail(body []byte) (string, map[string]string) {
	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String:
		return detail.String(), nil

	case detail.IsArray():
		fields := make(map[string]string)
		var msgs []string
		for _, item := range detail.Array() {
			msg := item.Get("msg").String()
			if msg == "" {
				continue
			}
			loc := item.Get("loc").Array()
			if len(loc) > 0 {
				field := loc[len(loc)-1].String()
				fields[field] = msg
				msgs = append(msgs, field+": "+msg)
			} else {
				msgs = append(msgs, msg)
			}
		}
		if len(fields) == 0 {
			fields = nil
		}
		return strings.Join(msgs, "; "), fields

	case detail.Exists():
		return detail.Raw, nil
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return "", nil
	}
	var message string
	fields := make(map[string]string)
	root.ForEach(func(key, value gjson.Result) bool {
		switch {
		case key.String() == "message" || key.String() == "error":
			message = value.String()
		case value.Type == gjson.String:
			fields[key.String()] = value.String()
		case value.IsArray() && len(value.Array()) > 0:
			fields[key.String()] = value.Array()[0].String()
		}
		return true
	})
	if len(fields) == 0 {
		return message, nil
	}
	if message == "" {
		message = "validation failed"
	}
	return message, fields
}
