package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrForbiddenRole       = errors.New("role not permitted for this action")
	ErrEmployerCannotApply = errors.New("employers cannot apply for jobs")
	ErrTokenNotFound       = errors.New("token not found")
	ErrNoBackendEndpoint   = errors.New("backend exposes no endpoint for this screen")
)

// ValidationError carries client-side field errors found before submission.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
