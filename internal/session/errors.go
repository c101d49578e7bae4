package session

import (
	"errors"
	"net/http"

	"github.com/ishworii/jobboard/internal/gateway"
)

// LoginReason classifies why a login attempt failed.
type LoginReason string

const (
	ReasonInvalidCredentials LoginReason = "invalid_credentials"
	ReasonServerError        LoginReason = "server_error"
	ReasonNetworkUnreachable LoginReason = "network_unreachable"
)

// LoginError is returned by Store.Login. Message is safe to show to the user.
type LoginError struct {
	Reason  LoginReason
	Message string
	Err     error
}

func (e *LoginError) Error() string { return "login failed: " + e.Message }
func (e *LoginError) Unwrap() error { return e.Err }

func newLoginError(err error) *LoginError {
	var httpErr *gateway.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusNotFound, http.StatusUnprocessableEntity:
			return &LoginError{Reason: ReasonInvalidCredentials, Message: httpErr.Detail, Err: err}
		default:
			return &LoginError{Reason: ReasonServerError, Message: httpErr.Detail, Err: err}
		}
	}

	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) {
		return &LoginError{
			Reason:  ReasonNetworkUnreachable,
			Message: "Unable to reach the server. Check your connection and try again.",
			Err:     err,
		}
	}

	return &LoginError{Reason: ReasonServerError, Message: "Login failed. Please try again.", Err: err}
}
