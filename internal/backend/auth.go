package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/gateway"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthService covers login, registration and profile lookup. Logging out
// needs no backend call; the session store discards the token.
type AuthService struct {
	gw Doer
}

func NewAuthService(gw Doer) *AuthService {
	return &AuthService{gw: gw}
}

// Login exchanges credentials for a bearer token (OAuth2 password form, the
// email goes in "username").
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	var resp tokenResponse
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/token",
		Form: url.Values{
			"username": {creds.Email},
			"password": {creds.Password},
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("login: backend returned no access token")
	}
	return resp.AccessToken, nil
}

func (s *AuthService) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	var user domain.User
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/register",
		Body:   reg,
	}, &user)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &user, nil
}

// Profile resolves token to its user.
func (s *AuthService) Profile(ctx context.Context, token string) (*domain.User, error) {
	var user domain.User
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/profile",
		Token:  token,
	}, &user)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &user, nil
}
