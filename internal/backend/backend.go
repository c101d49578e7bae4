package backend

import (
	"context"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/gateway"
)

// Doer is the gateway surface the services need.
type Doer interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

func tokenOf(sess *domain.Session) string {
	if sess == nil {
		return ""
	}
	return sess.Token
}
