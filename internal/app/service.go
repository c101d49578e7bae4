package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/querycache"
)

// Sessions is the session store surface the screens need.
type Sessions interface {
	Current() *domain.Session
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Logout(ctx context.Context)
	HandleUnauthorized(ctx context.Context, sess *domain.Session, err error) bool
	OnSessionEnd(fn func(ctx context.Context))
}

type AuthService interface {
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Profile(ctx context.Context, token string) (*domain.User, error)
}

type JobService interface {
	CreateJob(ctx context.Context, sess *domain.Session, in domain.JobCreate) (*domain.Job, error)
	ListJobs(ctx context.Context, sess *domain.Session, filter domain.JobFilter) ([]domain.Job, error)
	GetJob(ctx context.Context, sess *domain.Session, id int64) (*domain.Job, error)
	MyJobs(ctx context.Context, sess *domain.Session) ([]domain.Job, error)
}

type ApplicationService interface {
	Apply(ctx context.Context, sess *domain.Session, jobID int64, resumeURL *string) (*domain.Application, error)
	ListForJob(ctx context.Context, sess *domain.Session, jobID int64) ([]domain.Application, error)
	ListAllForCurrentEmployer(ctx context.Context, sess *domain.Session) ([]domain.Application, error)
	UpdateStatus(ctx context.Context, sess *domain.Session, appID int64, status domain.ApplicationStatus) (*domain.Application, error)
}

// Service is the screen layer.
type Service struct {
	sessions Sessions
	cache    *querycache.Cache
	auth     AuthService
	jobs     JobService
	apps     ApplicationService
	validate *validator.Validate

	stopEviction func()
	stopOnce     sync.Once
}

// NewService wires the screens and starts the cache eviction timer. The cache
// is cleared whenever a session ends so one user's data is never shown to
// the next.
func NewService(sessions Sessions, cache *querycache.Cache, auth AuthService, jobs JobService, apps ApplicationService, evictionInterval time.Duration) *Service {
	s := &Service{
		sessions: sessions,
		cache:    cache,
		auth:     auth,
		jobs:     jobs,
		apps:     apps,
		validate: newValidator(),
	}

	sessions.OnSessionEnd(func(ctx context.Context) {
		slog.DebugContext(ctx, "Session ended, clearing query cache")
		cache.Clear()
	})

	s.stopEviction = func() {}
	if evictionInterval > 0 {
		s.stopEviction = cache.StartEvictionTimer(evictionInterval)
	}
	return s
}

// Stop halts the eviction timer. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(s.stopEviction)
}

// Cache exposes the query cache for live-update subscriptions.
func (s *Service) Cache() *querycache.Cache { return s.cache }

// Session returns the current session snapshot, nil when anonymous.
func (s *Service) Session() *domain.Session { return s.sessions.Current() }

// check applies the unauthorized policy to err and returns it unchanged.
func (s *Service) check(ctx context.Context, sess *domain.Session, err error) error {
	if err != nil && s.sessions.HandleUnauthorized(ctx, sess, err) {
		slog.InfoContext(ctx, "Session cleared after rejected token")
	}
	return err
}
