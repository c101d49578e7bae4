package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ishworii/jobboard/internal/adapter/metrics"
	"github.com/ishworii/jobboard/internal/app"
	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/navigation"
	"github.com/ishworii/jobboard/internal/platform/config"
	"github.com/ishworii/jobboard/internal/querycache"
)

// screenService is the screen layer as seen by the handlers.
type screenService interface {
	Session() *domain.Session
	Home(ctx context.Context, filter domain.JobFilter) (*app.HomeView, error)
	JobDetails(ctx context.Context, id int64) (*app.JobDetailsView, error)
	Apply(ctx context.Context, jobID int64, form app.ApplyForm) (*domain.Application, error)
	CreateJobForm() *app.CreateJobFormView
	CreateJob(ctx context.Context, form domain.JobCreate) (*domain.Job, error)
	MyJobs(ctx context.Context) (*app.MyJobsView, error)
	JobApplications(ctx context.Context, jobID int64) (*app.JobApplicationsView, error)
	Applications(ctx context.Context, filter domain.ApplicationFilter) (*app.ApplicationsView, error)
	UpdateApplicationStatus(ctx context.Context, appID int64, status domain.ApplicationStatus) (*domain.Application, error)
	MyApplications(ctx context.Context) error
	Profile(ctx context.Context) (*app.ProfileView, error)
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Logout(ctx context.Context)
}

// liveHub attaches websocket connections to cache keys.
type liveHub interface {
	Register(key querycache.Key, conn *websocket.Conn) error
	Unregister(key querycache.Key, conn *websocket.Conn)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app      screenService
	pages    *navigation.Table
	hub      liveHub
	upgrader websocket.Upgrader
	limits   *connLimits

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

type Option func(*Server)

// WithMetrics serves reg on /metrics and records request metrics on m.
func WithMetrics(reg *prometheus.Registry, m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.registry = reg
		s.httpMetrics = m
	}
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

func NewServer(cfg *config.Config, app screenService, pages *navigation.Table, hub liveHub, checkOrigin func(*http.Request) bool, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		pages:     pages,
		hub:       hub,
		upgrader:  websocket.Upgrader{CheckOrigin: checkOrigin},
		limits:    newConnLimits(cfg.LiveMaxConnections, cfg.LiveMaxPerIP),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting screen server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
