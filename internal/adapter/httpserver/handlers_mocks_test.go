package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/ishworii/jobboard/internal/app"
	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/navigation"
	"github.com/ishworii/jobboard/internal/platform/config"
	"github.com/ishworii/jobboard/internal/querycache"
)

// --- Mock implementations ---

type mockScreens struct {
	session *domain.Session

	homeFn            func(ctx context.Context, filter domain.JobFilter) (*app.HomeView, error)
	jobDetailsFn      func(ctx context.Context, id int64) (*app.JobDetailsView, error)
	applyFn           func(ctx context.Context, jobID int64, form app.ApplyForm) (*domain.Application, error)
	createJobFn       func(ctx context.Context, form domain.JobCreate) (*domain.Job, error)
	myJobsFn          func(ctx context.Context) (*app.MyJobsView, error)
	jobApplicationsFn func(ctx context.Context, jobID int64) (*app.JobApplicationsView, error)
	applicationsFn    func(ctx context.Context, filter domain.ApplicationFilter) (*app.ApplicationsView, error)
	updateStatusFn    func(ctx context.Context, appID int64, status domain.ApplicationStatus) (*domain.Application, error)
	profileFn         func(ctx context.Context) (*app.ProfileView, error)
	loginFn           func(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	registerFn        func(ctx context.Context, reg domain.Registration) (*domain.User, error)
	logoutCalls       int
}

var errNotMocked = errors.New("not implemented")

func (m *mockScreens) Session() *domain.Session { return m.session }

func (m *mockScreens) Home(ctx context.Context, filter domain.JobFilter) (*app.HomeView, error) {
	if m.homeFn != nil {
		return m.homeFn(ctx, filter)
	}
	return &app.HomeView{Filter: filter, Jobs: []domain.Job{}}, nil
}

func (m *mockScreens) JobDetails(ctx context.Context, id int64) (*app.JobDetailsView, error) {
	if m.jobDetailsFn != nil {
		return m.jobDetailsFn(ctx, id)
	}
	return nil, errNotMocked
}

func (m *mockScreens) Apply(ctx context.Context, jobID int64, form app.ApplyForm) (*domain.Application, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, jobID, form)
	}
	return nil, errNotMocked
}

func (m *mockScreens) CreateJobForm() *app.CreateJobFormView {
	return &app.CreateJobFormView{Categories: domain.JobCategories, Locations: domain.JobLocations}
}

func (m *mockScreens) CreateJob(ctx context.Context, form domain.JobCreate) (*domain.Job, error) {
	if m.createJobFn != nil {
		return m.createJobFn(ctx, form)
	}
	return nil, errNotMocked
}

func (m *mockScreens) MyJobs(ctx context.Context) (*app.MyJobsView, error) {
	if m.myJobsFn != nil {
		return m.myJobsFn(ctx)
	}
	return &app.MyJobsView{Jobs: []domain.Job{}}, nil
}

func (m *mockScreens) JobApplications(ctx context.Context, jobID int64) (*app.JobApplicationsView, error) {
	if m.jobApplicationsFn != nil {
		return m.jobApplicationsFn(ctx, jobID)
	}
	return nil, errNotMocked
}

func (m *mockScreens) Applications(ctx context.Context, filter domain.ApplicationFilter) (*app.ApplicationsView, error) {
	if m.applicationsFn != nil {
		return m.applicationsFn(ctx, filter)
	}
	return nil, errNotMocked
}

func (m *mockScreens) UpdateApplicationStatus(ctx context.Context, appID int64, status domain.ApplicationStatus) (*domain.Application, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, appID, status)
	}
	return nil, errNotMocked
}

func (m *mockScreens) MyApplications(_ context.Context) error {
	return domain.ErrNoBackendEndpoint
}

func (m *mockScreens) Profile(ctx context.Context) (*app.ProfileView, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx)
	}
	return &app.ProfileView{User: &m.session.User}, nil
}

func (m *mockScreens) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, creds)
	}
	return nil, errNotMocked
}

func (m *mockScreens) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, reg)
	}
	return nil, errNotMocked
}

func (m *mockScreens) Logout(_ context.Context) {
	m.logoutCalls++
	m.session = nil
}

type mockHub struct {
	registerFn func(key querycache.Key, conn *websocket.Conn) error
	registered chan querycache.Key
}

func (h *mockHub) Register(key querycache.Key, conn *websocket.Conn) error {
	if h.registerFn != nil {
		return h.registerFn(key, conn)
	}
	if h.registered != nil {
		h.registered <- key
	}
	return nil
}

func (h *mockHub) Unregister(querycache.Key, *websocket.Conn) {}

// --- Test helpers ---

var (
	employerSession = &domain.Session{
		User:  domain.User{ID: 1, Email: "boss@example.com", Name: "Boss", Role: domain.RoleEmployer},
		Token: "employer-token",
	}
	seekerSession = &domain.Session{
		User:  domain.User{ID: 2, Email: "ana@example.com", Name: "Ana", Role: domain.RoleJobSeeker},
		Token: "seeker-token",
	}
)

func newTestServer(t *testing.T, screens screenService, opts ...Option) *Server {
	t.Helper()
	cfg := &config.Config{AppEnv: "test", Port: "0"}
	allowAll := func(*http.Request) bool { return true }
	return NewServer(cfg, screens, navigation.DefaultTable(), &mockHub{}, allowAll, opts...)
}

func withHub(h liveHub) Option {
	return func(s *Server) { s.hub = h }
}

func withLiveLimits(maxGlobal, maxPerIP int) Option {
	return func(s *Server) { s.limits = newConnLimits(maxGlobal, maxPerIP) }
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
