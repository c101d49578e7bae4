package app

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishworii/jobboard/internal/backend"
	"github.com/ishworii/jobboard/internal/backend/backendtest"
	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/gateway"
	"github.com/ishworii/jobboard/internal/navigation"
	"github.com/ishworii/jobboard/internal/querycache"
	"github.com/ishworii/jobboard/internal/session"
)

type harness struct {
	srv      *backendtest.Server
	clock    *clockwork.FakeClock
	sessions *session.Store
	tokens   *session.MemoryTokenStore
	cache    *querycache.Cache
	svc      *Service
}

func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()
	srv := backendtest.New(t)
	gw, err := gateway.New(gateway.Config{BaseURL: srv.URL, RetryAttempts: 1})
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	auth := backend.NewAuthService(gw)
	jobs := backend.NewJobService(gw)
	tokens := session.NewMemoryTokenStore()
	sessions := session.NewStore(auth, tokens, clock, opts...)
	cache := querycache.New(querycache.Config{StaleTime: time.Minute, Retention: 5 * time.Minute}, clock, nil)

	svc := NewService(sessions, cache, auth, jobs, backend.NewApplicationService(gw, jobs), 0)
	t.Cleanup(svc.Stop)

	return &harness{srv: srv, clock: clock, sessions: sessions, tokens: tokens, cache: cache, svc: svc}
}

func (h *harness) login(t *testing.T, email string, role domain.Role) *domain.Session {
	t.Helper()
	h.srv.AddUser(email, "secret", strings.Split(email, "@")[0], role)
	sess, err := h.svc.Login(context.Background(), domain.Credentials{Email: email, Password: "secret"})
	require.NoError(t, err)
	return sess
}

var validJob = domain.JobCreate{
	Title:       "Platform Engineer",
	Description: "Own the deployment pipeline, the observability stack and on-call tooling.",
	Category:    "Software Development",
	Location:    "Lalitpur, Bagmati",
}

func TestApply_AnonymousRejectedWithoutNetwork(t *testing.T) {
	h := newHarness(t)
	before := h.srv.Requests()

	_, err := h.svc.Apply(context.Background(), 1, ApplyForm{})

	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Equal(t, before, h.srv.Requests())
}

func TestApply_EmployerRejectedWithoutNetwork(t *testing.T) {
	h := newHarness(t)
	employer := h.login(t, "boss@example.com", domain.RoleEmployer)
	job := h.srv.AddJob(employer.ID, validJob)

	_, err := h.svc.JobDetails(context.Background(), job.ID)
	require.NoError(t, err)
	snapBefore, _ := h.cache.Peek(jobKey(job.ID))
	requestsBefore := h.srv.Requests()

	_, err = h.svc.Apply(context.Background(), job.ID, ApplyForm{ResumeURL: "https://cv.example.com/x.pdf"})

	assert.ErrorIs(t, err, domain.ErrEmployerCannotApply)
	assert.Equal(t, requestsBefore, h.srv.Requests())
	assert.Equal(t, employer, h.sessions.Current())
	snapAfter, _ := h.cache.Peek(jobKey(job.ID))
	assert.Equal(t, snapBefore, snapAfter)
}

func TestApply_JobSeekerInvalidatesJobApplications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	employerUser := h.srv.AddUser("boss@example.com", "secret", "Boss", domain.RoleEmployer)
	job := h.srv.AddJob(employerUser.ID, validJob)
	h.cache.Query(ctx, applicationsForJobKey(job.ID), func(context.Context) (any, error) {
		return []domain.Application{}, nil
	})
	h.login(t, "ana@example.com", domain.RoleJobSeeker)

	app, err := h.svc.Apply(ctx, job.ID, ApplyForm{ResumeURL: " https://cv.example.com/ana.pdf "})
	require.NoError(t, err)
	require.NotNil(t, app.ResumeURL)
	assert.Equal(t, "https://cv.example.com/ana.pdf", *app.ResumeURL)

	snap, ok := h.cache.Peek(applicationsForJobKey(job.ID))
	require.True(t, ok)
	assert.Equal(t, querycache.StateStale, snap.State)
}

func TestApply_RejectsMalformedResumeURL(t *testing.T) {
	h := newHarness(t)
	h.login(t, "ana@example.com", domain.RoleJobSeeker)
	before := h.srv.Requests()

	_, err := h.svc.Apply(context.Background(), 1, ApplyForm{ResumeURL: "not a url"})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "resume_url")
	assert.Equal(t, before, h.srv.Requests())
}

func TestCreateJob_ValidatesBeforeSubmitting(t *testing.T) {
	h := newHarness(t)
	h.login(t, "boss@example.com", domain.RoleEmployer)
	before := h.srv.Requests()

	_, err := h.svc.CreateJob(context.Background(), domain.JobCreate{Title: "Dev", Description: "too short"})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be at least 5 characters", verr.Fields["title"])
	assert.Equal(t, "must be at least 50 characters", verr.Fields["description"])
	assert.Equal(t, "is required", verr.Fields["category"])
	assert.Equal(t, "is required", verr.Fields["location"])
	assert.Equal(t, before, h.srv.Requests())
}

func TestCreateJob_RefreshesListings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, "boss@example.com", domain.RoleEmployer)

	home, err := h.svc.Home(ctx, domain.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, home.Jobs)
	mine, err := h.svc.MyJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, mine.Jobs)

	created, err := h.svc.CreateJob(ctx, validJob)
	require.NoError(t, err)

	home, err = h.svc.Home(ctx, domain.JobFilter{})
	require.NoError(t, err)
	require.Len(t, home.Jobs, 1)
	assert.Equal(t, created.ID, home.Jobs[0].ID)

	mine, err = h.svc.MyJobs(ctx)
	require.NoError(t, err)
	require.Len(t, mine.Jobs, 1)

	details, err := h.svc.JobDetails(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, validJob.Title, details.Job.Title)
	assert.Equal(t, validJob.Description, details.Job.Description)
	assert.Equal(t, validJob.Category, details.Job.Category)
	assert.Equal(t, validJob.Location, details.Job.Location)
	assert.False(t, details.CanApply)
}

func TestHome_ServesFreshResultsFromCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Home(ctx, domain.JobFilter{Title: "go"})
	require.NoError(t, err)
	_, err = h.svc.Home(ctx, domain.JobFilter{Title: " go "})
	require.NoError(t, err)
	assert.Equal(t, 1, h.srv.Hits("GET /jobs"))

	_, err = h.svc.Home(ctx, domain.JobFilter{Title: "rust"})
	require.NoError(t, err)
	assert.Equal(t, 2, h.srv.Hits("GET /jobs"))

	h.clock.Advance(2 * time.Minute)
	_, err = h.svc.Home(ctx, domain.JobFilter{Title: "go"})
	require.NoError(t, err)
	assert.Equal(t, 3, h.srv.Hits("GET /jobs"))
}

func TestUpdateApplicationStatus_ReflectsServerVerbatim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	employer := h.login(t, "boss@example.com", domain.RoleEmployer)
	seeker := h.srv.AddUser("ana@example.com", "secret", "Ana", domain.RoleJobSeeker)
	job := h.srv.AddJob(employer.ID, validJob)
	app := h.srv.AddApplication(seeker.ID, job.ID, domain.StatusRejected)

	view, err := h.svc.JobApplications(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, view.Applications, 1)
	assert.Equal(t, domain.StatusRejected, view.Applications[0].Status)

	updated, err := h.svc.UpdateApplicationStatus(ctx, app.ID, domain.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, updated.Status)

	view, err = h.svc.JobApplications(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, view.Applications, 1)
	assert.Equal(t, updated.Status, view.Applications[0].Status)
	assert.Equal(t, 2, h.srv.Hits("GET /applications/"+itoa(job.ID)))
}

func TestUpdateApplicationStatus_RejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	h.login(t, "boss@example.com", domain.RoleEmployer)
	before := h.srv.Requests()

	_, err := h.svc.UpdateApplicationStatus(context.Background(), 1, "hired")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, before, h.srv.Requests())
}

func TestApplications_FiltersClientSide(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	employer := h.login(t, "boss@example.com", domain.RoleEmployer)
	ana := h.srv.AddUser("ana@example.com", "secret", "Ana Rai", domain.RoleJobSeeker)
	ben := h.srv.AddUser("ben@example.com", "secret", "Ben Lama", domain.RoleJobSeeker)
	jobA := h.srv.AddJob(employer.ID, validJob)
	jobB := h.srv.AddJob(employer.ID, validJob)
	h.srv.AddApplication(ana.ID, jobA.ID, domain.StatusPending)
	h.srv.AddApplication(ben.ID, jobA.ID, domain.StatusAccepted)
	h.srv.AddApplication(ana.ID, jobB.ID, domain.StatusAccepted)

	view, err := h.svc.Applications(ctx, domain.ApplicationFilter{Status: domain.StatusAccepted, Search: "ANA"})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Total)
	assert.Len(t, view.Jobs, 2)
	require.Len(t, view.Applications, 1)
	assert.Equal(t, jobB.ID, view.Applications[0].JobID)

	_, err = h.svc.Applications(ctx, domain.ApplicationFilter{JobID: jobA.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, h.srv.Hits("GET /applications/"+itoa(jobA.ID)))
}

func TestLogin_WrongPasswordLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser("ana@example.com", "secret", "Ana", domain.RoleJobSeeker)

	_, err := h.svc.Login(context.Background(), domain.Credentials{Email: "ana@example.com", Password: "wrong"})

	var loginErr *session.LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.Equal(t, session.ReasonInvalidCredentials, loginErr.Reason)
	var httpErr *gateway.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Nil(t, h.svc.Session())
	_, err = h.tokens.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestLogin_ValidatesCredentials(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), domain.Credentials{Email: "not-an-email"})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "is required", verr.Fields["password"])
	assert.Zero(t, h.srv.Requests())
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	user, err := h.svc.Register(context.Background(), domain.Registration{
		Email: "new@example.com", Password: "pw", Name: "New", Role: domain.RoleJobSeeker,
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)

	_, err = h.svc.Register(context.Background(), domain.Registration{
		Email: "x@example.com", Password: "pw", Name: "X", Role: "admin",
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be one of: job_seeker, employer", verr.Fields["role"])
}

func TestLogout_ClearsCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, "boss@example.com", domain.RoleEmployer)
	_, err := h.svc.MyJobs(ctx)
	require.NoError(t, err)
	_, err = h.svc.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, h.cache.Len())

	h.svc.Logout(ctx)
	h.svc.Logout(ctx)

	assert.Nil(t, h.svc.Session())
	assert.Zero(t, h.cache.Len())
}

func TestSessionSwitch_SubscribedScreenShowsNextUsersData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.login(t, "alice@example.com", domain.RoleEmployer)
	h.srv.AddJob(alice.ID, domain.JobCreate{
		Title:       "Alice Secret Job",
		Description: validJob.Description,
		Category:    validJob.Category,
		Location:    validJob.Location,
	})
	view, err := h.svc.MyJobs(ctx)
	require.NoError(t, err)
	require.Len(t, view.Jobs, 1)

	// An open my-jobs screen keeps the entry subscribed across the switch.
	sub := h.cache.Subscribe(myJobsKey())
	t.Cleanup(sub.Close)

	h.svc.Logout(ctx)
	bob := h.login(t, "bob@example.com", domain.RoleEmployer)

	created, err := h.svc.CreateJob(ctx, validJob)
	require.NoError(t, err)

	view, err = h.svc.MyJobs(ctx)
	require.NoError(t, err)
	require.Len(t, view.Jobs, 1)
	assert.Equal(t, created.ID, view.Jobs[0].ID)
	assert.Equal(t, bob.ID, view.Jobs[0].PostedBy)

	snap, ok := h.cache.Peek(myJobsKey())
	require.True(t, ok)
	for _, job := range snap.Value.([]domain.Job) {
		assert.NotEqual(t, alice.ID, job.PostedBy)
	}
}

func TestProfile_RequiresSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Profile(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestUnauthorizedPolicy(t *testing.T) {
	t.Run("disabled keeps the session", func(t *testing.T) {
		h := newHarness(t)
		h.login(t, "boss@example.com", domain.RoleEmployer)
		h.srv.RevokeTokens()

		_, err := h.svc.MyJobs(context.Background())

		require.Error(t, err)
		assert.NotNil(t, h.svc.Session())
	})

	t.Run("enabled logs out and clears cache", func(t *testing.T) {
		h := newHarness(t, session.WithLogoutOnUnauthorized(true))
		h.login(t, "boss@example.com", domain.RoleEmployer)
		_, err := h.svc.Home(context.Background(), domain.JobFilter{})
		require.NoError(t, err)
		h.srv.RevokeTokens()

		_, err = h.svc.MyJobs(context.Background())

		var httpErr *gateway.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Nil(t, h.svc.Session())
		assert.Zero(t, h.cache.Len())
	})
}

func TestMyApplications_NoEndpoint(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.svc.MyApplications(context.Background()), domain.ErrNoBackendEndpoint)
}

func TestCreateJobForm(t *testing.T) {
	h := newHarness(t)
	form := h.svc.CreateJobForm()
	assert.Contains(t, form.Categories, "Software Development")
	assert.Contains(t, form.Locations, "Remote, Nepal")

	form.Categories[0] = "Tampered"
	form.Locations[0] = "Tampered"
	assert.Equal(t, "Software Development", domain.JobCategories[0])
	assert.Equal(t, "Kathmandu, Bagmati", domain.JobLocations[0])
	assert.Equal(t, "Software Development", h.svc.CreateJobForm().Categories[0])
}

func TestScreenKey(t *testing.T) {
	table := navigation.DefaultTable()

	tests := []struct {
		path string
		want querycache.Key
		ok   bool
	}{
		{"/", jobsKey(domain.JobFilter{}), true},
		{"/jobs/7", jobKey(7), true},
		{"/jobs/abc", querycache.Key{}, false},
		{"/my-jobs", myJobsKey(), true},
		{"/my-jobs/3/applications", applicationsForJobKey(3), true},
		{"/applications", applicationsKey(), true},
		{"/profile", profileKey(), true},
		{"/login", querycache.Key{}, false},
		{"/nowhere", querycache.Key{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			key, _, ok := ScreenKey(table, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestKeys_ApplicationsSelectsPerJobEntries(t *testing.T) {
	assert.True(t, applicationsKey().Matches(applicationsForJobKey(4)))
	assert.False(t, querycache.NewKey(opJobs).Matches(jobKey(4)))
	assert.True(t, querycache.NewKey(opJobs).Matches(jobsKey(domain.JobFilter{Title: "x"})))
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
