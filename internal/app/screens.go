package app

import (
	"context"
	"slices"
	"strings"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/querycache"
)

type HomeView struct {
	Filter domain.JobFilter `json:"filter"`
	Jobs   []domain.Job     `json:"jobs"`
}

type JobDetailsView struct {
	Job      *domain.Job `json:"job"`
	CanApply bool        `json:"can_apply"`
}

type CreateJobFormView struct {
	Categories []string `json:"categories"`
	Locations  []string `json:"locations"`
}

type MyJobsView struct {
	Jobs []domain.Job `json:"jobs"`
}

type JobApplicationsView struct {
	Job          *domain.Job          `json:"job"`
	Applications []domain.Application `json:"applications"`
}

type ApplicationsView struct {
	Filter       domain.ApplicationFilter `json:"filter"`
	Jobs         []domain.Job             `json:"jobs"`
	Applications []domain.Application     `json:"applications"`
	Total        int                      `json:"total"`
}

type ProfileView struct {
	User *domain.User `json:"user"`
}

// ApplyForm is submitted from the job details screen.
type ApplyForm struct {
	ResumeURL string `json:"resume_url" form:"resume_url" validate:"omitempty,url"`
}

// Home lists public jobs matching filter.
func (s *Service) Home(ctx context.Context, filter domain.JobFilter) (*HomeView, error) {
	sess := s.sessions.Current()
	jobs, err := querycache.Query(ctx, s.cache, jobsKey(filter), func(ctx context.Context) ([]domain.Job, error) {
		return s.jobs.ListJobs(ctx, sess, filter)
	})
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return &HomeView{Filter: filter, Jobs: jobs}, nil
}

func (s *Service) JobDetails(ctx context.Context, id int64) (*JobDetailsView, error) {
	sess := s.sessions.Current()
	job, err := s.job(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	return &JobDetailsView{Job: job, CanApply: sess.HasRole(domain.RoleJobSeeker)}, nil
}

func (s *Service) job(ctx context.Context, sess *domain.Session, id int64) (*domain.Job, error) {
	job, err := querycache.Query(ctx, s.cache, jobKey(id), func(ctx context.Context) (*domain.Job, error) {
		return s.jobs.GetJob(ctx, sess, id)
	})
	return job, s.check(ctx, sess, err)
}

// Apply submits an application for the current job seeker. Anonymous and
// employer sessions are rejected before any request is made.
func (s *Service) Apply(ctx context.Context, jobID int64, form ApplyForm) (*domain.Application, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if sess.HasRole(domain.RoleEmployer) {
		return nil, domain.ErrEmployerCannotApply
	}
	if err := s.validateForm(form); err != nil {
		return nil, err
	}

	var resumeURL *string
	if u := strings.TrimSpace(form.ResumeURL); u != "" {
		resumeURL = &u
	}

	app, err := querycache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Application, error) {
		return s.apps.Apply(ctx, sess, jobID, resumeURL)
	}, applicationsForJobKey(jobID))
	return app, s.check(ctx, sess, err)
}

// CreateJobForm returns the option lists of the create-job screen.
func (s *Service) CreateJobForm() *CreateJobFormView {
	return &CreateJobFormView{
		Categories: slices.Clone(domain.JobCategories),
		Locations:  slices.Clone(domain.JobLocations),
	}
}

func (s *Service) CreateJob(ctx context.Context, form domain.JobCreate) (*domain.Job, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if !sess.HasRole(domain.RoleEmployer) {
		return nil, domain.ErrForbiddenRole
	}
	if err := s.validateForm(form); err != nil {
		return nil, err
	}

	job, err := querycache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Job, error) {
		return s.jobs.CreateJob(ctx, sess, form)
	}, querycache.NewKey(opJobs), myJobsKey())
	return job, s.check(ctx, sess, err)
}

func (s *Service) MyJobs(ctx context.Context) (*MyJobsView, error) {
	sess := s.sessions.Current()
	jobs, err := s.myJobs(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &MyJobsView{Jobs: jobs}, nil
}

func (s *Service) myJobs(ctx context.Context, sess *domain.Session) ([]domain.Job, error) {
	jobs, err := querycache.Query(ctx, s.cache, myJobsKey(), func(ctx context.Context) ([]domain.Job, error) {
		return s.jobs.MyJobs(ctx, sess)
	})
	return jobs, s.check(ctx, sess, err)
}

func (s *Service) JobApplications(ctx context.Context, jobID int64) (*JobApplicationsView, error) {
	sess := s.sessions.Current()
	job, err := s.job(ctx, sess, jobID)
	if err != nil {
		return nil, err
	}
	apps, err := querycache.Query(ctx, s.cache, applicationsForJobKey(jobID), func(ctx context.Context) ([]domain.Application, error) {
		return s.apps.ListForJob(ctx, sess, jobID)
	})
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return &JobApplicationsView{Job: job, Applications: apps}, nil
}

// Applications lists every application to the employer's jobs, filtered
// client-side.
func (s *Service) Applications(ctx context.Context, filter domain.ApplicationFilter) (*ApplicationsView, error) {
	sess := s.sessions.Current()
	jobs, err := s.myJobs(ctx, sess)
	if err != nil {
		return nil, err
	}
	all, err := querycache.Query(ctx, s.cache, applicationsKey(), func(ctx context.Context) ([]domain.Application, error) {
		return s.apps.ListAllForCurrentEmployer(ctx, sess)
	})
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return &ApplicationsView{
		Filter:       filter,
		Jobs:         jobs,
		Applications: filter.Apply(all),
		Total:        len(all),
	}, nil
}

// UpdateApplicationStatus requests a status change and returns the server's
// application as-is. Any known status may be requested from any other.
func (s *Service) UpdateApplicationStatus(ctx context.Context, appID int64, status domain.ApplicationStatus) (*domain.Application, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return nil, domain.ErrNotAuthenticated
	}
	if !status.Valid() {
		return nil, domain.NewValidationError(map[string]string{
			"status": "must be one of: pending, accepted, rejected",
		})
	}

	app, err := querycache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Application, error) {
		return s.apps.UpdateStatus(ctx, sess, appID, status)
	}, applicationsKey())
	return app, s.check(ctx, sess, err)
}

// MyApplications has no backing endpoint; the page exists in the navigation
// table only.
func (s *Service) MyApplications(_ context.Context) error {
	return domain.ErrNoBackendEndpoint
}

func (s *Service) Profile(ctx context.Context) (*ProfileView, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return nil, domain.ErrNotAuthenticated
	}
	user, err := querycache.Query(ctx, s.cache, profileKey(), func(ctx context.Context) (*domain.User, error) {
		return s.auth.Profile(ctx, sess.Token)
	})
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return &ProfileView{User: user}, nil
}

func (s *Service) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if err := s.validateForm(creds); err != nil {
		return nil, err
	}
	return s.sessions.Login(ctx, creds)
}

func (s *Service) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if err := s.validateForm(reg); err != nil {
		return nil, err
	}
	return s.auth.Register(ctx, reg)
}

// Logout ends the session; the session-end hook clears the cache.
func (s *Service) Logout(ctx context.Context) {
	s.sessions.Logout(ctx)
}
