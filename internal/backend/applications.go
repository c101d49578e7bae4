package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/gateway"
)

// maxFanOut bounds the concurrent per-job requests of ListAllForCurrentEmployer.
const maxFanOut = 4

type ApplicationService struct {
	gw   Doer
	jobs *JobService
}

func NewApplicationService(gw Doer, jobs *JobService) *ApplicationService {
	return &ApplicationService{gw: gw, jobs: jobs}
}

type applyRequest struct {
	JobID     int64   `json:"job_id"`
	ResumeURL *string `json:"resume_url,omitempty"`
}

func (s *ApplicationService) Apply(ctx context.Context, sess *domain.Session, jobID int64, resumeURL *string) (*domain.Application, error) {
	var app domain.Application
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/applications",
		Body:   applyRequest{JobID: jobID, ResumeURL: resumeURL},
		Token:  tokenOf(sess),
	}, &app)
	if err != nil {
		return nil, fmt.Errorf("apply to job %d: %w", jobID, err)
	}
	return &app, nil
}

func (s *ApplicationService) ListForJob(ctx context.Context, sess *domain.Session, jobID int64) ([]domain.Application, error) {
	apps := []domain.Application{}
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/applications/" + strconv.FormatInt(jobID, 10),
		Token:  tokenOf(sess),
	}, &apps)
	if err != nil {
		return nil, fmt.Errorf("list applications for job %d: %w", jobID, err)
	}
	return apps, nil
}

// ListAllForCurrentEmployer gathers the applications of every job the
// employer posted. The backend has no aggregate endpoint, so this issues one
// request per job (N+1) in parallel and merges the results in job listing
// order. The first failure cancels the remaining requests.
func (s *ApplicationService) ListAllForCurrentEmployer(ctx context.Context, sess *domain.Session) ([]domain.Application, error) {
	jobs, err := s.jobs.MyJobs(ctx, sess)
	if err != nil {
		return nil, err
	}

	perJob := make([][]domain.Application, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for i, job := range jobs {
		g.Go(func() error {
			apps, err := s.ListForJob(gctx, sess, job.ID)
			if err != nil {
				return err
			}
			perJob[i] = apps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := []domain.Application{}
	for _, apps := range perJob {
		all = append(all, apps...)
	}
	return all, nil
}

type statusRequest struct {
	Status domain.ApplicationStatus `json:"status"`
}

// UpdateStatus requests a status change. No transition rules are applied
// client-side; the returned application is the server's verbatim.
func (s *ApplicationService) UpdateStatus(ctx context.Context, sess *domain.Session, appID int64, status domain.ApplicationStatus) (*domain.Application, error) {
	var app domain.Application
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPut,
		Path:   "/applications/" + strconv.FormatInt(appID, 10),
		Body:   statusRequest{Status: status},
		Token:  tokenOf(sess),
	}, &app)
	if err != nil {
		return nil, fmt.Errorf("update application %d status: %w", appID, err)
	}
	return &app, nil
}
