package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/gateway"
)

type JobService struct {
	gw Doer
}

func NewJobService(gw Doer) *JobService {
	return &JobService{gw: gw}
}

func (s *JobService) CreateJob(ctx context.Context, sess *domain.Session, in domain.JobCreate) (*domain.Job, error) {
	var job domain.Job
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/jobs",
		Body:   in,
		Token:  tokenOf(sess),
	}, &job)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &job, nil
}

func (s *JobService) ListJobs(ctx context.Context, sess *domain.Session, filter domain.JobFilter) ([]domain.Job, error) {
	jobs := []domain.Job{}
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/jobs",
		Query:  filter.Values(),
		Token:  tokenOf(sess),
	}, &jobs)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobService) GetJob(ctx context.Context, sess *domain.Session, id int64) (*domain.Job, error) {
	var job domain.Job
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/jobs/" + strconv.FormatInt(id, 10),
		Token:  tokenOf(sess),
	}, &job)
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return &job, nil
}

// MyJobs lists the jobs posted by the session's employer.
func (s *JobService) MyJobs(ctx context.Context, sess *domain.Session) ([]domain.Job, error) {
	jobs := []domain.Job{}
	err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/jobs/my-jobs",
		Token:  tokenOf(sess),
	}, &jobs)
	if err != nil {
		return nil, fmt.Errorf("list my jobs: %w", err)
	}
	return jobs, nil
}
