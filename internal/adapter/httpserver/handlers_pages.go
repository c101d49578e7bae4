package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/navigation"
)

// pageResponse is the JSON view model of one screen.
type pageResponse struct {
	Page    string          `json:"page"`
	Session *domain.Session `json:"session"`
	Data    any             `json:"data,omitempty"`
}

func (s *Server) pageHandlers() map[string]echo.HandlerFunc {
	return map[string]echo.HandlerFunc{
		navigation.PageHome:            s.handleHome,
		navigation.PageLogin:           s.staticPage(navigation.PageLogin, nil),
		navigation.PageRegister:        s.staticPage(navigation.PageRegister, map[string]any{"roles": []domain.Role{domain.RoleJobSeeker, domain.RoleEmployer}}),
		navigation.PageJobDetails:      s.handleJobDetails,
		navigation.PageProfile:         s.handleProfile,
		navigation.PageCreateJob:       s.handleCreateJobForm,
		navigation.PageMyJobs:          s.handleMyJobs,
		navigation.PageJobApplications: s.handleJobApplications,
		navigation.PageApplications:    s.handleApplications,
		navigation.PageMyApplications:  s.handleMyApplications,
	}
}

func (s *Server) render(c echo.Context, status int, page string, data any) error {
	resp := pageResponse{Page: page, Session: s.app.Session(), Data: data}
	if err := c.JSON(status, resp); err != nil {
		return fmt.Errorf("failed to write %s page: %w", page, err)
	}
	return nil
}

func (s *Server) staticPage(page string, data any) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.render(c, http.StatusOK, page, data)
	}
}

func (s *Server) handleHome(c echo.Context) error {
	filter := domain.JobFilter{
		Title:    c.QueryParam("title"),
		Location: c.QueryParam("location"),
	}
	view, err := s.app.Home(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, navigation.PageHome, view)
}

func (s *Server) handleJobDetails(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	view, err := s.app.JobDetails(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, navigation.PageJobDetails, view)
}

func (s *Server) handleProfile(c echo.Context) error {
	view, err := s.app.Profile(c.Request().Context())
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, navigation.PageProfile, view)
}

func (s *Server) handleCreateJobForm(c echo.Context) error {
	return s.render(c, http.StatusOK, navigation.PageCreateJob, s.app.CreateJobForm())
}

func (s *Server) handleMyJobs(c echo.Context) error {
	view, err := s.app.MyJobs(c.Request().Context())
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, navigation.PageMyJobs, view)
}

func (s *Server) handleJobApplications(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	view, err := s.app.JobApplications(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, navigation.PageJobApplications, view)
}

func (s *Server) handleApplications(c echo.Context) error {
	filter := domain.ApplicationFilter{
		Status: domain.ApplicationStatus(c.QueryParam("status")),
		Search: c.QueryParam("search"),
	}
	if raw := c.QueryParam("job_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.NewValidationError(map[string]string{"job_id": "must be a number"})
		}
		filter.JobID = id
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.NewValidationError(map[string]string{"status": "must be one of: pending, accepted, rejected"})
	}

	view, err := s.app.Applications(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, navigation.PageApplications, view)
}

func (s *Server) handleMyApplications(c echo.Context) error {
	return s.app.MyApplications(c.Request().Context())
}

func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(map[string]string{name: "must be a positive number"})
	}
	return id, nil
}
