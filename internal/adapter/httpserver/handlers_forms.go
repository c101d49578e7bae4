package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ishworii/jobboard/internal/app"
	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/navigation"
)

// formResult is returned by form submissions. RedirectTo names the page the
// screen should navigate to next.
type formResult struct {
	Session    *domain.Session `json:"session"`
	Data       any             `json:"data,omitempty"`
	RedirectTo string          `json:"redirect_to,omitempty"`
}

func (s *Server) respond(c echo.Context, status int, data any, redirectTo string) error {
	return c.JSON(status, formResult{Session: s.app.Session(), Data: data, RedirectTo: redirectTo})
}

func bindForm(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
	}
	return nil
}

func (s *Server) handleLogin(c echo.Context) error {
	var creds domain.Credentials
	if err := bindForm(c, &creds); err != nil {
		return err
	}
	if _, err := s.app.Login(c.Request().Context(), creds); err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, nil, navigation.HomePath)
}

func (s *Server) handleRegister(c echo.Context) error {
	var reg domain.Registration
	if err := bindForm(c, &reg); err != nil {
		return err
	}
	user, err := s.app.Register(c.Request().Context(), reg)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusCreated, user, navigation.LoginPath)
}

func (s *Server) handleLogout(c echo.Context) error {
	s.app.Logout(c.Request().Context())
	return s.respond(c, http.StatusOK, nil, navigation.LoginPath)
}

func (s *Server) handleCreateJob(c echo.Context) error {
	var form domain.JobCreate
	if err := bindForm(c, &form); err != nil {
		return err
	}
	job, err := s.app.CreateJob(c.Request().Context(), form)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusCreated, job, "/my-jobs")
}

func (s *Server) handleApply(c echo.Context) error {
	jobID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var form app.ApplyForm
	if err := bindForm(c, &form); err != nil {
		return err
	}
	application, err := s.app.Apply(c.Request().Context(), jobID, form)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusCreated, application, "")
}

func (s *Server) handleUpdateStatus(c echo.Context) error {
	appID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var form struct {
		Status domain.ApplicationStatus `json:"status" form:"status"`
	}
	if err := bindForm(c, &form); err != nil {
		return err
	}
	application, err := s.app.UpdateApplicationStatus(c.Request().Context(), appID, form.Status)
	if err != nil {
		return err
	}
	return s.respond(c, http.StatusOK, application, "")
}
