// Package backendtest runs an in-process job-board backend for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ishworii/jobboard/internal/domain"
)

type account struct {
	user     domain.User
	password string
}

// Server mimics the REST contract of the job-board backend, including its
// error payloads. Test use only.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account // by email
	tokens   map[string]int64    // token -> user id
	jobs     []domain.Job
	apps     []domain.Application
	nextID   int64
	requests atomic.Int64
	hits     map[string]int
}

// New starts a backend that is closed when t finishes.
func New(t testing.TB) *Server {
	s := &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]int64),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /profile", s.handleProfile)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/my-jobs", s.handleMyJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("POST /applications", s.handleApply)
	mux.HandleFunc("GET /applications/{jobID}", s.handleListApplications)
	mux.HandleFunc("PUT /applications/{id}", s.handleUpdateStatus)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Hits returns how often "METHOD /path" was requested.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// AddUser registers an account directly.
func (s *Server) AddUser(email, password, name string, role domain.Role) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, name, role)
}

// IssueToken returns a valid bearer token for the account with email.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(s.accounts[email].user.ID)
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]int64)
	s.mu.Unlock()
}

// AddJob stores a job posted by employerID and returns it.
func (s *Server) AddJob(employerID int64, in domain.JobCreate) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addJobLocked(employerID, in)
}

// AddApplication stores an application and returns it.
func (s *Server) AddApplication(userID, jobID int64, status domain.ApplicationStatus) domain.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	app := s.addApplicationLocked(userID, jobID, nil)
	app.Status = status
	s.apps[len(s.apps)-1].Status = status
	return app
}

// SetStatus changes an application's status behind the client's back.
func (s *Server) SetStatus(appID int64, status domain.ApplicationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.apps {
		if s.apps[i].ID == appID {
			s.apps[i].Status = status
		}
	}
}

func (s *Server) addUserLocked(email, password, name string, role domain.Role) domain.User {
	s.nextID++
	u := domain.User{ID: s.nextID, Email: email, Name: name, Role: role}
	s.accounts[email] = &account{user: u, password: password}
	return u
}

func (s *Server) issueLocked(userID int64) string {
	s.nextID++
	token := fmt.Sprintf("token-%d-%d", userID, s.nextID)
	s.tokens[token] = userID
	return token
}

func (s *Server) addJobLocked(employerID int64, in domain.JobCreate) domain.Job {
	s.nextID++
	job := domain.Job{
		ID:          s.nextID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		PostedBy:    employerID,
		CreatedAt:   domain.Timestamp{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	s.jobs = append(s.jobs, job)
	return job
}

func (s *Server) addApplicationLocked(userID, jobID int64, resumeURL *string) domain.Application {
	s.nextID++
	app := domain.Application{
		ID:        s.nextID,
		JobID:     jobID,
		UserID:    userID,
		ResumeURL: resumeURL,
		Status:    domain.StatusPending,
		AppliedAt: domain.Timestamp{Time: time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)},
	}
	s.apps = append(s.apps, app)
	return app
}

func (s *Server) userByID(id int64) *domain.User {
	for _, a := range s.accounts {
		if a.user.ID == id {
			u := a.user
			return &u
		}
	}
	return nil
}

func (s *Server) jobByID(id int64) *domain.Job {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			return &s.jobs[i]
		}
	}
	return nil
}

// authenticate resolves the bearer token; it writes 401 and returns nil on failure.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) *domain.User {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if ok {
		if id, found := s.tokens[token]; found {
			if u := s.userByID(id); u != nil {
				return u
			}
		}
	}
	writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
	return nil
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[r.PostForm.Get("username")]
	if !ok || acc.password != r.PostForm.Get("password") {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.issueLocked(acc.user.ID),
		"token_type":   "bearer",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if !in.Role.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{
			{"loc": []string{"body", "role"}, "msg": "Input should be 'job_seeker' or 'employer'"},
		}})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[in.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	writeJSON(w, http.StatusOK, s.addUserLocked(in.Email, in.Password, in.Name, in.Role))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.authenticate(w, r); u != nil {
		writeJSON(w, http.StatusOK, u)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	title := strings.ToLower(r.URL.Query().Get("title"))
	location := strings.ToLower(r.URL.Query().Get("location"))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Job{}
	for _, j := range s.jobs {
		if title != "" && !strings.Contains(strings.ToLower(j.Title), title) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(j.Location), location) {
			continue
		}
		out = append(out, j)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMyJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.authenticate(w, r)
	if u == nil {
		return
	}
	out := []domain.Job{}
	for _, j := range s.jobs {
		if j.PostedBy == u.ID {
			out = append(out, j)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid job id")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobByID(id)
	if job == nil {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.authenticate(w, r)
	if u == nil {
		return
	}
	if u.Role != domain.RoleEmployer {
		writeDetail(w, http.StatusForbidden, "Only employers can post jobs")
		return
	}
	var in domain.JobCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	writeJSON(w, http.StatusOK, s.addJobLocked(u.ID, in))
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.authenticate(w, r)
	if u == nil {
		return
	}
	if u.Role != domain.RoleJobSeeker {
		writeDetail(w, http.StatusForbidden, "Only job seekers can apply")
		return
	}
	var in struct {
		JobID     int64   `json:"job_id"`
		ResumeURL *string `json:"resume_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if s.jobByID(in.JobID) == nil {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	for _, a := range s.apps {
		if a.JobID == in.JobID && a.UserID == u.ID {
			writeDetail(w, http.StatusBadRequest, "You have already applied for this job")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.addApplicationLocked(u.ID, in.JobID, in.ResumeURL))
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.authenticate(w, r)
	if u == nil {
		return
	}
	jobID, err := strconv.ParseInt(r.PathValue("jobID"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid job id")
		return
	}
	job := s.jobByID(jobID)
	if job == nil {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.PostedBy != u.ID {
		writeDetail(w, http.StatusForbidden, "Not authorized to view these applications")
		return
	}
	out := []domain.Application{}
	for _, a := range s.apps {
		if a.JobID == jobID {
			out = append(out, s.embedLocked(a, job))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.authenticate(w, r)
	if u == nil {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid application id")
		return
	}
	var in struct {
		Status domain.ApplicationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.Status.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid status")
		return
	}
	i := slices.IndexFunc(s.apps, func(a domain.Application) bool { return a.ID == id })
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Application not found")
		return
	}
	job := s.jobByID(s.apps[i].JobID)
	if job == nil || job.PostedBy != u.ID {
		writeDetail(w, http.StatusForbidden, "Not authorized to update this application")
		return
	}
	s.apps[i].Status = in.Status
	writeJSON(w, http.StatusOK, s.embedLocked(s.apps[i], job))
}

func (s *Server) embedLocked(a domain.Application, job *domain.Job) domain.Application {
	if u := s.userByID(a.UserID); u != nil {
		a.User = &domain.ApplicantSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	a.Job = &domain.JobSummary{ID: job.ID, Title: job.Title, Category: job.Category, Location: job.Location}
	return a
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
