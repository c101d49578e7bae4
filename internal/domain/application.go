package domain

import "strings"

// ApplicationStatus is server-authoritative; the client only requests transitions.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusAccepted ApplicationStatus = "accepted"
	StatusRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

// ApplicantSummary is the user embedded in an application.
type ApplicantSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// JobSummary is the job embedded in an application.
type JobSummary struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Location string `json:"location,omitempty"`
}

type Application struct {
	ID        int64             `json:"id"`
	JobID     int64             `json:"job_id"`
	UserID    int64             `json:"user_id"`
	ResumeURL *string           `json:"resume_url,omitempty"`
	Status    ApplicationStatus `json:"status"`
	AppliedAt Timestamp         `json:"applied_at"`
	User      *ApplicantSummary `json:"user,omitempty"`
	Job       *JobSummary       `json:"job,omitempty"`
}

// ApplicationFilter is applied client-side on the employer applications screen.
type ApplicationFilter struct {
	JobID  int64             `json:"job_id,omitempty"`
	Status ApplicationStatus `json:"status,omitempty"`
	Search string            `json:"search,omitempty"`
}

// Apply returns the applications matching every set criterion, preserving order.
func (f ApplicationFilter) Apply(apps []Application) []Application {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]Application, 0, len(apps))
	for _, app := range apps {
		if f.JobID != 0 && app.JobID != f.JobID {
			continue
		}
		if f.Status != "" && app.Status != f.Status {
			continue
		}
		if search != "" && !matchesApplicant(app.User, search) {
			continue
		}
		out = append(out, app)
	}
	return out
}

func matchesApplicant(u *ApplicantSummary, search string) bool {
	if u == nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Name), search) ||
		strings.Contains(strings.ToLower(u.Email), search)
}
