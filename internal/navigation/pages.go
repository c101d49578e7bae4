package navigation

import "github.com/ishworii/jobboard/internal/domain"

// Page names.
const (
	PageHome            = "home"
	PageLogin           = "login"
	PageRegister        = "register"
	PageJobDetails      = "job_details"
	PageProfile         = "profile"
	PageCreateJob       = "create_job"
	PageMyJobs          = "my_jobs"
	PageJobApplications = "job_applications"
	PageApplications    = "applications"
	PageMyApplications  = "my_applications"
)

// DefaultPages is the job board's navigation table.
var DefaultPages = []Page{
	{Path: "/", Name: PageHome, Requirement: None},
	{Path: "/login", Name: PageLogin, Requirement: None},
	{Path: "/register", Name: PageRegister, Requirement: None},
	{Path: "/jobs/:id", Name: PageJobDetails, Requirement: None},
	{Path: "/profile", Name: PageProfile, Requirement: Authenticated},
	{Path: "/create-job", Name: PageCreateJob, Requirement: RequireRole(domain.RoleEmployer)},
	{Path: "/my-jobs", Name: PageMyJobs, Requirement: RequireRole(domain.RoleEmployer)},
	{Path: "/my-jobs/:id/applications", Name: PageJobApplications, Requirement: RequireRole(domain.RoleEmployer)},
	{Path: "/applications", Name: PageApplications, Requirement: RequireRole(domain.RoleEmployer)},
	{Path: "/my-applications", Name: PageMyApplications, Requirement: RequireRole(domain.RoleJobSeeker)},
}

// DefaultTable returns a table holding DefaultPages.
func DefaultTable() *Table {
	t := NewTable()
	for _, p := range DefaultPages {
		t.Register(p)
	}
	return t
}
