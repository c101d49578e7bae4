package domain

import (
	"net/url"
	"strings"
)

// Job is a posting as returned by the backend. Jobs are never edited locally.
type Job struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	PostedBy    int64     `json:"posted_by"`
	CreatedAt   Timestamp `json:"created_at"`
}

// JobCreate is the create-job form payload.
type JobCreate struct {
	Title       string `json:"title" form:"title" validate:"required,min=5"`
	Description string `json:"description" form:"description" validate:"required,min=50"`
	Category    string `json:"category" form:"category" validate:"required"`
	Location    string `json:"location" form:"location" validate:"required"`
}

// JobFilter narrows the public job listing. Empty fields are not sent.
type JobFilter struct {
	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`
}

// Values encodes the filter as query parameters.
func (f JobFilter) Values() url.Values {
	v := url.Values{}
	if title := strings.TrimSpace(f.Title); title != "" {
		v.Set("title", title)
	}
	if location := strings.TrimSpace(f.Location); location != "" {
		v.Set("location", location)
	}
	return v
}

// JobCategories are offered by the create-job screen.
var JobCategories = []string{
	"Software Development",
	"IT & Networking",
	"Design & Creative",
	"Sales & Marketing",
	"Customer Service",
	"Content & Writing",
	"Management",
	"Human Resources",
	"Digital Marketing",
	"Quality Assurance",
}

// JobLocations are offered by the create-job screen.
var JobLocations = []string{
	"Kathmandu, Bagmati",
	"Lalitpur, Bagmati",
	"Bhaktapur, Bagmati",
	"Pokhara, Gandaki",
	"Birgunj, Madhesh",
	"Biratnagar, Province 1",
	"Butwal, Lumbini",
	"Dharan, Province 1",
	"Bharatpur, Bagmati",
	"Remote, Nepal",
}
