package app

import (
	"strconv"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/navigation"
	"github.com/ishworii/jobboard/internal/querycache"
)

// Cache operation tags.
const (
	opJobs         = "jobs"
	opJob          = "job"
	opMyJobs       = "my-jobs"
	opApplications = "applications"
	opProfile      = "profile"
)

func jobsKey(f domain.JobFilter) querycache.Key {
	v := f.Values()
	return querycache.NewKey(opJobs, v.Get("title"), v.Get("location"))
}

func jobKey(id int64) querycache.Key { return querycache.NewKey(opJob, id) }

func myJobsKey() querycache.Key { return querycache.NewKey(opMyJobs) }

// applicationsKey selects every applications entry; applicationsForJobKey
// selects one job's.
func applicationsKey() querycache.Key { return querycache.NewKey(opApplications) }

func applicationsForJobKey(jobID int64) querycache.Key {
	return querycache.NewKey(opApplications, jobID)
}

func profileKey() querycache.Key { return querycache.NewKey(opProfile) }

// ScreenKey returns the cache key backing the page at path, for live
// updates. Pages without server state report false.
func ScreenKey(table *navigation.Table, path string) (querycache.Key, navigation.Page, bool) {
	page, params, ok := table.Match(path)
	if !ok {
		return querycache.Key{}, page, false
	}

	switch page.Name {
	case navigation.PageHome:
		return jobsKey(domain.JobFilter{}), page, true
	case navigation.PageJobDetails:
		id, err := strconv.ParseInt(params["id"], 10, 64)
		if err != nil {
			return querycache.Key{}, page, false
		}
		return jobKey(id), page, true
	case navigation.PageMyJobs:
		return myJobsKey(), page, true
	case navigation.PageJobApplications:
		id, err := strconv.ParseInt(params["id"], 10, 64)
		if err != nil {
			return querycache.Key{}, page, false
		}
		return applicationsForJobKey(id), page, true
	case navigation.PageApplications:
		return applicationsKey(), page, true
	case navigation.PageProfile:
		return profileKey(), page, true
	default:
		return querycache.Key{}, page, false
	}
}
