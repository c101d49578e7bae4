package navigation

import (
	"log/slog"
	"strings"
	"sync"
)

// Page is one navigation-table entry. Path segments starting with ':' are
// parameters, e.g. "/jobs/:id".
type Page struct {
	Path        string
	Name        string
	Requirement Requirement
}

// Table is the registry of navigable pages. Registering a path twice keeps
// the first registration.
type Table struct {
	mu    sync.RWMutex
	pages []Page
	index map[string]int
}

func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Register adds p and reports whether it was added. A duplicate path is
// logged and ignored.
func (t *Table) Register(p Page) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index[p.Path]; ok {
		slog.Warn("Duplicate page registration ignored",
			"path", p.Path,
			"kept", t.pages[i].Requirement.String(),
			"ignored", p.Requirement.String(),
		)
		return false
	}
	t.index[p.Path] = len(t.pages)
	t.pages = append(t.pages, p)
	return true
}

// Pages returns the registrations in registration order.
func (t *Table) Pages() []Page {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Page, len(t.pages))
	copy(out, t.pages)
	return out
}

// Lookup returns the page registered under the exact pattern path.
func (t *Table) Lookup(path string) (Page, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[path]
	if !ok {
		return Page{}, false
	}
	return t.pages[i], true
}

// Match resolves a concrete path such as "/my-jobs/4/applications" to its
// page and parameters. An exact registration wins over patterns.
func (t *Table) Match(path string) (Page, map[string]string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i, ok := t.index[path]; ok {
		return t.pages[i], map[string]string{}, true
	}

	segments := split(path)
	for _, p := range t.pages {
		if params, ok := match(split(p.Path), segments); ok {
			return p, params, true
		}
	}
	return Page{}, nil, false
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func match(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, p := range pattern {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if segments[i] == "" {
				return nil, false
			}
			params[name] = segments[i]
			continue
		}
		if p != segments[i] {
			return nil, false
		}
	}
	return params, true
}
