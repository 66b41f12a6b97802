package resolver

import (
	"errors"

	"github.com/goliatone/go-varsub/pkg/variable"
)

// Status is the outcome of one entry in a batch.
type Status string

const (
	StatusResolved        Status = "resolved"
	StatusAlreadyResolved Status = "already_resolved"
	StatusExpanded        Status = "expanded"
	StatusSkipped         Status = "skipped"
	StatusFailed          Status = "failed"
)

// EntryResult records what happened to one entry.
type EntryResult struct {
	Variable string
	EntryID  string
	Name     string
	Kind     variable.Kind
	Status   Status
	// FromCache is set when the content came from the cache.
	FromCache bool
	// Expanded counts entries a directory produced.
	Expanded int
	Err      error
}

// Report summarises a batch.
type Report struct {
	Results []EntryResult
}

// Success reports whether at least one entry resolved, was already resolved
// or expanded.
func (r Report) Success() bool {
	for _, result := range r.Results {
		switch result.Status {
		case StatusResolved, StatusAlreadyResolved, StatusExpanded:
			return true
		case StatusSkipped, StatusFailed:
		}
	}
	return false
}

// Count returns the number of results with status.
func (r Report) Count(status Status) int {
	n := 0
	for _, result := range r.Results {
		if result.Status == status {
			n++
		}
	}
	return n
}

// Failures returns the failed results.
func (r Report) Failures() []EntryResult {
	var out []EntryResult
	for _, result := range r.Results {
		if result.Status == StatusFailed {
			out = append(out, result)
		}
	}
	return out
}

// Err joins every entry error, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, result := range r.Results {
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	return errors.Join(errs...)
}
