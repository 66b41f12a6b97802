package resolver

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/goliatone/go-varsub/pkg/handle"
)

// ErrorKind classifies an entry failure.
type ErrorKind string

const (
	KindInvalidHandle    ErrorKind = "invalid_handle"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindFileTooLarge     ErrorKind = "file_too_large"
	KindReadFailure      ErrorKind = "read_failure"
	KindRegistryMiss     ErrorKind = "registry_miss"
)

var (
	// ErrRegistryMiss reports a handle id that is no longer registered.
	ErrRegistryMiss = errors.New("resolver: handle unavailable")
	// ErrFileTooLarge reports a file above the size ceiling.
	ErrFileTooLarge = errors.New("resolver: file too large")
	// ErrReadFailure reports a failed read.
	ErrReadFailure = errors.New("resolver: read failed")
)

// Sentinel maps a kind to the error errors.Is matches.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindInvalidHandle:
		return handle.ErrInvalidHandle
	case KindPermissionDenied:
		return handle.ErrPermissionDenied
	case KindFileTooLarge:
		return ErrFileTooLarge
	case KindReadFailure:
		return ErrReadFailure
	case KindRegistryMiss:
		return ErrRegistryMiss
	default:
		return nil
	}
}

// EntryError is a single entry failure. It never aborts a batch.
type EntryError struct {
	Kind     ErrorKind
	Variable string
	Entry    string
	// Reason is the short cause rendered into the diagnostic.
	Reason string
	Size   int64
	Limit  int64
	Err    error
}

func (e *EntryError) Error() string {
	if e.Variable == "" {
		return "resolver: " + e.Message()
	}
	return fmt.Sprintf("resolver: variable %q: %s", e.Variable, e.Message())
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *EntryError) Unwrap() []error {
	out := make([]error, 0, 2)
	if sentinel := e.Kind.Sentinel(); sentinel != nil {
		out = append(out, sentinel)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Message is the human readable diagnostic written into the entry value.
func (e *EntryError) Message() string {
	if e.Kind == KindFileTooLarge {
		return fmt.Sprintf("File too large: %s (%s exceeds %s)",
			e.Entry, humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
	}
	return fmt.Sprintf("Cannot access file: %s — %s", e.Entry, e.reason())
}

func (e *EntryError) reason() string {
	if e.Reason != "" {
		return e.Reason
	}
	switch e.Kind {
	case KindRegistryMiss:
		return "handle unavailable"
	case KindPermissionDenied:
		return "permission denied"
	case KindInvalidHandle:
		return "no file reference"
	case KindReadFailure:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "read failed"
	default:
		return string(e.Kind)
	}
}
