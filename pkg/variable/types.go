package variable

import (
	"errors"
	"fmt"
	"time"
)

// Kind tags the Entry union.
type Kind string

const (
	KindText      Kind = "text"
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// ErrUnknownKind is returned when an entry carries a kind outside the union.
var ErrUnknownKind = errors.New("variable: unknown entry kind")

// Validate reports whether k is one of the known kinds.
func (k Kind) Validate() error {
	switch k {
	case KindText, KindFile, KindDirectory:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, string(k))
	}
}

// RecursiveOptions controls directory expansion.
type RecursiveOptions struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	MaxDepth int      `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`
	Include  []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude  []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// Metadata describes the referenced resource and the last resolution outcome.
type Metadata struct {
	Size           int64             `json:"size,omitempty" yaml:"size,omitempty"`
	MimeType       string            `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	LastModifiedAt time.Time         `json:"lastModifiedAt,omitempty" yaml:"lastModifiedAt,omitempty"`
	HandleID       string            `json:"handleId,omitempty" yaml:"handleId,omitempty"`
	Path           string            `json:"path,omitempty" yaml:"path,omitempty"`
	Resolved       bool              `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	ResolvedAt     time.Time         `json:"resolvedAt,omitempty" yaml:"resolvedAt,omitempty"`
	ContentLength  int               `json:"contentLength,omitempty" yaml:"contentLength,omitempty"`
	TagName        string            `json:"tagName,omitempty" yaml:"tagName,omitempty"`
	Error          string            `json:"error,omitempty" yaml:"error,omitempty"`
	ExpandedFrom   string            `json:"expandedFrom,omitempty" yaml:"expandedFrom,omitempty"`
	Recursive      *RecursiveOptions `json:"recursiveOptions,omitempty" yaml:"recursiveOptions,omitempty"`
}

// Entry is a single value source attached to a Variable.
type Entry struct {
	ID       string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Kind     Kind      `json:"type" yaml:"type"`
	Value    string    `json:"value" yaml:"value"`
	Metadata *Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Variable is a named list of entries; Name is the placeholder key.
type Variable struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Entries   []Entry   `json:"entries" yaml:"entries"`
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}
