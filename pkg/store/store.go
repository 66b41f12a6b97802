// Package store keeps variables and named templates. Memory stores live for
// the session; file stores persist a single YAML or JSON document through
// afs. Capability handles are never persisted, and neither is resolved
// content: a stored reference keeps its path, handle id and descriptive
// metadata only.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-varsub/pkg/template"
	"github.com/goliatone/go-varsub/pkg/variable"
)

var (
	// ErrNotFound is returned for unknown ids or names.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateName is returned when a name is already taken.
	ErrDuplicateName = errors.New("store: duplicate name")
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("store: invalid record")
)

// Template is a named, reusable template body.
type Template struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Body        string    `json:"body" yaml:"body"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Document is the persisted form of a store.
type Document struct {
	Variables []variable.Variable `json:"variables" yaml:"variables"`
	Templates []Template          `json:"templates" yaml:"templates"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store holds both collections behind one lock.
type Store struct {
	mu      sync.RWMutex
	doc     Document
	persist func(ctx context.Context, doc Document) error
	now     func() time.Time
	newID   func() string
	logger  *zap.Logger

	variables *Collection[variable.Variable]
	templates *Collection[Template]
}

// NewMemory returns an empty in-memory store.
func NewMemory(options ...Option) *Store {
	return newStore(Document{}, nil, options...)
}

func newStore(doc Document, persist func(context.Context, Document) error, options ...Option) *Store {
	s := &Store{
		doc:     doc,
		persist: persist,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}

	s.variables = &Collection[variable.Variable]{store: s, kind: "variable", acc: accessor[variable.Variable]{
		items:    func(d *Document) *[]variable.Variable { return &d.Variables },
		id:       func(v *variable.Variable) *string { return &v.ID },
		name:     func(v variable.Variable) string { return v.Name },
		stamps:   func(v *variable.Variable) (*time.Time, *time.Time) { return &v.CreatedAt, &v.UpdatedAt },
		clone:    func(v variable.Variable) variable.Variable { return v.Clone() },
		validate: validateVariable,
	}}
	s.templates = &Collection[Template]{store: s, kind: "template", acc: accessor[Template]{
		items:    func(d *Document) *[]Template { return &d.Templates },
		id:       func(t *Template) *string { return &t.ID },
		name:     func(t Template) string { return t.Name },
		stamps:   func(t *Template) (*time.Time, *time.Time) { return &t.CreatedAt, &t.UpdatedAt },
		clone:    func(t Template) Template { return t },
		validate: validateTemplate,
	}}
	return s
}

// Variables returns the variable collection.
func (s *Store) Variables() *Collection[variable.Variable] {
	return s.variables
}

// Templates returns the template collection.
func (s *Store) Templates() *Collection[Template] {
	return s.templates
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDocument(s.doc)
}

func (s *Store) save(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	return s.persist(ctx, cloneDocument(s.doc))
}

func cloneDocument(doc Document) Document {
	out := Document{
		Variables: make([]variable.Variable, len(doc.Variables)),
		Templates: append([]Template(nil), doc.Templates...),
	}
	for i, v := range doc.Variables {
		out.Variables[i] = v.Clone()
	}
	return out
}

func validateVariable(v variable.Variable) error {
	if err := template.ValidateName(v.Name); err != nil {
		return err
	}
	return v.Validate()
}

func validateTemplate(t Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("template name is required")
	}
	if _, err := template.Parse(t.Body); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	return nil
}
