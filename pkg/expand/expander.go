// Package expand turns a directory capability into file entries. Traversal is
// breadth-first, bounded by depth and a file budget, and filtered with
// doublestar include/exclude globs. Produced entries point back at the
// directory entry that created them and are never expanded again.
package expand

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/variable"
)

const (
	// DefaultMaxDepth limits traversal when options leave it unset.
	DefaultMaxDepth = 5
	// DefaultMaxFiles caps the number of files a single expansion produces.
	DefaultMaxFiles = 500
)

var (
	// ErrHandleMissing is returned when the directory's handle id is not in
	// the registry.
	ErrHandleMissing = errors.New("expand: directory handle unavailable")
	// ErrNotDirectory is returned for entries that are not directories.
	ErrNotDirectory = errors.New("expand: entry is not a directory")
	// ErrBadPattern wraps invalid include/exclude globs.
	ErrBadPattern = errors.New("expand: invalid pattern")
)

// Options bounds and filters a traversal.
type Options struct {
	MaxDepth int
	MaxFiles int
	Include  []string
	Exclude  []string
}

// FromRecursive converts entry-level options.
func FromRecursive(opts variable.RecursiveOptions) Options {
	return Options{
		MaxDepth: opts.MaxDepth,
		Include:  append([]string(nil), opts.Include...),
		Exclude:  append([]string(nil), opts.Exclude...),
	}
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	return o
}

func (o Options) validate() error {
	for _, pattern := range append(append([]string(nil), o.Include...), o.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w %q", ErrBadPattern, pattern)
		}
	}
	return nil
}

// Descriptor is a discovered file.
type Descriptor struct {
	Handle  handle.FileHandle
	RelPath string
	Depth   int
}

// Option configures an Expander.
type Option func(*Expander)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Expander) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock injects the time source used for ResolvedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Expander) {
		if now != nil {
			e.now = now
		}
	}
}

// Expander registers discovered files in the shared registry.
type Expander struct {
	registry *handle.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// New constructs an Expander bound to registry.
func New(registry *handle.Registry, options ...Option) *Expander {
	e := &Expander{
		registry: registry,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

type queued struct {
	dir    handle.DirectoryHandle
	prefix string
	depth  int
}

// Expand lists descendant files of dir. Depth 1 means direct children only.
// Excluded directories are pruned; include patterns only filter files.
func (e *Expander) Expand(ctx context.Context, dir handle.DirectoryHandle, opts Options) ([]Descriptor, error) {
	if dir == nil {
		return nil, handle.ErrInvalidHandle
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var (
		out     []Descriptor
		queue   = []queued{{dir: dir, depth: 1}}
		visited = map[string]struct{}{dir.Path(): {}}
	)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		children, err := current.dir.Entries(ctx)
		if err != nil {
			return nil, fmt.Errorf("expand: list %s: %w", current.dir.Path(), err)
		}

		for _, child := range children {
			if child == nil {
				continue
			}
			rel := path.Join(current.prefix, child.Name())
			if matchAny(opts.Exclude, rel, child.Name()) {
				continue
			}

			switch child.Kind() {
			case handle.KindDirectory:
				if current.depth >= opts.MaxDepth {
					continue
				}
				if _, seen := visited[child.Path()]; seen {
					continue
				}
				sub, err := handle.AsDirectory(child)
				if err != nil {
					e.logger.Debug("skipping directory", zap.String("path", child.Path()), zap.Error(err))
					continue
				}
				visited[child.Path()] = struct{}{}
				queue = append(queue, queued{dir: sub, prefix: rel, depth: current.depth + 1})
			case handle.KindFile:
				if len(opts.Include) > 0 && !matchAny(opts.Include, rel, child.Name()) {
					continue
				}
				file, err := handle.AsFile(child)
				if err != nil {
					e.logger.Debug("skipping file", zap.String("path", child.Path()), zap.Error(err))
					continue
				}
				if len(out) >= opts.MaxFiles {
					e.logger.Warn("expansion file budget reached",
						zap.String("directory", dir.Path()),
						zap.Int("maxFiles", opts.MaxFiles))
					return sortDescriptors(out), nil
				}
				out = append(out, Descriptor{Handle: file, RelPath: rel, Depth: current.depth})
			default:
				e.logger.Debug("skipping unknown handle kind", zap.String("path", child.Path()))
			}
		}
	}

	return sortDescriptors(out), nil
}

// ExpandEntry expands the directory entry at index, registers a handle per
// file and inserts the produced file entries right after it. The directory
// entry is kept and marked resolved; a resolved directory is left alone.
// Entries left over from an earlier expansion of the same directory are
// replaced. It returns the number of inserted entries.
func (e *Expander) ExpandEntry(ctx context.Context, v *variable.Variable, index int, opts Options) (int, error) {
	if v == nil || index < 0 || index >= len(v.Entries) {
		return 0, fmt.Errorf("expand: entry index %d out of range", index)
	}
	entry := &v.Entries[index]
	if entry.Kind != variable.KindDirectory {
		return 0, fmt.Errorf("%w: %s", ErrNotDirectory, entry.DisplayName())
	}
	if entry.IsResolved() {
		return 0, nil
	}

	h, ok := e.registry.Get(entry.HandleID())
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrHandleMissing, entry.DisplayName())
	}
	dir, err := handle.AsDirectory(h)
	if err != nil {
		return 0, err
	}

	descriptors, err := e.Expand(ctx, dir, opts)
	if err != nil {
		return 0, err
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	meta := entry.Meta()
	if meta.Path == "" {
		meta.Path = entry.Value
	}
	parentID := entry.ID

	produced := make([]variable.Entry, 0, len(descriptors))
	for _, d := range descriptors {
		id, err := e.registry.Register(d.Handle)
		if err != nil {
			return 0, fmt.Errorf("expand: register %s: %w", d.RelPath, err)
		}
		produced = append(produced, variable.Entry{
			ID:    uuid.NewString(),
			Name:  d.RelPath,
			Kind:  variable.KindFile,
			Value: d.Handle.Path(),
			Metadata: &variable.Metadata{
				HandleID:     id,
				Path:         d.Handle.Path(),
				ExpandedFrom: parentID,
			},
		})
	}

	meta.Resolved = true
	meta.ResolvedAt = e.now()
	meta.Error = ""

	e.dropExpansion(v, parentID)
	index = slices.IndexFunc(v.Entries, func(candidate variable.Entry) bool { return candidate.ID == parentID })
	v.Entries = slices.Insert(v.Entries, index+1, produced...)

	e.logger.Debug("directory expanded",
		zap.String("variable", v.Name),
		zap.String("directory", meta.Path),
		zap.Int("files", len(produced)))
	return len(produced), nil
}

// dropExpansion removes entries produced by an earlier expansion of parentID
// and releases their handles.
func (e *Expander) dropExpansion(v *variable.Variable, parentID string) {
	v.Entries = slices.DeleteFunc(v.Entries, func(candidate variable.Entry) bool {
		if candidate.Metadata == nil || candidate.Metadata.ExpandedFrom != parentID {
			return false
		}
		if id := candidate.Metadata.HandleID; id != "" {
			e.registry.Remove(id)
		}
		return true
	})
}

func matchAny(patterns []string, rel, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func sortDescriptors(in []Descriptor) []Descriptor {
	sort.SliceStable(in, func(i, j int) bool { return in[i].RelPath < in[j].RelPath })
	return in
}
