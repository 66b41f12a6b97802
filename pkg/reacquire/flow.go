// Package reacquire recovers file and directory references whose capability
// was lost, typically after a restart cleared the handle registry. The user is
// asked once per logical resource and every entry referring to it is rebound.
package reacquire

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/variable"
)

// Ref points at one entry of a variable.
type Ref struct {
	Variable string
	Index    int
}

// Stale is a logical resource that needs a new handle.
type Stale struct {
	Kind variable.Kind
	Path string
	Refs []Ref
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Flow prompts through a host and registers the picked handles.
type Flow struct {
	registry *handle.Registry
	host     handle.Host
	logger   *zap.Logger
}

// New constructs a Flow.
func New(registry *handle.Registry, host handle.Host, options ...Option) *Flow {
	f := &Flow{
		registry: registry,
		host:     host,
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(f)
	}
	return f
}

// Missing lists unresolved references whose handle is gone, deduplicated by
// kind and path in order of first appearance. Entries produced by expansion
// are left to their directory.
func (f *Flow) Missing(vars []*variable.Variable) []Stale {
	var out []Stale
	index := make(map[string]int)
	for _, v := range vars {
		if v == nil {
			continue
		}
		for i, entry := range v.Entries {
			if !f.stale(entry) || expanded(entry) {
				continue
			}
			key := string(entry.Kind) + "|" + entry.SourcePath()
			pos, ok := index[key]
			if !ok {
				pos = len(out)
				index[key] = pos
				out = append(out, Stale{Kind: entry.Kind, Path: entry.SourcePath()})
			}
			out[pos].Refs = append(out[pos].Refs, Ref{Variable: v.Name, Index: i})
		}
	}
	return out
}

func (f *Flow) stale(entry variable.Entry) bool {
	switch entry.Kind {
	case variable.KindFile, variable.KindDirectory:
	case variable.KindText:
		return false
	default:
		return false
	}
	if entry.IsResolved() || entry.SourcePath() == "" {
		return false
	}
	id := entry.HandleID()
	if id == "" {
		return true
	}
	_, ok := f.registry.Get(id)
	return !ok
}

func expanded(entry variable.Entry) bool {
	return entry.Metadata != nil && entry.Metadata.ExpandedFrom != ""
}

// Reacquire prompts for every stale resource and rebinds the entries that
// share it. A cancelled pick skips the resource. It reports whether at least
// one handle was rebound; pick failures other than cancellation are joined
// into the error.
func (f *Flow) Reacquire(ctx context.Context, vars []*variable.Variable) (bool, error) {
	if f.host == nil {
		return false, errors.New("reacquire: host is nil")
	}

	byName := make(map[string]*variable.Variable, len(vars))
	for _, v := range vars {
		if v != nil {
			byName[v.Name] = v
		}
	}

	rebound := f.resetOrphans(vars)
	var errs []error
	for _, stale := range f.Missing(vars) {
		if err := ctx.Err(); err != nil {
			return rebound, err
		}

		picked, err := f.pick(ctx, stale)
		if errors.Is(err, handle.ErrPickCancelled) {
			f.logger.Info("reacquire skipped", zap.String("path", stale.Path))
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rebound, ctxErr
			}
			errs = append(errs, fmt.Errorf("reacquire: %s: %w", stale.Path, err))
			continue
		}

		id, err := f.registry.Register(picked)
		if err != nil {
			errs = append(errs, fmt.Errorf("reacquire: register %s: %w", stale.Path, err))
			continue
		}

		var info handle.Info
		if file, ok := picked.(handle.FileHandle); ok {
			if info, err = file.Stat(ctx); err != nil {
				f.logger.Debug("stat after reacquire failed", zap.String("path", picked.Path()), zap.Error(err))
				info = handle.Info{}
			}
		}
		for _, ref := range stale.Refs {
			v := byName[ref.Variable]
			rebind(&v.Entries[ref.Index], id, picked.Path(), info)
		}
		rebound = true
		f.logger.Debug("handle reacquired",
			zap.String("path", picked.Path()),
			zap.String("handle", id),
			zap.Int("entries", len(stale.Refs)))
	}
	return rebound, errors.Join(errs...)
}

func (f *Flow) pick(ctx context.Context, stale Stale) (handle.Handle, error) {
	opts := handle.PickOptions{
		Title:         "Locate " + variable.BaseName(stale.Path),
		SuggestedPath: stale.Path,
	}
	switch stale.Kind {
	case variable.KindDirectory:
		opts.Kind = handle.KindDirectory
		dir, err := f.host.RequestDirectory(ctx, opts)
		if err != nil {
			return nil, err
		}
		if dir == nil {
			return nil, handle.ErrPickCancelled
		}
		return dir, nil
	case variable.KindFile:
		opts.Kind = handle.KindFile
		picked, err := f.host.RequestFiles(ctx, opts)
		if err != nil {
			return nil, err
		}
		if len(picked) == 0 {
			return nil, handle.ErrPickCancelled
		}
		return handle.AsFile(picked[0])
	case variable.KindText:
		return nil, fmt.Errorf("%w: text entries have no handle", handle.ErrInvalidHandle)
	default:
		return nil, fmt.Errorf("%w %q", variable.ErrUnknownKind, stale.Kind)
	}
}

// resetOrphans marks a live directory unresolved when one of the entries it
// produced lost its handle, so the next resolve expands it again.
func (f *Flow) resetOrphans(vars []*variable.Variable) bool {
	reset := false
	for _, v := range vars {
		if v == nil {
			continue
		}
		for _, entry := range v.Entries {
			if !expanded(entry) || !f.stale(entry) {
				continue
			}
			for i := range v.Entries {
				parent := &v.Entries[i]
				if parent.ID != entry.Metadata.ExpandedFrom || !parent.IsResolved() {
					continue
				}
				if _, ok := f.registry.Get(parent.HandleID()); !ok {
					continue
				}
				parent.Metadata.Resolved = false
				reset = true
			}
		}
	}
	return reset
}

func rebind(e *variable.Entry, id, path string, info handle.Info) {
	meta := e.Meta()
	meta.HandleID = id
	if path != "" && path != meta.Path {
		meta.Path = path
	}
	if info.Size != 0 && info.Size != meta.Size {
		meta.Size = info.Size
	}
	if !info.ModTime.IsZero() && !info.ModTime.Equal(meta.LastModifiedAt) {
		meta.LastModifiedAt = info.ModTime
	}
	if info.MimeType != "" {
		meta.MimeType = info.MimeType
	}
	meta.Resolved = false
	meta.Error = ""
	e.Value = meta.Path
}
