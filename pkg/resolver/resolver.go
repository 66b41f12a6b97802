// Package resolver turns file and directory references into literal text.
//
// A batch runs in two steps. Directory entries with recursion enabled are
// expanded in place first, then every file entry is resolved: the handle is
// looked up, permission is verified, the size ceiling is enforced, content is
// served from the cache or read once per resource identity, escaped, wrapped
// in a tag derived from the file name and stamped with metadata. A failing
// entry gets a human readable diagnostic as its value and never fails the
// batch.
package resolver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-varsub/pkg/cache"
	"github.com/goliatone/go-varsub/pkg/expand"
	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/permission"
	"github.com/goliatone/go-varsub/pkg/variable"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache shares a content cache across resolvers.
func WithCache(c *cache.Cache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithGate overrides the permission gate.
func WithGate(g *permission.Gate) Option {
	return func(r *Resolver) {
		if g != nil {
			r.gate = g
		}
	}
}

// WithExpander overrides the directory expander.
func WithExpander(e *expand.Expander) Option {
	return func(r *Resolver) {
		if e != nil {
			r.expander = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock injects the time source used for ResolvedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// Resolver is safe for concurrent use. Concurrent batches must not share
// Variable values.
type Resolver struct {
	registry *handle.Registry
	cache    *cache.Cache
	gate     *permission.Gate
	expander *expand.Expander
	logger   *zap.Logger
	now      func() time.Time
	flights  singleflight.Group
}

// New constructs a Resolver over registry.
func New(registry *handle.Registry, options ...Option) *Resolver {
	if registry == nil {
		registry = handle.NewRegistry()
	}
	r := &Resolver{
		registry: registry,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.New(cache.WithLogger(r.logger))
	}
	if r.gate == nil {
		r.gate = permission.New(permission.WithLogger(r.logger))
	}
	if r.expander == nil {
		r.expander = expand.New(registry, expand.WithLogger(r.logger), expand.WithClock(r.now))
	}
	return r
}

// Registry returns the registry handles are looked up in.
func (r *Resolver) Registry() *handle.Registry {
	return r.registry
}

// Cache returns the content cache.
func (r *Resolver) Cache() *cache.Cache {
	return r.cache
}

// job is a file entry scheduled for resolution. The entry pointer stays
// valid because no entries are inserted once expansion finished.
type job struct {
	variable string
	entry    *variable.Entry
}

// outcome is computed off the entry and applied after the batch completes.
type outcome struct {
	result EntryResult
	apply  func(*variable.Entry)
}

// Resolve resolves every reference in vars in place. The returned error is
// only set when ctx is cancelled; in that case file results of the batch are
// discarded and the affected entries are left untouched. Reads already in
// flight run to completion and still populate the cache.
func (r *Resolver) Resolve(ctx context.Context, vars []*variable.Variable, opts Options) (Report, error) {
	opts = opts.withDefaults()
	var report Report
	if err := ctx.Err(); err != nil {
		return report, err
	}

	var jobs []job
	for _, v := range vars {
		if v == nil {
			continue
		}
		expanded, err := r.expandDirectories(ctx, v, opts)
		report.Results = append(report.Results, expanded...)
		if err != nil {
			return report, err
		}
		for i := range v.Entries {
			entry := &v.Entries[i]
			switch entry.Kind {
			case variable.KindFile:
				jobs = append(jobs, job{variable: v.Name, entry: entry})
			case variable.KindText, variable.KindDirectory:
			default:
				r.logger.Warn("unknown entry kind",
					zap.String("variable", v.Name),
					zap.String("kind", string(entry.Kind)))
			}
		}
	}

	outcomes := make([]outcome, len(jobs))
	if opts.Sequential {
		for i, j := range jobs {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			outcomes[i] = r.resolveFile(ctx, j, opts)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for i, j := range jobs {
			i, j := i, j
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				outcomes[i] = r.resolveFile(gctx, j, opts)
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		r.logger.Debug("resolve cancelled, discarding results", zap.Int("entries", len(jobs)))
		return report, err
	}

	for i, j := range jobs {
		o := outcomes[i]
		if o.apply != nil {
			o.apply(j.entry)
		}
		report.Results = append(report.Results, o.result)
	}
	return report, nil
}

// ResolveVariable is Resolve for a single variable.
func (r *Resolver) ResolveVariable(ctx context.Context, v *variable.Variable, opts Options) (Report, error) {
	return r.Resolve(ctx, []*variable.Variable{v}, opts)
}

func (r *Resolver) expandDirectories(ctx context.Context, v *variable.Variable, opts Options) ([]EntryResult, error) {
	var results []EntryResult
	for i := 0; i < len(v.Entries); i++ {
		entry := &v.Entries[i]
		if entry.Kind != variable.KindDirectory {
			continue
		}
		result := EntryResult{
			Variable: v.Name,
			EntryID:  entry.ID,
			Name:     entry.DisplayName(),
			Kind:     entry.Kind,
		}
		if entry.IsResolved() {
			result.Status = StatusAlreadyResolved
			results = append(results, result)
			continue
		}

		rec := opts.recursiveFor(*entry)
		if !rec.Enabled {
			result.Status = StatusSkipped
			results = append(results, result)
			continue
		}

		if entryErr := r.verifyDirectory(ctx, v.Name, *entry); entryErr != nil {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			fail(entry, entryErr)
			result.Status = StatusFailed
			result.Err = entryErr
			results = append(results, result)
			continue
		}

		n, err := r.expander.ExpandEntry(ctx, v, i, expand.FromRecursive(rec))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			entryErr := &EntryError{
				Kind:     KindReadFailure,
				Variable: v.Name,
				Entry:    result.Name,
				Err:      err,
			}
			fail(&v.Entries[i], entryErr)
			result.Status = StatusFailed
			result.Err = entryErr
			results = append(results, result)
			continue
		}

		result.EntryID = v.Entries[i].ID
		result.Status = StatusExpanded
		result.Expanded = n
		results = append(results, result)
		r.logger.Debug("directory expanded",
			zap.String("variable", v.Name),
			zap.String("handle", v.Entries[i].HandleID()),
			zap.Int("files", n))
		i += n
	}
	return results, nil
}

func (r *Resolver) verifyDirectory(ctx context.Context, varName string, entry variable.Entry) *EntryError {
	name := entry.DisplayName()
	h, ok := r.registry.Get(entry.HandleID())
	if !ok {
		return &EntryError{Kind: KindRegistryMiss, Variable: varName, Entry: name}
	}
	if _, err := handle.AsDirectory(h); err != nil {
		return &EntryError{Kind: KindInvalidHandle, Variable: varName, Entry: name, Reason: "not a directory", Err: err}
	}
	if _, err := r.gate.Verify(ctx, h, handle.ModeRead); err != nil {
		return &EntryError{Kind: KindPermissionDenied, Variable: varName, Entry: name, Err: err}
	}
	return nil
}

func (r *Resolver) resolveFile(ctx context.Context, j job, opts Options) outcome {
	entry := j.entry.Clone()
	name := entry.DisplayName()
	result := EntryResult{
		Variable: j.variable,
		EntryID:  entry.ID,
		Name:     name,
		Kind:     entry.Kind,
	}

	failed := func(entryErr *EntryError) outcome {
		entryErr.Variable = j.variable
		entryErr.Entry = name
		result.Status = StatusFailed
		result.Err = entryErr
		r.logger.Debug("entry failed",
			zap.String("variable", j.variable),
			zap.String("entry", name),
			zap.String("kind", string(entryErr.Kind)),
			zap.Error(entryErr.Err))
		return outcome{result: result, apply: func(e *variable.Entry) { fail(e, entryErr) }}
	}

	if entry.IsResolved() && (!opts.WrapInTags || IsWrapped(entry.Value)) {
		result.Status = StatusAlreadyResolved
		return outcome{result: result}
	}

	id := entry.HandleID()
	if id == "" {
		if entry.Value == "" || entry.Failed() {
			return failed(&EntryError{Kind: KindInvalidHandle})
		}
		// A path without a handle waits for reacquisition.
		result.Status = StatusSkipped
		return outcome{result: result}
	}

	h, ok := r.registry.Get(id)
	if !ok {
		return failed(&EntryError{Kind: KindRegistryMiss})
	}
	file, err := handle.AsFile(h)
	if err != nil {
		return failed(&EntryError{Kind: KindInvalidHandle, Reason: "not a file", Err: err})
	}
	if _, err := r.gate.Verify(ctx, file, handle.ModeRead); err != nil {
		return failed(&EntryError{Kind: KindPermissionDenied, Err: err})
	}

	info, statErr := file.Stat(ctx)
	if statErr != nil {
		r.logger.Debug("stat failed, reading without size hint",
			zap.String("handle", id),
			zap.Error(statErr))
		info = handle.Info{}
	}
	if info.Path == "" {
		info.Path = file.Path()
	}
	if info.Size > opts.MaxFileSize {
		return failed(&EntryError{Kind: KindFileTooLarge, Size: info.Size, Limit: opts.MaxFileSize})
	}

	key := identity(id, info, statErr == nil)
	content, fromCache, err := r.load(ctx, key, file, info, opts)
	if err != nil {
		return failed(&EntryError{Kind: KindReadFailure, Err: err})
	}
	if size := int64(len(content)); size > opts.MaxFileSize {
		return failed(&EntryError{Kind: KindFileTooLarge, Size: size, Limit: opts.MaxFileSize})
	}

	tag := TagFor(info.Path)
	value := content
	if opts.WrapInTags {
		value = Wrap(tag, Escape(content))
	}
	// Some hosts stat without a size; the content is authoritative then.
	size := info.Size
	if statErr != nil || size == 0 {
		size = int64(len(content))
	}
	mimeType := info.MimeType
	if mimeType == "" && content != "" {
		mimeType = sniffType(content)
	}
	resolvedAt := r.now()

	result.Status = StatusResolved
	result.FromCache = fromCache
	return outcome{
		result: result,
		apply: func(e *variable.Entry) {
			meta := e.Meta()
			if meta.Path == "" {
				meta.Path = info.Path
			}
			e.Value = value
			meta.Resolved = true
			meta.ResolvedAt = resolvedAt
			meta.ContentLength = len(content)
			meta.TagName = tag
			meta.Size = size
			if mimeType != "" {
				meta.MimeType = mimeType
			}
			if !info.ModTime.IsZero() {
				meta.LastModifiedAt = info.ModTime
			}
			meta.Error = ""
		},
	}
}

type readResult struct {
	content string
	cached  bool
}

// load serves content from the cache or performs a single coalesced read for
// key. The read ignores cancellation of ctx so that callers joining the
// same flight are not failed by another caller's cancellation.
func (r *Resolver) load(ctx context.Context, key string, file handle.FileHandle, info handle.Info, opts Options) (string, bool, error) {
	if opts.UseCache {
		if record, ok := r.cache.GetFresh(key, opts.CacheTTL); ok {
			return record.Content, true, nil
		}
	}

	res, err, shared := r.flights.Do(key, func() (any, error) {
		if opts.UseCache {
			if record, ok := r.cache.GetFresh(key, opts.CacheTTL); ok {
				return readResult{content: record.Content, cached: true}, nil
			}
		}
		data, err := file.Read(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if opts.UseCache {
			r.cache.Put(key, data, cache.Source{
				Path:     info.Path,
				Size:     int64(len(data)),
				MimeType: info.MimeType,
				ModTime:  info.ModTime,
			})
		}
		return readResult{content: string(data)}, nil
	})
	if err != nil {
		return "", false, err
	}
	out, ok := res.(readResult)
	if !ok {
		return "", false, errors.New("resolver: unexpected read result")
	}
	if shared {
		r.logger.Debug("read coalesced", zap.String("key", key))
	}
	return out.content, out.cached, nil
}

// sniffLen is the prefix http.DetectContentType considers.
const sniffLen = 512

// sniffType detects a MIME type from the leading bytes of content.
func sniffType(content string) string {
	return http.DetectContentType([]byte(content[:min(len(content), sniffLen)]))
}

// identity keys reads and cache records. Two handles to the same unchanged
// file share an identity.
func identity(handleID string, info handle.Info, statOK bool) string {
	if !statOK || info.Path == "" {
		return "handle:" + handleID
	}
	return info.Path + "|" + strconv.FormatInt(info.Size, 10) + "|" + strconv.FormatInt(info.ModTime.UnixNano(), 10)
}

// fail writes the diagnostic into the entry. The source path is kept in
// metadata since the value is overwritten.
func fail(e *variable.Entry, entryErr *EntryError) {
	meta := e.Meta()
	if meta.Path == "" && e.Value != "" && !e.Failed() && !IsWrapped(e.Value) {
		meta.Path = e.Value
	}
	msg := entryErr.Message()
	e.Value = msg
	meta.Error = msg
	meta.Resolved = false
}
