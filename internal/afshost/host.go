// Package afshost implements handle.Host on top of github.com/viant/afs, so
// variables can reference files on local disk, in memory or in any storage
// afs supports. Locations under an allowed root are readable without asking;
// anything else needs consent, asked at most once per location.
package afshost

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/afs"
	afsurl "github.com/viant/afs/url"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/prompt"
)

// Consent asks the user whether location may be read.
type Consent func(ctx context.Context, location string, mode handle.Mode) (bool, error)

// Picker asks the user for one or more locations.
type Picker interface {
	Pick(ctx context.Context, opts handle.PickOptions) ([]string, error)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context, opts handle.PickOptions) ([]string, error)

// Pick calls f.
func (f PickerFunc) Pick(ctx context.Context, opts handle.PickOptions) ([]string, error) {
	return f(ctx, opts)
}

// Option configures a Host.
type Option func(*Host)

// WithService overrides the afs service.
func WithService(fs afs.Service) Option {
	return func(h *Host) {
		if fs != nil {
			h.fs = fs
		}
	}
}

// WithAllowedRoots grants read access under each root without consent.
func WithAllowedRoots(roots ...string) Option {
	return func(h *Host) {
		for _, root := range roots {
			if strings.TrimSpace(root) == "" {
				continue
			}
			h.roots = append(h.roots, strings.TrimRight(location(root), "/"))
		}
	}
}

// WithConsent sets the consent function.
func WithConsent(fn Consent) Option {
	return func(h *Host) {
		if fn != nil {
			h.consent = fn
		}
	}
}

// WithPicker sets the picker.
func WithPicker(p Picker) Option {
	return func(h *Host) {
		if p != nil {
			h.picker = p
		}
	}
}

// WithDriver uses an interactive prompt driver for picks and consent unless
// a picker or consent function is configured explicitly.
func WithDriver(d prompt.Driver) Option {
	return func(h *Host) {
		h.driver = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Host issues afs backed handles.
type Host struct {
	fs      afs.Service
	roots   []string
	consent Consent
	picker  Picker
	driver  prompt.Driver
	logger  *zap.Logger

	mu       sync.Mutex
	grants   map[string]handle.PermissionState
	consents singleflight.Group
}

var _ handle.Host = (*Host)(nil)

// New constructs a Host.
func New(options ...Option) *Host {
	h := &Host{
		fs:     afs.New(),
		logger: zap.NewNop(),
		grants: make(map[string]handle.PermissionState),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(h)
	}
	if h.driver != nil {
		if h.picker == nil {
			h.picker = &driverPicker{driver: h.driver, fs: h.fs}
		}
		if h.consent == nil {
			h.consent = driverConsent(h.driver)
		}
	}
	return h
}

// RequestFiles asks the picker for file locations and opens them.
func (h *Host) RequestFiles(ctx context.Context, opts handle.PickOptions) ([]handle.Handle, error) {
	opts.Kind = handle.KindFile
	locations, err := h.pick(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]handle.Handle, 0, len(locations))
	for _, loc := range locations {
		file, err := h.OpenFile(ctx, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, file)
		if !opts.Multiple {
			break
		}
	}
	return out, nil
}

// RequestDirectory asks the picker for a directory location and opens it.
func (h *Host) RequestDirectory(ctx context.Context, opts handle.PickOptions) (handle.DirectoryHandle, error) {
	opts.Kind = handle.KindDirectory
	locations, err := h.pick(ctx, opts)
	if err != nil {
		return nil, err
	}
	return h.OpenDirectory(ctx, locations[0])
}

func (h *Host) pick(ctx context.Context, opts handle.PickOptions) ([]string, error) {
	if h.picker == nil {
		return nil, fmt.Errorf("afshost: no picker configured: %w", handle.ErrPickCancelled)
	}
	locations, err := h.picker.Pick(ctx, opts)
	if errors.Is(err, prompt.ErrAborted) {
		return nil, handle.ErrPickCancelled
	}
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, handle.ErrPickCancelled
	}
	return locations, nil
}

// OpenFile returns a handle for an existing file.
func (h *Host) OpenFile(ctx context.Context, raw string) (*File, error) {
	loc := location(raw)
	obj, err := h.fs.Object(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("afshost: open %s: %w", raw, err)
	}
	if obj.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", handle.ErrInvalidHandle, raw)
	}
	return &File{host: h, url: loc}, nil
}

// OpenDirectory returns a handle for an existing directory.
func (h *Host) OpenDirectory(ctx context.Context, raw string) (*Directory, error) {
	loc := location(raw)
	obj, err := h.fs.Object(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("afshost: open %s: %w", raw, err)
	}
	if !obj.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", handle.ErrInvalidHandle, raw)
	}
	return &Directory{host: h, url: strings.TrimRight(loc, "/")}, nil
}

func (h *Host) allowed(loc string) bool {
	for _, root := range h.roots {
		if loc == root || strings.HasPrefix(loc, root+"/") {
			return true
		}
	}
	return false
}

func (h *Host) query(loc string) handle.PermissionState {
	if h.allowed(loc) {
		return handle.PermissionGranted
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if state, ok := h.grants[loc]; ok {
		return state
	}
	return handle.PermissionPrompt
}

// request asks for consent at most once per location. Concurrent requests
// for one location share a single question.
func (h *Host) request(ctx context.Context, loc string, mode handle.Mode) (handle.PermissionState, error) {
	if state := h.query(loc); state != handle.PermissionPrompt {
		return state, nil
	}
	if h.consent == nil {
		return handle.PermissionDenied, nil
	}
	res, err, _ := h.consents.Do(loc, func() (any, error) {
		if state := h.query(loc); state != handle.PermissionPrompt {
			return state, nil
		}
		ok, err := h.consent(ctx, displayPath(loc), mode)
		if errors.Is(err, prompt.ErrAborted) {
			ok, err = false, nil
		}
		if err != nil {
			return handle.PermissionDenied, err
		}

		state := handle.PermissionDenied
		if ok {
			state = handle.PermissionGranted
		}
		h.mu.Lock()
		h.grants[loc] = state
		h.mu.Unlock()
		h.logger.Debug("consent recorded", zap.String("location", loc), zap.String("state", string(state)))
		return state, nil
	})
	state, _ := res.(handle.PermissionState)
	if state == "" {
		state = handle.PermissionDenied
	}
	return state, err
}

// location turns a plain path into an absolute file URL; URLs pass through.
func location(raw string) string {
	raw = strings.TrimSpace(raw)
	if afsurl.Scheme(raw, "") != "" {
		return raw
	}
	if abs, err := filepath.Abs(raw); err == nil {
		raw = abs
	}
	return afsurl.ToFileURL(raw)
}

// displayPath shows local files as plain paths.
func displayPath(loc string) string {
	if afsurl.Scheme(loc, "") == "file" {
		return afsurl.Path(loc)
	}
	return loc
}
