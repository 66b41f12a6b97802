package testsupport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/variable"
)

// File is a scripted file capability. Reads are counted so tests can assert
// on coalescing and cache behaviour.
type File struct {
	mu         sync.Mutex
	path       string
	content    []byte
	size       int64
	sizeSet    bool
	mimeType   string
	modTime    time.Time
	permission handle.PermissionState
	answer     handle.PermissionState
	readErr    error
	statErr    error
	gate       chan struct{}
	entered    chan struct{}

	reads    atomic.Int64
	stats    atomic.Int64
	requests atomic.Int64
}

var _ handle.FileHandle = (*File)(nil)

// NewFile returns a granted, readable file capability.
func NewFile(path, content string) *File {
	return &File{
		path:       path,
		content:    []byte(content),
		mimeType:   "text/plain",
		modTime:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		permission: handle.PermissionGranted,
		answer:     handle.PermissionGranted,
	}
}

// WithPermission scripts the query state and the answer to a request.
func (f *File) WithPermission(state, answer handle.PermissionState) *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permission = state
	f.answer = answer
	return f
}

// WithReadError makes every read fail.
func (f *File) WithReadError(err error) *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
	return f
}

// WithStatError makes Stat fail.
func (f *File) WithStatError(err error) *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statErr = err
	return f
}

// WithSize overrides the size reported by Stat.
func (f *File) WithSize(size int64) *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.size = size
	f.sizeSet = true
	return f
}

// WithMimeType overrides the type reported by Stat. Empty means unknown.
func (f *File) WithMimeType(mimeType string) *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mimeType = mimeType
	return f
}

// WithModTime overrides the modification time reported by Stat.
func (f *File) WithModTime(ts time.Time) *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modTime = ts
	return f
}

// BlockReads holds every Read until release is called. entered receives one
// value per read that reached the gate.
func (f *File) BlockReads() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 16)
	gate := f.gate
	var once sync.Once
	return f.entered, func() { once.Do(func() { close(gate) }) }
}

// Reads returns the number of Read calls.
func (f *File) Reads() int { return int(f.reads.Load()) }

// Stats returns the number of Stat calls.
func (f *File) Stats() int { return int(f.stats.Load()) }

// PermissionRequests returns the number of RequestPermission calls.
func (f *File) PermissionRequests() int { return int(f.requests.Load()) }

func (f *File) Kind() handle.Kind { return handle.KindFile }
func (f *File) Name() string      { return variable.BaseName(f.path) }
func (f *File) Path() string      { return f.path }

func (f *File) QueryPermission(ctx context.Context, _ handle.Mode) (handle.PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission, nil
}

func (f *File) RequestPermission(ctx context.Context, _ handle.Mode) (handle.PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.requests.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permission = f.answer
	return f.answer, nil
}

func (f *File) Stat(ctx context.Context) (handle.Info, error) {
	if err := ctx.Err(); err != nil {
		return handle.Info{}, err
	}
	f.stats.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return handle.Info{}, f.statErr
	}
	size := int64(len(f.content))
	if f.sizeSet {
		size = f.size
	}
	return handle.Info{Path: f.path, Size: size, MimeType: f.mimeType, ModTime: f.modTime}, nil
}

func (f *File) Read(ctx context.Context) ([]byte, error) {
	f.reads.Add(1)
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	readErr := f.readErr
	content := append([]byte(nil), f.content...)
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	return content, nil
}

// Dir is a scripted directory capability.
type Dir struct {
	path       string
	children   []handle.Handle
	permission handle.PermissionState
	listErr    error
	lists      atomic.Int64
}

var _ handle.DirectoryHandle = (*Dir)(nil)

// NewDir returns a granted directory holding children.
func NewDir(path string, children ...handle.Handle) *Dir {
	return &Dir{path: path, children: children, permission: handle.PermissionGranted}
}

// WithListError makes Entries fail.
func (d *Dir) WithListError(err error) *Dir {
	d.listErr = err
	return d
}

// Lists returns the number of Entries calls.
func (d *Dir) Lists() int { return int(d.lists.Load()) }

func (d *Dir) Kind() handle.Kind { return handle.KindDirectory }
func (d *Dir) Name() string      { return variable.BaseName(d.path) }
func (d *Dir) Path() string      { return d.path }

func (d *Dir) QueryPermission(context.Context, handle.Mode) (handle.PermissionState, error) {
	return d.permission, nil
}

func (d *Dir) RequestPermission(context.Context, handle.Mode) (handle.PermissionState, error) {
	return d.permission, nil
}

func (d *Dir) Entries(ctx context.Context) ([]handle.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.lists.Add(1)
	if d.listErr != nil {
		return nil, d.listErr
	}
	return append([]handle.Handle(nil), d.children...), nil
}

// Host answers picks from a scripted table keyed by the suggested path.
type Host struct {
	mu    sync.Mutex
	Picks map[string]handle.Handle
	Asked []handle.PickOptions
}

var _ handle.Host = (*Host)(nil)

// NewHost returns a host with no scripted picks.
func NewHost() *Host {
	return &Host{Picks: make(map[string]handle.Handle)}
}

// Script registers the handle returned when suggested is requested.
func (h *Host) Script(suggested string, picked handle.Handle) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Picks[suggested] = picked
	return h
}

// Prompts returns how many picks were requested.
func (h *Host) Prompts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Asked)
}

func (h *Host) RequestFiles(ctx context.Context, opts handle.PickOptions) ([]handle.Handle, error) {
	picked, err := h.pick(ctx, opts)
	if err != nil {
		return nil, err
	}
	return []handle.Handle{picked}, nil
}

func (h *Host) RequestDirectory(ctx context.Context, opts handle.PickOptions) (handle.DirectoryHandle, error) {
	picked, err := h.pick(ctx, opts)
	if err != nil {
		return nil, err
	}
	return handle.AsDirectory(picked)
}

func (h *Host) pick(ctx context.Context, opts handle.PickOptions) (handle.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Asked = append(h.Asked, opts)
	picked, ok := h.Picks[opts.SuggestedPath]
	if !ok || picked == nil {
		return nil, handle.ErrPickCancelled
	}
	return picked, nil
}

// ErrScripted is a generic failure for read/list scripting.
var ErrScripted = errors.New("testsupport: scripted failure")
