// Package handle defines the file-access capability contracts and the
// session-scoped Registry that maps opaque ids to live handles. Handles are
// issued by a permission-gated Host and are never serialized; ids minted in
// one process mean nothing in another.
package handle

import (
	"context"
	"time"
)

// Kind distinguishes file and directory capabilities.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Mode is the access mode requested from the host.
type Mode string

const (
	ModeRead      Mode = "read"
	ModeReadWrite Mode = "readwrite"
)

// PermissionState mirrors the host's consent answer.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Info is the descriptive metadata of a file capability.
type Info struct {
	Path     string
	Size     int64
	MimeType string
	ModTime  time.Time
}

// Handle is an opaque capability for a single file or directory.
type Handle interface {
	Kind() Kind
	Name() string
	Path() string
	QueryPermission(ctx context.Context, mode Mode) (PermissionState, error)
	RequestPermission(ctx context.Context, mode Mode) (PermissionState, error)
}

// FileHandle reads a single file.
type FileHandle interface {
	Handle
	Stat(ctx context.Context) (Info, error)
	Read(ctx context.Context) ([]byte, error)
}

// DirectoryHandle enumerates its direct children.
type DirectoryHandle interface {
	Handle
	Entries(ctx context.Context) ([]Handle, error)
}

// PickOptions configures an interactive pick on the host.
type PickOptions struct {
	Kind          Kind
	Title         string
	SuggestedPath string
	Multiple      bool
}

// Host issues capabilities after user interaction.
type Host interface {
	RequestFiles(ctx context.Context, opts PickOptions) ([]Handle, error)
	RequestDirectory(ctx context.Context, opts PickOptions) (DirectoryHandle, error)
}

// AsFile narrows h to a FileHandle.
func AsFile(h Handle) (FileHandle, error) {
	if h == nil {
		return nil, ErrInvalidHandle
	}
	file, ok := h.(FileHandle)
	if !ok || h.Kind() != KindFile {
		return nil, wrongKind(h, KindFile)
	}
	return file, nil
}

// AsDirectory narrows h to a DirectoryHandle.
func AsDirectory(h Handle) (DirectoryHandle, error) {
	if h == nil {
		return nil, ErrInvalidHandle
	}
	dir, ok := h.(DirectoryHandle)
	if !ok || h.Kind() != KindDirectory {
		return nil, wrongKind(h, KindDirectory)
	}
	return dir, nil
}
