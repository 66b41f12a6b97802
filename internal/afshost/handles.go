package afshost

import (
	"context"
	"fmt"
	"strings"

	afsurl "github.com/viant/afs/url"

	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/variable"
)

// File is an afs backed file handle.
type File struct {
	host *Host
	url  string
}

var _ handle.FileHandle = (*File)(nil)

func (f *File) Kind() handle.Kind { return handle.KindFile }
func (f *File) Name() string      { return variable.BaseName(f.url) }
func (f *File) Path() string      { return displayPath(f.url) }

// URL returns the afs location.
func (f *File) URL() string { return f.url }

func (f *File) QueryPermission(ctx context.Context, _ handle.Mode) (handle.PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return handle.PermissionDenied, err
	}
	return f.host.query(f.url), nil
}

func (f *File) RequestPermission(ctx context.Context, mode handle.Mode) (handle.PermissionState, error) {
	return f.host.request(ctx, f.url, mode)
}

func (f *File) Stat(ctx context.Context) (handle.Info, error) {
	obj, err := f.host.fs.Object(ctx, f.url)
	if err != nil {
		return handle.Info{}, fmt.Errorf("afshost: stat %s: %w", f.Path(), err)
	}
	// Types unknown by extension stay empty; the resolver sniffs the content.
	return handle.Info{
		Path:     f.Path(),
		Size:     obj.Size(),
		ModTime:  obj.ModTime(),
		MimeType: mimeByName(f.url),
	}, nil
}

func (f *File) Read(ctx context.Context) ([]byte, error) {
	data, err := f.host.fs.DownloadWithURL(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("afshost: read %s: %w", f.Path(), err)
	}
	return data, nil
}

// Directory is an afs backed directory handle.
type Directory struct {
	host *Host
	url  string
}

var _ handle.DirectoryHandle = (*Directory)(nil)

func (d *Directory) Kind() handle.Kind { return handle.KindDirectory }
func (d *Directory) Name() string      { return variable.BaseName(d.url) }
func (d *Directory) Path() string      { return displayPath(d.url) }

// URL returns the afs location.
func (d *Directory) URL() string { return d.url }

func (d *Directory) QueryPermission(ctx context.Context, _ handle.Mode) (handle.PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return handle.PermissionDenied, err
	}
	return d.host.query(d.url), nil
}

func (d *Directory) RequestPermission(ctx context.Context, mode handle.Mode) (handle.PermissionState, error) {
	return d.host.request(ctx, d.url, mode)
}

// Entries lists direct children. afs includes the listed directory itself,
// which is skipped.
func (d *Directory) Entries(ctx context.Context) ([]handle.Handle, error) {
	objects, err := d.host.fs.List(ctx, d.url)
	if err != nil {
		return nil, fmt.Errorf("afshost: list %s: %w", d.Path(), err)
	}
	self := strings.TrimRight(afsurl.Path(d.url), "/")

	out := make([]handle.Handle, 0, len(objects))
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		child := strings.TrimRight(obj.URL(), "/")
		if strings.TrimRight(afsurl.Path(child), "/") == self {
			continue
		}
		if obj.IsDir() {
			out = append(out, &Directory{host: d.host, url: child})
			continue
		}
		out = append(out, &File{host: d.host, url: child})
	}
	return out, nil
}
