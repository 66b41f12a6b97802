package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	afsurl "github.com/viant/afs/url"
)

// FileName is the registry name of the file sink.
const FileName = "file"

// File writes output to a path or afs URL, replacing previous content.
type File struct {
	fs       afs.Service
	location string
}

// NewFile returns a file sink. A nil fs uses afs.New().
func NewFile(fs afs.Service, location string) *File {
	if fs == nil {
		fs = afs.New()
	}
	if afsurl.Scheme(location, "") == "" {
		location = afsurl.ToFileURL(location)
	}
	return &File{fs: fs, location: location}
}

func (s *File) Name() string { return FileName }

// Location is the normalized destination URL.
func (s *File) Location() string { return s.location }

func (s *File) Deliver(ctx context.Context, output string) error {
	if err := s.fs.Upload(ctx, s.location, 0o644, strings.NewReader(output)); err != nil {
		return fmt.Errorf("sink: write %s: %w", s.location, err)
	}
	return nil
}
