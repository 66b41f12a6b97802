package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/viant/afs"
	afsurl "github.com/viant/afs/url"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Format selects the encoding used when a file store is written.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the encoding from the file extension. Anything that is
// not .json is written as YAML.
func FormatFor(location string) Format {
	if strings.EqualFold(path.Ext(location), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// FileOption configures OpenFile.
type FileOption func(*fileConfig)

type fileConfig struct {
	fs      afs.Service
	options []Option
}

// WithService overrides the afs service used for reads and writes.
func WithService(fs afs.Service) FileOption {
	return func(c *fileConfig) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithStoreOptions forwards options to the underlying Store.
func WithStoreOptions(options ...Option) FileOption {
	return func(c *fileConfig) {
		c.options = append(c.options, options...)
	}
}

// OpenFile loads the document at location, which may be a plain path or any
// afs URL. A missing file yields an empty store that is created on first
// write.
func OpenFile(ctx context.Context, location string, options ...FileOption) (*Store, error) {
	cfg := fileConfig{fs: afs.New()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	target := normalizeLocation(location)
	doc, err := loadDocument(ctx, cfg.fs, target)
	if err != nil {
		return nil, err
	}
	format := FormatFor(target)
	fs := cfg.fs

	s := newStore(doc, nil, cfg.options...)
	s.persist = func(ctx context.Context, doc Document) error {
		data, err := encodeDocument(persistable(doc), format)
		if err != nil {
			return err
		}
		if err := fs.Upload(ctx, target, 0o644, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("store: write %s: %w", target, err)
		}
		s.logger.Debug("store saved", zap.String("location", target), zap.Int("bytes", len(data)))
		return nil
	}
	return s, nil
}

func normalizeLocation(location string) string {
	if afsurl.Scheme(location, "") != "" {
		return location
	}
	return afsurl.ToFileURL(location)
}

func loadDocument(ctx context.Context, fs afs.Service, location string) (Document, error) {
	exists, err := fs.Exists(ctx, location)
	if err != nil {
		return Document{}, fmt.Errorf("store: stat %s: %w", location, err)
	}
	if !exists {
		return Document{}, nil
	}
	data, err := fs.DownloadWithURL(ctx, location)
	if err != nil {
		return Document{}, fmt.Errorf("store: read %s: %w", location, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}
	return parseDocument(data, location)
}

func parseDocument(data []byte, source string) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	doc = Document{}
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	return Document{}, fmt.Errorf("store: parse %s: invalid JSON or YAML", source)
}

func encodeDocument(doc Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("store: encode json: %w", err)
		}
		return append(data, '\n'), nil
	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("store: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("store: encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// persistable drops expanded children and resolution state so the written
// document holds references only.
func persistable(doc Document) Document {
	for i := range doc.Variables {
		v := &doc.Variables[i]
		kept := v.Entries[:0]
		for _, entry := range v.Entries {
			meta := entry.Metadata
			if meta != nil && meta.ExpandedFrom != "" {
				continue
			}
			if entry.IsReference() && meta != nil {
				source := entry.SourcePath()
				reset := *meta
				reset.Resolved = false
				reset.ResolvedAt = time.Time{}
				reset.ContentLength = 0
				reset.TagName = ""
				reset.Error = ""
				entry.Metadata = &reset
				entry.Value = source
			}
			kept = append(kept, entry)
		}
		v.Entries = kept
	}
	return doc
}
