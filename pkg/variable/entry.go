package variable

import (
	"fmt"
	"strings"
)

// NewText returns a literal text entry.
func NewText(value string) Entry {
	return Entry{Kind: KindText, Value: value}
}

// NewFile returns a file reference bound to a registry handle id.
func NewFile(path, handleID string) Entry {
	return Entry{
		Kind:  KindFile,
		Value: path,
		Metadata: &Metadata{
			HandleID: handleID,
			Path:     path,
		},
	}
}

// NewDirectory returns a directory reference. A nil recursive leaves the
// directory unexpanded unless the batch options enable recursion.
func NewDirectory(path, handleID string, recursive *RecursiveOptions) Entry {
	return Entry{
		Kind:  KindDirectory,
		Value: path,
		Metadata: &Metadata{
			HandleID:  handleID,
			Path:      path,
			Recursive: recursive.Clone(),
		},
	}
}

// Validate checks the entry against the union.
func (e Entry) Validate() error {
	return e.Kind.Validate()
}

// Meta returns the entry metadata, allocating it on first use.
func (e *Entry) Meta() *Metadata {
	if e.Metadata == nil {
		e.Metadata = &Metadata{}
	}
	return e.Metadata
}

// IsReference reports whether the entry points at a file or directory.
func (e Entry) IsReference() bool {
	switch e.Kind {
	case KindFile, KindDirectory:
		return true
	case KindText:
		return false
	default:
		return false
	}
}

// HandleID returns the bound registry id, if any.
func (e Entry) HandleID() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata.HandleID
}

// IsResolved reports whether the resolver stamped the entry as resolved.
func (e Entry) IsResolved() bool {
	return e.Metadata != nil && e.Metadata.Resolved
}

// Failed reports whether the last resolution attempt left a diagnostic.
func (e Entry) Failed() bool {
	return e.Metadata != nil && e.Metadata.Error != ""
}

// SourcePath returns the path the entry refers to. Metadata.Path wins because
// Value is overwritten once the entry resolves.
func (e Entry) SourcePath() string {
	if e.Metadata != nil && strings.TrimSpace(e.Metadata.Path) != "" {
		return e.Metadata.Path
	}
	if e.IsReference() && !e.IsResolved() && !e.Failed() {
		return e.Value
	}
	return ""
}

// DisplayName is the label used in diagnostics.
func (e Entry) DisplayName() string {
	if name := strings.TrimSpace(e.Name); name != "" {
		return name
	}
	if base := BaseName(e.SourcePath()); base != "" {
		return base
	}
	if e.ID != "" {
		return e.ID
	}
	return string(e.Kind)
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := e
	if e.Metadata != nil {
		meta := *e.Metadata
		meta.Recursive = e.Metadata.Recursive.Clone()
		out.Metadata = &meta
	}
	return out
}

// Clone returns a deep copy; nil stays nil.
func (o *RecursiveOptions) Clone() *RecursiveOptions {
	if o == nil {
		return nil
	}
	out := *o
	out.Include = append([]string(nil), o.Include...)
	out.Exclude = append([]string(nil), o.Exclude...)
	return &out
}

// Clone returns a deep copy of the variable and its entries.
func (v Variable) Clone() Variable {
	out := v
	if v.Entries != nil {
		out.Entries = make([]Entry, len(v.Entries))
		for i, entry := range v.Entries {
			out.Entries[i] = entry.Clone()
		}
	}
	return out
}

// HasReferences reports whether any entry is a file or directory.
func (v Variable) HasReferences() bool {
	for _, entry := range v.Entries {
		if entry.IsReference() {
			return true
		}
	}
	return false
}

// Validate checks every entry kind.
func (v Variable) Validate() error {
	for idx, entry := range v.Entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("variable %q entry %d: %w", v.Name, idx, err)
		}
	}
	return nil
}

// BaseName returns the final element of a slash or backslash separated path
// or URL. Trailing separators are ignored.
func BaseName(p string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(p), `/\`)
	if trimmed == "" {
		return ""
	}
	if idx := strings.LastIndexAny(trimmed, `/\`); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
