package resolver

import (
	"time"

	"github.com/goliatone/go-varsub/pkg/variable"
)

const (
	// DefaultMaxFileSize is the largest file that resolves (10 MiB).
	DefaultMaxFileSize = int64(10 << 20)
	// DefaultCacheTTL bounds how long a cached read is reused.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultConcurrency bounds parallel reads within one batch.
	DefaultConcurrency = 8
	// DefaultMaxDepth applies to recursive expansion when unset.
	DefaultMaxDepth = 5
)

// Options configures a resolution batch. Start from DefaultOptions: the zero
// value disables wrapping and caching.
type Options struct {
	// WrapInTags wraps escaped content in a tag derived from the file name.
	WrapInTags bool
	// MaxFileSize rejects files larger than this many bytes.
	MaxFileSize int64
	// UseCache reuses fresh reads for the same resource identity.
	UseCache bool
	// CacheTTL is the freshness window applied to cache lookups.
	CacheTTL time.Duration
	// Recursive applies to directory entries that carry no options of their own.
	Recursive variable.RecursiveOptions
	// Sequential resolves one entry at a time, in order.
	Sequential bool
	// Concurrency bounds parallel entry resolution.
	Concurrency int
}

// DefaultOptions returns the recommended batch configuration.
func DefaultOptions() Options {
	return Options{
		WrapInTags:  true,
		MaxFileSize: DefaultMaxFileSize,
		UseCache:    true,
		CacheTTL:    DefaultCacheTTL,
		Recursive:   variable.RecursiveOptions{MaxDepth: DefaultMaxDepth},
		Concurrency: DefaultConcurrency,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Recursive.MaxDepth <= 0 {
		o.Recursive.MaxDepth = DefaultMaxDepth
	}
	return o
}

// recursiveFor returns the expansion options for a directory entry. Options
// stored on the entry override the batch options.
func (o Options) recursiveFor(entry variable.Entry) variable.RecursiveOptions {
	if entry.Metadata != nil && entry.Metadata.Recursive != nil {
		rec := *entry.Metadata.Recursive.Clone()
		if rec.MaxDepth <= 0 {
			rec.MaxDepth = o.Recursive.MaxDepth
		}
		return rec
	}
	return o.Recursive
}
