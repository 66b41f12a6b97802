package expand_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-varsub/pkg/expand"
	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/testsupport"
	"github.com/goliatone/go-varsub/pkg/variable"
)

func sampleTree() *testsupport.Dir {
	return testsupport.NewDir("/proj",
		testsupport.NewFile("/proj/readme.md", "# readme"),
		testsupport.NewFile("/proj/main.go", "package main"),
		testsupport.NewDir("/proj/docs",
			testsupport.NewFile("/proj/docs/guide.md", "guide"),
			testsupport.NewDir("/proj/docs/deep",
				testsupport.NewFile("/proj/docs/deep/notes.md", "notes"),
			),
		),
		testsupport.NewDir("/proj/node_modules",
			testsupport.NewFile("/proj/node_modules/x.md", "vendored"),
		),
	)
}

func relPaths(in []expand.Descriptor) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		out = append(out, d.RelPath)
	}
	return out
}

func TestExpand_DepthAndFilters(t *testing.T) {
	ctx := context.Background()
	exp := expand.New(handle.NewRegistry())

	cases := []struct {
		name string
		opts expand.Options
		want []string
	}{
		{
			name: "depth one lists direct children only",
			opts: expand.Options{MaxDepth: 1},
			want: []string{"main.go", "readme.md"},
		},
		{
			name: "depth two reaches children of subdirectories",
			opts: expand.Options{MaxDepth: 2},
			want: []string{"docs/guide.md", "main.go", "node_modules/x.md", "readme.md"},
		},
		{
			name: "include keeps matching files at any depth",
			opts: expand.Options{MaxDepth: 3, Include: []string{"*.md"}},
			want: []string{"docs/deep/notes.md", "docs/guide.md", "node_modules/x.md", "readme.md"},
		},
		{
			name: "exclude prunes directories",
			opts: expand.Options{MaxDepth: 3, Include: []string{"*.md"}, Exclude: []string{"node_modules"}},
			want: []string{"docs/deep/notes.md", "docs/guide.md", "readme.md"},
		},
		{
			name: "doublestar patterns match relative paths",
			opts: expand.Options{MaxDepth: 3, Include: []string{"docs/**/*.md"}},
			want: []string{"docs/deep/notes.md", "docs/guide.md"},
		},
		{
			name: "file budget stops traversal",
			opts: expand.Options{MaxDepth: 1, MaxFiles: 1},
			want: []string{"readme.md"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := exp.Expand(ctx, sampleTree(), tc.opts)
			if err != nil {
				t.Fatalf("expand: %v", err)
			}
			if diff := cmp.Diff(tc.want, relPaths(got)); diff != "" {
				t.Fatalf("files mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpand_InvalidPattern(t *testing.T) {
	_, err := expand.New(handle.NewRegistry()).Expand(context.Background(), sampleTree(), expand.Options{Include: []string{"[a-"}})
	if !errors.Is(err, expand.ErrBadPattern) {
		t.Fatalf("expected ErrBadPattern, got %v", err)
	}
}

func TestExpand_ListFailure(t *testing.T) {
	dir := testsupport.NewDir("/broken").WithListError(testsupport.ErrScripted)
	_, err := expand.New(handle.NewRegistry()).Expand(context.Background(), dir, expand.Options{})
	if !errors.Is(err, testsupport.ErrScripted) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestExpandEntry_InsertsAfterDirectory(t *testing.T) {
	ctx := context.Background()
	reg := handle.NewRegistry()
	exp := expand.New(reg)

	dir := testsupport.NewDir("/notes",
		testsupport.NewFile("/notes/a.md", "A"),
		testsupport.NewFile("/notes/b.md", "B"),
	)
	v := testsupport.Variable("notes",
		variable.NewText("before"),
		testsupport.BindDir(t, reg, dir, &variable.RecursiveOptions{Enabled: true}),
		variable.NewText("after"),
	)

	n, err := exp.ExpandEntry(ctx, v, 1, expand.Options{MaxDepth: 1})
	if err != nil {
		t.Fatalf("expand entry: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted entries, got %d", n)
	}
	if len(v.Entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(v.Entries))
	}

	gotKinds := []variable.Kind{}
	for _, e := range v.Entries {
		gotKinds = append(gotKinds, e.Kind)
	}
	wantKinds := []variable.Kind{variable.KindText, variable.KindDirectory, variable.KindFile, variable.KindFile, variable.KindText}
	if diff := cmp.Diff(wantKinds, gotKinds); diff != "" {
		t.Fatalf("entry order mismatch (-want +got):\n%s", diff)
	}

	dirEntry := v.Entries[1]
	if !dirEntry.IsResolved() {
		t.Fatalf("expected directory entry to be marked resolved")
	}
	if dirEntry.Value != "/notes" {
		t.Fatalf("expected directory entry value kept, got %q", dirEntry.Value)
	}
	for _, produced := range v.Entries[2:4] {
		if produced.Metadata.ExpandedFrom != dirEntry.ID {
			t.Fatalf("expected produced entry to point at directory %q, got %q", dirEntry.ID, produced.Metadata.ExpandedFrom)
		}
		if _, ok := reg.Get(produced.HandleID()); !ok {
			t.Fatalf("expected produced handle %q registered", produced.HandleID())
		}
	}
	if reg.Count() != 3 {
		t.Fatalf("expected directory plus two file handles, got %d", reg.Count())
	}

	again, err := exp.ExpandEntry(ctx, v, 1, expand.Options{MaxDepth: 1})
	if err != nil || again != 0 {
		t.Fatalf("expected resolved directory to be left alone, got n=%d err=%v", again, err)
	}
	if dir.Lists() != 1 {
		t.Fatalf("expected a single listing, got %d", dir.Lists())
	}
}

func TestExpandEntry_ReplacesStaleExpansion(t *testing.T) {
	ctx := context.Background()
	reg := handle.NewRegistry()
	exp := expand.New(reg)

	dir := testsupport.NewDir("/notes", testsupport.NewFile("/notes/a.md", "A"))
	v := testsupport.Variable("notes", testsupport.BindDir(t, reg, dir, nil))

	if _, err := exp.ExpandEntry(ctx, v, 0, expand.Options{}); err != nil {
		t.Fatalf("first expand: %v", err)
	}
	v.Entries[0].Metadata.Resolved = false

	if _, err := exp.ExpandEntry(ctx, v, 0, expand.Options{}); err != nil {
		t.Fatalf("second expand: %v", err)
	}
	if len(v.Entries) != 2 {
		t.Fatalf("expected stale entries replaced, got %d entries", len(v.Entries))
	}
	if reg.Count() != 2 {
		t.Fatalf("expected stale handle released, registry holds %d", reg.Count())
	}
}

func TestExpandEntry_Errors(t *testing.T) {
	ctx := context.Background()
	reg := handle.NewRegistry()
	exp := expand.New(reg)

	missing := testsupport.Variable("x", variable.NewDirectory("/gone", "nope", nil))
	if _, err := exp.ExpandEntry(ctx, missing, 0, expand.Options{}); !errors.Is(err, expand.ErrHandleMissing) {
		t.Fatalf("expected ErrHandleMissing, got %v", err)
	}

	text := testsupport.Variable("y", variable.NewText("hi"))
	if _, err := exp.ExpandEntry(ctx, text, 0, expand.Options{}); !errors.Is(err, expand.ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory, got %v", err)
	}

	if _, err := exp.ExpandEntry(ctx, text, 4, expand.Options{}); err == nil {
		t.Fatalf("expected out of range error")
	}
}
