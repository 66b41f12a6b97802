package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/goliatone/go-varsub/pkg/cache"
	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/resolver"
	"github.com/goliatone/go-varsub/pkg/testsupport"
	"github.com/goliatone/go-varsub/pkg/variable"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func newResolver(reg *handle.Registry, options ...resolver.Option) *resolver.Resolver {
	options = append([]resolver.Option{resolver.WithClock(func() time.Time { return fixedNow })}, options...)
	return resolver.New(reg, options...)
}

func TestResolve_WrapsAndStamps(t *testing.T) {
	ctx := context.Background()
	reg := handle.NewRegistry()
	file := testsupport.NewFile("/docs/notes.md", "a < b & c")
	v := testsupport.Variable("doc", testsupport.BindFile(t, reg, file))
	id := v.Entries[0].HandleID()

	report, err := newResolver(reg).Resolve(ctx, []*variable.Variable{v}, resolver.DefaultOptions())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !report.Success() || report.Count(resolver.StatusResolved) != 1 {
		t.Fatalf("expected one resolved entry, got %+v", report.Results)
	}

	entry := v.Entries[0]
	wantValue := "<notes.md>\na &lt; b &amp; c\n</notes.md>"
	if entry.Value != wantValue {
		t.Fatalf("value mismatch\nwant %q\ngot  %q", wantValue, entry.Value)
	}

	wantMeta := variable.Metadata{
		Size:           9,
		MimeType:       "text/plain",
		LastModifiedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		HandleID:       id,
		Path:           "/docs/notes.md",
		Resolved:       true,
		ResolvedAt:     fixedNow,
		ContentLength:  9,
		TagName:        "notes.md",
	}
	if diff := cmp.Diff(wantMeta, *entry.Metadata); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}

	_, content, ok := resolver.Unwrap(entry.Value)
	if !ok || resolver.Unescape(content) != "a < b & c" {
		t.Fatalf("expected escape round trip, got %q", content)
	}
}

func TestResolve_WrapDisabled(t *testing.T) {
	reg := handle.NewRegistry()
	v := testsupport.Variable("raw", testsupport.BindFile(t, reg, testsupport.NewFile("/x.html", "<b>hi</b>")))

	opts := resolver.DefaultOptions()
	opts.WrapInTags = false
	if _, err := newResolver(reg).Resolve(context.Background(), []*variable.Variable{v}, opts); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.Entries[0].Value != "<b>hi</b>" {
		t.Fatalf("expected raw content, got %q", v.Entries[0].Value)
	}
	if !v.Entries[0].IsResolved() {
		t.Fatalf("expected entry to be resolved")
	}
}

func TestResolve_Failures(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name      string
		entry     func(t *testing.T, reg *handle.Registry) variable.Entry
		wantValue string
		wantErr   error
	}{
		{
			name: "registry miss",
			entry: func(t *testing.T, reg *handle.Registry) variable.Entry {
				return variable.NewFile("/gone/report.pdf", "stale-id")
			},
			wantValue: "Cannot access file: report.pdf — handle unavailable",
			wantErr:   resolver.ErrRegistryMiss,
		},
		{
			name: "permission denied",
			entry: func(t *testing.T, reg *handle.Registry) variable.Entry {
				f := testsupport.NewFile("/secret.txt", "x").WithPermission(handle.PermissionPrompt, handle.PermissionDenied)
				return testsupport.BindFile(t, reg, f)
			},
			wantValue: "Cannot access file: secret.txt — permission denied",
			wantErr:   handle.ErrPermissionDenied,
		},
		{
			name: "too large by stat",
			entry: func(t *testing.T, reg *handle.Registry) variable.Entry {
				return testsupport.BindFile(t, reg, testsupport.NewFile("/big.bin", "123456"))
			},
			wantValue: "File too large: big.bin (6 B exceeds 5 B)",
			wantErr:   resolver.ErrFileTooLarge,
		},
		{
			name: "too large after read",
			entry: func(t *testing.T, reg *handle.Registry) variable.Entry {
				f := testsupport.NewFile("/liar.txt", "1234567").WithStatError(testsupport.ErrScripted)
				return testsupport.BindFile(t, reg, f)
			},
			wantValue: "File too large: liar.txt (7 B exceeds 5 B)",
			wantErr:   resolver.ErrFileTooLarge,
		},
		{
			name: "too large with a zero stat size",
			entry: func(t *testing.T, reg *handle.Registry) variable.Entry {
				f := testsupport.NewFile("/blank.txt", "1234567").WithSize(0)
				return testsupport.BindFile(t, reg, f)
			},
			wantValue: "File too large: blank.txt (7 B exceeds 5 B)",
			wantErr:   resolver.ErrFileTooLarge,
		},
		{
			name: "read failure",
			entry: func(t *testing.T, reg *handle.Registry) variable.Entry {
				f := testsupport.NewFile("/bad.txt", "x").WithReadError(testsupport.ErrScripted)
				return testsupport.BindFile(t, reg, f)
			},
			wantValue: "Cannot access file: bad.txt — testsupport: scripted failure",
			wantErr:   testsupport.ErrScripted,
		},
		{
			name: "no file reference",
			entry: func(t *testing.T, reg *handle.Registry) variable.Entry {
				return variable.Entry{Name: "empty", Kind: variable.KindFile}
			},
			wantValue: "Cannot access file: empty — no file reference",
			wantErr:   handle.ErrInvalidHandle,
		},
		{
			name: "directory handle behind a file entry",
			entry: func(t *testing.T, reg *handle.Registry) variable.Entry {
				id := reg.MustRegister(testsupport.NewDir("/notes"))
				return variable.NewFile("/notes", id)
			},
			wantValue: "Cannot access file: notes — not a file",
			wantErr:   handle.ErrInvalidHandle,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := handle.NewRegistry()
			v := testsupport.Variable("v", tc.entry(t, reg))

			opts := resolver.DefaultOptions()
			opts.MaxFileSize = 5
			report, err := newResolver(reg).Resolve(ctx, []*variable.Variable{v}, opts)
			if err != nil {
				t.Fatalf("a failing entry must not fail the batch: %v", err)
			}
			if report.Success() {
				t.Fatalf("expected no success")
			}

			entry := v.Entries[0]
			if entry.Value != tc.wantValue {
				t.Fatalf("value mismatch\nwant %q\ngot  %q", tc.wantValue, entry.Value)
			}
			if !entry.Failed() || entry.Metadata.Error != tc.wantValue {
				t.Fatalf("expected diagnostic in metadata, got %+v", entry.Metadata)
			}
			if entry.IsResolved() {
				t.Fatalf("failed entry must not be marked resolved")
			}

			failures := report.Failures()
			if len(failures) != 1 {
				t.Fatalf("expected one failure, got %d", len(failures))
			}
			if !errors.Is(failures[0].Err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, failures[0].Err)
			}
			var entryErr *resolver.EntryError
			if !errors.As(report.Err(), &entryErr) || entryErr.Variable != "v" {
				t.Fatalf("expected EntryError for variable v, got %v", report.Err())
			}
		})
	}
}

func TestResolve_SizeBoundary(t *testing.T) {
	reg := handle.NewRegistry()
	exact := testsupport.NewFile("/exact.txt", "12345")
	over := testsupport.NewFile("/over.txt", "123456")
	v := testsupport.Variable("v", testsupport.BindFile(t, reg, exact), testsupport.BindFile(t, reg, over))

	opts := resolver.DefaultOptions()
	opts.MaxFileSize = 5
	if _, err := newResolver(reg).Resolve(context.Background(), []*variable.Variable{v}, opts); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !v.Entries[0].IsResolved() {
		t.Fatalf("expected file exactly at the limit to resolve, got %q", v.Entries[0].Value)
	}
	if v.Entries[1].IsResolved() || over.Reads() != 0 {
		t.Fatalf("expected oversized file to be rejected before reading")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	ctx := context.Background()
	reg := handle.NewRegistry()
	file := testsupport.NewFile("/a.txt", "alpha")
	v := testsupport.Variable("a", testsupport.BindFile(t, reg, file))

	opts := resolver.DefaultOptions()
	opts.UseCache = false
	r := newResolver(reg)

	if _, err := r.Resolve(ctx, []*variable.Variable{v}, opts); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	first := v.Entries[0].Clone()

	report, err := r.Resolve(ctx, []*variable.Variable{v}, opts)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if file.Reads() != 1 {
		t.Fatalf("expected a single read, got %d", file.Reads())
	}
	if diff := cmp.Diff(first, v.Entries[0]); diff != "" {
		t.Fatalf("second resolve changed the entry (-want +got):\n%s", diff)
	}
	if report.Count(resolver.StatusAlreadyResolved) != 1 || !report.Success() {
		t.Fatalf("expected already-resolved status, got %+v", report.Results)
	}
}

func TestResolve_CacheServesRepeatReads(t *testing.T) {
	ctx := context.Background()
	reg := handle.NewRegistry()
	file := testsupport.NewFile("/shared.txt", "shared")
	c := cache.New()
	r := newResolver(reg, resolver.WithCache(c))

	first := testsupport.Variable("one", testsupport.BindFile(t, reg, file))
	if _, err := r.Resolve(ctx, []*variable.Variable{first}, resolver.DefaultOptions()); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	second := testsupport.Variable("two", testsupport.BindFile(t, reg, file))
	report, err := r.Resolve(ctx, []*variable.Variable{second}, resolver.DefaultOptions())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if file.Reads() != 1 {
		t.Fatalf("expected cached content to be reused, reads=%d", file.Reads())
	}
	if !report.Results[0].FromCache {
		t.Fatalf("expected result to be served from cache")
	}
	if second.Entries[0].Value != first.Entries[0].Value {
		t.Fatalf("expected identical values, got %q and %q", first.Entries[0].Value, second.Entries[0].Value)
	}
}

func TestResolve_ConcurrentSameIdentityReadsOnce(t *testing.T) {
	ctx := context.Background()
	reg := handle.NewRegistry()
	file := testsupport.NewFile("/same.txt", "same content")
	r := newResolver(reg)

	var vars []*variable.Variable
	for _, name := range []string{"a", "b", "c", "d"} {
		vars = append(vars, testsupport.Variable(name, testsupport.BindFile(t, reg, file)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(vars))
	for _, v := range vars {
		wg.Add(1)
		go func(v *variable.Variable) {
			defer wg.Done()
			_, err := r.Resolve(ctx, []*variable.Variable{v}, resolver.DefaultOptions())
			errs <- err
		}(v)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}

	if file.Reads() != 1 {
		t.Fatalf("expected one read for one identity, got %d", file.Reads())
	}
	for _, v := range vars {
		if !v.Entries[0].IsResolved() {
			t.Fatalf("expected %s to resolve", v.Name)
		}
	}
}

func TestResolve_CancelDiscardsResults(t *testing.T) {
	reg := handle.NewRegistry()
	file := testsupport.NewFile("/slow.txt", "slow")
	entered, release := file.BlockReads()
	v := testsupport.Variable("slow", testsupport.BindFile(t, reg, file))
	r := newResolver(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, []*variable.Variable{v}, resolver.DefaultOptions())
		done <- err
	}()

	<-entered
	cancel()
	release()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if v.Entries[0].Value != "/slow.txt" || v.Entries[0].IsResolved() {
		t.Fatalf("expected entry untouched after cancellation, got %+v", v.Entries[0])
	}
	if r.Cache().Len() != 1 {
		t.Fatalf("expected the in-flight read to complete and be cached")
	}

	report, err := r.Resolve(context.Background(), []*variable.Variable{v}, resolver.DefaultOptions())
	if err != nil {
		t.Fatalf("resolve after cancel: %v", err)
	}
	if !report.Results[0].FromCache || file.Reads() != 1 {
		t.Fatalf("expected cached content on retry, reads=%d", file.Reads())
	}
}

func TestResolve_CancelledBeforeStart(t *testing.T) {
	reg := handle.NewRegistry()
	file := testsupport.NewFile("/a.txt", "a")
	v := testsupport.Variable("a", testsupport.BindFile(t, reg, file))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newResolver(reg).Resolve(ctx, []*variable.Variable{v}, resolver.DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if file.Reads() != 0 {
		t.Fatalf("expected no reads")
	}
}

func TestResolve_RecursiveDirectory(t *testing.T) {
	reg := handle.NewRegistry()
	dir := testsupport.NewDir("/notes",
		testsupport.NewFile("/notes/a.md", "A"),
		testsupport.NewFile("/notes/b.md", "B"),
	)
	v := testsupport.Variable("notes", testsupport.BindDir(t, reg, dir, &variable.RecursiveOptions{Enabled: true, MaxDepth: 1}))

	report, err := newResolver(reg).Resolve(context.Background(), []*variable.Variable{v}, resolver.DefaultOptions())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(v.Entries) != 3 {
		t.Fatalf("expected directory plus two files, got %d entries", len(v.Entries))
	}
	if v.Entries[0].Kind != variable.KindDirectory || !v.Entries[0].IsResolved() {
		t.Fatalf("expected resolved directory entry first, got %+v", v.Entries[0])
	}

	got := []string{v.Entries[1].Value, v.Entries[2].Value}
	want := []string{"<a.md>\nA\n</a.md>", "<b.md>\nB\n</b.md>"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("expanded values mismatch (-want +got):\n%s", diff)
	}
	if report.Count(resolver.StatusExpanded) != 1 || report.Count(resolver.StatusResolved) != 2 {
		t.Fatalf("unexpected report %+v", report.Results)
	}

	if _, err := newResolver(reg).Resolve(context.Background(), []*variable.Variable{v}, resolver.DefaultOptions()); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if len(v.Entries) != 3 || dir.Lists() != 1 {
		t.Fatalf("expected no re-expansion, entries=%d lists=%d", len(v.Entries), dir.Lists())
	}
}

func TestResolve_BatchRecursiveOptions(t *testing.T) {
	reg := handle.NewRegistry()
	dir := testsupport.NewDir("/src",
		testsupport.NewFile("/src/main.go", "package main"),
		testsupport.NewFile("/src/README.md", "readme"),
	)
	v := testsupport.Variable("src", testsupport.BindDir(t, reg, dir, nil))

	opts := resolver.DefaultOptions()
	opts.Recursive = variable.RecursiveOptions{Enabled: true, Include: []string{"*.go"}}
	if _, err := newResolver(reg).Resolve(context.Background(), []*variable.Variable{v}, opts); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(v.Entries) != 2 || v.Entries[1].Name != "main.go" {
		t.Fatalf("expected only main.go to be expanded, got %+v", v.Entries)
	}
}

func TestResolve_DirectoryWithoutRecursionIsSkipped(t *testing.T) {
	reg := handle.NewRegistry()
	dir := testsupport.NewDir("/notes", testsupport.NewFile("/notes/a.md", "A"))
	v := testsupport.Variable("notes", testsupport.BindDir(t, reg, dir, nil))

	report, err := newResolver(reg).Resolve(context.Background(), []*variable.Variable{v}, resolver.DefaultOptions())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.Success() || report.Count(resolver.StatusSkipped) != 1 {
		t.Fatalf("expected skipped directory, got %+v", report.Results)
	}
	if len(v.Entries) != 1 || v.Entries[0].Value != "/notes" || dir.Lists() != 0 {
		t.Fatalf("expected directory entry untouched")
	}
}

func TestResolve_DirectoryFailures(t *testing.T) {
	reg := handle.NewRegistry()
	broken := testsupport.NewDir("/broken").WithListError(testsupport.ErrScripted)
	v := testsupport.Variable("dirs",
		variable.NewDirectory("/lost", "stale", &variable.RecursiveOptions{Enabled: true}),
		testsupport.BindDir(t, reg, broken, &variable.RecursiveOptions{Enabled: true}),
	)

	report, err := newResolver(reg).Resolve(context.Background(), []*variable.Variable{v}, resolver.DefaultOptions())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.Count(resolver.StatusFailed) != 2 {
		t.Fatalf("expected two failures, got %+v", report.Results)
	}
	if v.Entries[0].Value != "Cannot access file: lost — handle unavailable" {
		t.Fatalf("unexpected diagnostic %q", v.Entries[0].Value)
	}
	if v.Entries[0].SourcePath() != "/lost" {
		t.Fatalf("expected source path kept in metadata, got %q", v.Entries[0].SourcePath())
	}
	if !v.Entries[1].Failed() {
		t.Fatalf("expected list failure to be recorded")
	}
}

func TestResolve_StatFailureFallsBackToHandleIdentity(t *testing.T) {
	reg := handle.NewRegistry()
	file := testsupport.NewFile("/nostat.txt", "body").WithStatError(testsupport.ErrScripted)
	v := testsupport.Variable("v", testsupport.BindFile(t, reg, file))
	r := newResolver(reg)

	if _, err := r.Resolve(context.Background(), []*variable.Variable{v}, resolver.DefaultOptions()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	entry := v.Entries[0]
	if !entry.IsResolved() || entry.Metadata.Size != 4 {
		t.Fatalf("expected resolve with size from content, got %+v", entry.Metadata)
	}
	if _, ok := r.Cache().Get("handle:" + entry.HandleID()); !ok {
		t.Fatalf("expected content cached under the handle identity")
	}
}

func TestResolve_FillsSizeAndTypeFromContent(t *testing.T) {
	reg := handle.NewRegistry()
	file := testsupport.NewFile("/NOTES", "hello world").WithSize(0).WithMimeType("")
	v := testsupport.Variable("v", testsupport.BindFile(t, reg, file))

	if _, err := newResolver(reg).Resolve(context.Background(), []*variable.Variable{v}, resolver.DefaultOptions()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	meta := v.Entries[0].Metadata
	if meta.Size != 11 || meta.ContentLength != 11 {
		t.Fatalf("expected size from content, got size=%d length=%d", meta.Size, meta.ContentLength)
	}
	if meta.MimeType != "text/plain; charset=utf-8" {
		t.Fatalf("expected sniffed type, got %q", meta.MimeType)
	}
	if file.Reads() != 1 {
		t.Fatalf("expected one read, got %d", file.Reads())
	}
}

func TestResolve_SequentialMatchesConcurrent(t *testing.T) {
	build := func(t *testing.T) (*handle.Registry, []*variable.Variable) {
		reg := handle.NewRegistry()
		vars := []*variable.Variable{
			testsupport.Variable("a", variable.NewText("lead"), testsupport.BindFile(t, reg, testsupport.NewFile("/a.txt", "A"))),
			testsupport.Variable("b", testsupport.BindFile(t, reg, testsupport.NewFile("/b.txt", "B").WithReadError(testsupport.ErrScripted))),
			testsupport.Variable("c", testsupport.BindFile(t, reg, testsupport.NewFile("/c.txt", "C"))),
		}
		return reg, vars
	}
	values := func(vars []*variable.Variable) []string {
		var out []string
		for _, v := range vars {
			for _, e := range v.Entries {
				out = append(out, e.Value)
			}
		}
		return out
	}

	seqReg, seqVars := build(t)
	seqOpts := resolver.DefaultOptions()
	seqOpts.Sequential = true
	seqReport, err := newResolver(seqReg).Resolve(context.Background(), seqVars, seqOpts)
	if err != nil {
		t.Fatalf("sequential resolve: %v", err)
	}

	parReg, parVars := build(t)
	parReport, err := newResolver(parReg).Resolve(context.Background(), parVars, resolver.DefaultOptions())
	if err != nil {
		t.Fatalf("concurrent resolve: %v", err)
	}

	if diff := cmp.Diff(values(seqVars), values(parVars)); diff != "" {
		t.Fatalf("sequential and concurrent results differ (-seq +par):\n%s", diff)
	}
	if seqReport.Count(resolver.StatusFailed) != 1 || parReport.Count(resolver.StatusFailed) != 1 {
		t.Fatalf("expected exactly one failure in each mode")
	}
}

func TestResolve_TextOnlyIsNoop(t *testing.T) {
	v := testsupport.Variable("greeting", variable.NewText("hello"))
	report, err := newResolver(handle.NewRegistry()).Resolve(context.Background(), []*variable.Variable{v}, resolver.DefaultOptions())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(report.Results) != 0 || v.Entries[0].Value != "hello" {
		t.Fatalf("expected text entries to pass through untouched")
	}
}
