package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
	afsurl "github.com/viant/afs/url"

	"github.com/goliatone/go-varsub/pkg/cache"
	"github.com/goliatone/go-varsub/pkg/orchestrator"
	"github.com/goliatone/go-varsub/pkg/sink"
	"github.com/goliatone/go-varsub/pkg/template"
	"github.com/goliatone/go-varsub/pkg/variable"
)

type renderFlags struct {
	inline     string
	stored     string
	vars       []string
	sink       string
	out        string
	title      string
	noWrap     bool
	maxSize    string
	sequential bool
	recursive  bool
	join       string
}

func newRenderCmd(a *app) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render [template-file|-]",
		Short: "Render a template file, a stored template or inline text",
		Example: `  varsub render notes.tmpl
  varsub render -t weekly --var week=42 --sink clipboard
  echo 'Hi {{name:you}}' | varsub render -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd, f, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.inline, "eval", "e", "", "inline template text")
	flags.StringVarP(&f.stored, "template", "t", "", "stored template name")
	flags.StringArrayVar(&f.vars, "var", nil, "explicit value, name=value (repeatable)")
	flags.StringVar(&f.sink, "sink", "", "output sink: stdout, clipboard, preview or file")
	flags.StringVarP(&f.out, "out", "o", "", "write output to this path or afs URL")
	flags.StringVar(&f.title, "title", "", "page title for the preview sink")
	flags.BoolVar(&f.noWrap, "no-wrap", false, "insert file contents without tags")
	flags.StringVar(&f.maxSize, "max-size", "", "largest file to read, e.g. 2MiB")
	flags.BoolVar(&f.sequential, "sequential", false, "resolve files one at a time")
	flags.BoolVar(&f.recursive, "recursive", false, "expand directory variables")
	flags.StringVar(&f.join, "join", "", `insert every resolved file of a variable, separated by this text ("\n" for newlines)`)
	return cmd
}

func (a *app) render(cmd *cobra.Command, f *renderFlags, args []string) error {
	ctx := cmd.Context()

	src, err := a.templateSource(ctx, f, args)
	if err != nil {
		return err
	}
	explicit, err := parseAssignments(f.vars)
	if err != nil {
		return err
	}

	opts, err := a.cfg.ResolveOptions()
	if err != nil {
		return err
	}
	if f.noWrap {
		opts.WrapInTags = false
	}
	if f.maxSize != "" {
		n, err := humanize.ParseBytes(f.maxSize)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid --max-size %q", f.maxSize)
		}
		opts.MaxFileSize = int64(n)
	}
	if f.sequential {
		opts.Sequential = true
	}
	if f.recursive {
		opts.Recursive.Enabled = true
	}

	stored, err := a.store.Variables().List(ctx)
	if err != nil {
		return err
	}
	vars := make([]*variable.Variable, len(stored))
	for i := range stored {
		vars[i] = &stored[i]
	}

	cacheOpts, err := a.cfg.CacheOptions()
	if err != nil {
		return err
	}
	sinks := sink.NewRegistry(
		sink.NewWriter("stdout", cmd.OutOrStdout()),
		sink.NewClipboard(),
		sink.NewPreview(cmd.OutOrStdout(), f.title),
	)
	sinkName := f.sink
	if f.out != "" {
		sinks.MustRegister(sink.NewFile(nil, f.out))
		if sinkName == "" {
			sinkName = sink.FileName
		}
	}
	if sinkName == "" {
		sinkName = a.cfg.Sink
	}

	substituter := template.NewSubstituter()
	if cmd.Flags().Changed("join") {
		substituter = template.NewSubstituter(template.WithJoinResolved(separatorEscapes.Replace(f.join)))
	}

	gen := orchestrator.New(
		orchestrator.WithSubstituter(substituter),
		orchestrator.WithHost(a.host()),
		orchestrator.WithCache(cache.New(append(cacheOpts, cache.WithLogger(a.logger))...)),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithResolveOptions(opts),
		orchestrator.WithSinkRegistry(sinks),
		orchestrator.WithDefaultSink(sinkName),
	)
	result, err := gen.Generate(ctx, orchestrator.Request{
		Template:  src,
		Variables: vars,
		Explicit:  explicit,
		Reacquire: true,
	})
	if err != nil {
		return err
	}

	for _, failure := range result.Report.Failures() {
		fmt.Fprintf(a.errOut, "warning: %v\n", failure.Err)
	}
	if len(result.Unresolved) > 0 {
		fmt.Fprintf(a.errOut, "warning: unresolved placeholders: %s\n", strings.Join(result.Unresolved, ", "))
	}
	switch result.Sink {
	case sink.ClipboardName:
		fmt.Fprintln(a.errOut, "copied to clipboard")
	case sink.FileName:
		fmt.Fprintf(a.errOut, "written to %s\n", f.out)
	}
	return nil
}

var separatorEscapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t")

func (a *app) templateSource(ctx context.Context, f *renderFlags, args []string) (string, error) {
	switch {
	case f.inline != "":
		return f.inline, nil
	case f.stored != "":
		tmpl, err := a.store.Templates().GetByName(ctx, f.stored)
		if err != nil {
			return "", err
		}
		return tmpl.Body, nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(a.in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return readLocation(ctx, args[0])
	default:
		return "", fmt.Errorf("a template file, --template or --eval is required")
	}
}

// readLocation reads a plain path or any afs URL.
func readLocation(ctx context.Context, raw string) (string, error) {
	loc := raw
	if afsurl.Scheme(raw, "") == "" {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return "", err
		}
		loc = afsurl.ToFileURL(abs)
	}
	data, err := afs.New().DownloadWithURL(ctx, loc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", raw, err)
	}
	return string(data), nil
}

func parseAssignments(pairs []string) (map[string]template.Explicit, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]template.Explicit, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok {
			return nil, fmt.Errorf("invalid --var %q: expected name=value", pair)
		}
		if err := template.ValidateName(name); err != nil {
			return nil, fmt.Errorf("invalid --var %q: %w", pair, err)
		}
		out[name] = template.Explicit{Value: value, Valid: true}
	}
	return out, nil
}
