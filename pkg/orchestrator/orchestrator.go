package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/goliatone/go-varsub/pkg/cache"
	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/reacquire"
	"github.com/goliatone/go-varsub/pkg/resolver"
	"github.com/goliatone/go-varsub/pkg/sink"
	"github.com/goliatone/go-varsub/pkg/template"
	"github.com/goliatone/go-varsub/pkg/variable"
)

const defaultSinkName = "stdout"

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithRegistry shares a handle registry with the caller.
func WithRegistry(registry *handle.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithHost supplies the host used to reacquire missing handles.
func WithHost(host handle.Host) Option {
	return func(o *Orchestrator) {
		o.host = host
	}
}

// WithCache shares a content cache.
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// WithLogger sets the logger passed to every stage.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithResolveOptions overrides resolver.DefaultOptions for every request.
func WithResolveOptions(opts resolver.Options) Option {
	return func(o *Orchestrator) {
		o.resolveOpts = opts
	}
}

// WithSinkRegistry injects the sinks available to requests.
func WithSinkRegistry(registry *sink.Registry) Option {
	return func(o *Orchestrator) {
		o.sinks = registry
	}
}

// WithDefaultSink names the sink used when a request omits one. An empty
// name disables delivery for such requests.
func WithDefaultSink(name string) Option {
	return func(o *Orchestrator) {
		o.defaultSink = name
	}
}

// WithSubstituter overrides the substitution policy.
func WithSubstituter(s *template.Substituter) Option {
	return func(o *Orchestrator) {
		o.substituter = s
	}
}

// Orchestrator runs the generate pipeline. Registry and cache are shared
// across requests so handles and recent reads survive between calls.
type Orchestrator struct {
	registry    *handle.Registry
	cache       *cache.Cache
	host        handle.Host
	sinks       *sink.Registry
	defaultSink string
	resolveOpts resolver.Options
	substituter *template.Substituter
	logger      *zap.Logger

	resolver  *resolver.Resolver
	reacquire *reacquire.Flow
}

// New constructs an Orchestrator. Missing dependencies get built-in
// defaults: a fresh registry and cache, and stdout plus clipboard sinks.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		defaultSink: defaultSinkName,
		resolveOpts: resolver.DefaultOptions(),
		logger:      zap.NewNop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}

	if o.registry == nil {
		o.registry = handle.NewRegistry()
	}
	if o.cache == nil {
		o.cache = cache.New(cache.WithLogger(o.logger))
	}
	if o.sinks == nil {
		o.sinks = sink.NewRegistry(sink.NewWriter(defaultSinkName, os.Stdout), sink.NewClipboard())
	}
	if o.substituter == nil {
		o.substituter = template.NewSubstituter()
	}
	o.resolver = resolver.New(o.registry,
		resolver.WithCache(o.cache),
		resolver.WithLogger(o.logger),
	)
	if o.host != nil {
		o.reacquire = reacquire.New(o.registry, o.host, reacquire.WithLogger(o.logger))
	}
	return o
}

// Registry returns the shared handle registry.
func (o *Orchestrator) Registry() *handle.Registry { return o.registry }

// Sinks returns the sink registry.
func (o *Orchestrator) Sinks() *sink.Registry { return o.sinks }

// Request describes one generation.
type Request struct {
	// Template is the source text with {{name}} placeholders.
	Template string
	// Variables are resolved in place; callers see the updated entries.
	Variables []*variable.Variable
	// Explicit values take priority over variables.
	Explicit map[string]template.Explicit
	// Sink overrides the default sink.
	Sink string
	// Reacquire prompts through the host for references whose handle is
	// missing before resolving.
	Reacquire bool
	// Options overrides the orchestrator resolve options for this request.
	Options *resolver.Options
}

// Result is the outcome of a generation.
type Result struct {
	Output string
	Report resolver.Report
	// Unresolved lists placeholders left intact in Output.
	Unresolved []string
	// Sink is the name of the sink that received Output, if any.
	Sink string
}

// Generate parses the template, resolves the variables it references,
// substitutes and delivers the output. Entry failures do not fail the call;
// they are carried in Result.Report and rendered into the output.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (Result, error) {
	if ctx == nil {
		return Result{}, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tmpl, err := template.Parse(req.Template)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: parse template: %w", err)
	}
	if err := template.ValidateVariables(req.Variables); err != nil {
		return Result{}, fmt.Errorf("orchestrator: %w", err)
	}

	used := referenced(tmpl, req.Variables, req.Explicit)

	if req.Reacquire {
		if err := o.reacquireMissing(ctx, used); err != nil {
			return Result{}, err
		}
	}

	opts := o.resolveOpts
	if req.Options != nil {
		opts = *req.Options
	}
	report, err := o.resolver.Resolve(ctx, used, opts)
	if err != nil {
		return Result{}, err
	}
	if !report.Success() {
		o.logger.Warn("some entries failed to resolve", zap.Int("failed", report.Count(resolver.StatusFailed)))
	}

	output, unresolved := o.substituter.Apply(tmpl, req.Explicit, req.Variables)
	result := Result{Output: output, Report: report, Unresolved: unresolved}
	if len(unresolved) > 0 {
		o.logger.Info("placeholders left unresolved", zap.Strings("names", unresolved))
	}

	target, err := o.sinkFor(req.Sink)
	if err != nil {
		return result, err
	}
	if target == nil {
		return result, nil
	}
	if err := target.Deliver(ctx, output); err != nil {
		return result, fmt.Errorf("orchestrator: deliver to %s: %w", target.Name(), err)
	}
	result.Sink = target.Name()
	return result, nil
}

func (o *Orchestrator) reacquireMissing(ctx context.Context, vars []*variable.Variable) error {
	if o.reacquire == nil {
		return errors.New("orchestrator: reacquire requires a host")
	}
	rebound, err := o.reacquire.Reacquire(ctx, vars)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		o.logger.Warn("reacquire incomplete", zap.Error(err))
	}
	if rebound {
		o.logger.Debug("handles reacquired")
	}
	return nil
}

func (o *Orchestrator) sinkFor(name string) (sink.Sink, error) {
	target := name
	if target == "" {
		target = o.defaultSink
	}
	if target == "" {
		return nil, nil
	}
	s, err := o.sinks.Get(target)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: sink %q: %w", target, err)
	}
	return s, nil
}

// referenced returns the variables named by the template, skipping names
// satisfied by a valid explicit value. Nothing else is read.
func referenced(tmpl *template.Template, vars []*variable.Variable, explicit map[string]template.Explicit) []*variable.Variable {
	names := make(map[string]struct{})
	for _, name := range tmpl.Names() {
		if e, ok := explicit[name]; ok && e.Valid {
			continue
		}
		names[name] = struct{}{}
	}
	var out []*variable.Variable
	for _, v := range vars {
		if v == nil {
			continue
		}
		if _, ok := names[v.Name]; ok {
			out = append(out, v)
		}
	}
	return out
}
