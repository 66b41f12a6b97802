// Package varsub resolves file references held in named variables and
// substitutes them into {{placeholder}} templates. The root package exposes
// the common entry points; pkg/ holds the building blocks.
package varsub

import (
	"context"

	"github.com/goliatone/go-varsub/pkg/orchestrator"
	"github.com/goliatone/go-varsub/pkg/template"
	"github.com/goliatone/go-varsub/pkg/variable"
)

// Variable is a named list of entries.
type Variable = variable.Variable

// Entry is one text, file or directory value source.
type Entry = variable.Entry

// Explicit is a caller supplied placeholder value.
type Explicit = template.Explicit

// Request and Result alias the orchestrator types.
type (
	Request = orchestrator.Request
	Result  = orchestrator.Result
)

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// Render resolves the variables src references and returns the substituted
// text. Output is not delivered anywhere unless options name a default sink.
func Render(ctx context.Context, src string, vars []*Variable, options ...orchestrator.Option) (Result, error) {
	opts := append([]orchestrator.Option{orchestrator.WithDefaultSink("")}, options...)
	return orchestrator.New(opts...).Generate(ctx, orchestrator.Request{
		Template:  src,
		Variables: vars,
	})
}

// Substitute replaces placeholders using values that are already resolved.
// It performs no I/O.
func Substitute(src string, explicit map[string]Explicit, vars []*Variable) string {
	return template.Substitute(src, explicit, vars)
}
