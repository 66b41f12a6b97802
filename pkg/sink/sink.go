// Package sink delivers generated text to its destination: a writer, the
// system clipboard, a file or an HTML preview page.
package sink

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a sink name is not registered.
var ErrNotFound = errors.New("sink: not found")

// Sink receives the final substituted output.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, output string) error
}

// Func adapts a function into a Sink.
type Func struct {
	SinkName string
	Fn       func(ctx context.Context, output string) error
}

func (f Func) Name() string { return f.SinkName }

func (f Func) Deliver(ctx context.Context, output string) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx, output)
}
