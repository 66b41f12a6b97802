package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Writer prints output to an io.Writer, terminating it with a newline.
type Writer struct {
	name string
	mu   sync.Mutex
	w    io.Writer
}

// NewWriter returns a sink named name that writes to w.
func NewWriter(name string, w io.Writer) *Writer {
	return &Writer{name: name, w: w}
}

func (s *Writer) Name() string { return s.name }

func (s *Writer) Deliver(ctx context.Context, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, output); err != nil {
		return fmt.Errorf("sink: %s: %w", s.name, err)
	}
	return nil
}
