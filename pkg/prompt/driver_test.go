package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/AlecAivazis/survey/v2/terminal"
)

func TestTranslateSurveyErr(t *testing.T) {
	if err := translateSurveyErr(terminal.InterruptErr); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	wrapped := fmt.Errorf("ask: %w", terminal.InterruptErr)
	if err := translateSurveyErr(wrapped); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected wrapped interrupt to map to ErrAborted, got %v", err)
	}
	other := errors.New("boom")
	if err := translateSurveyErr(other); err != other {
		t.Fatalf("expected other errors to pass through, got %v", err)
	}
}

func TestIndexOf(t *testing.T) {
	options := []string{"clipboard", "stdout", "preview"}
	if got := indexOf(options, "preview"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := indexOf(options, "missing"); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}

func TestAdaptValidator(t *testing.T) {
	v := adaptValidator(func(s string) error {
		if s == "" {
			return errors.New("required")
		}
		return nil
	})
	if err := v("x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v(""); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := v(42); err == nil {
		t.Fatalf("expected type error")
	}
}

func TestSurveyDriver_Info(t *testing.T) {
	var buf bytes.Buffer
	d := NewSurveyDriver(WithOutput(&buf))
	if err := d.Info(context.Background(), "hello"); err != nil {
		t.Fatalf("info: %v", err)
	}
	if buf.String() != "hello\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Info(ctx, "late"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestSurveyDriver_SelectWithoutOptions(t *testing.T) {
	if _, err := NewSurveyDriver().Select(context.Background(), SelectConfig{Message: "pick"}); !errors.Is(err, ErrNoOptions) {
		t.Fatalf("expected ErrNoOptions, got %v", err)
	}
}
