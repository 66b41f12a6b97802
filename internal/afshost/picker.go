package afshost

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/afs"

	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/prompt"
)

// Choices offered when a suggested location is still present.
const (
	choiceUseSuggested = iota
	choiceOther
	choiceSkip
)

// driverPicker asks for a location through a prompt driver and checks that
// it exists before accepting it. A suggested location that still exists is
// offered as a choice first; a vanished one is reported before asking.
type driverPicker struct {
	driver prompt.Driver
	fs     afs.Service
}

func (p *driverPicker) Pick(ctx context.Context, opts handle.PickOptions) ([]string, error) {
	message := opts.Title
	if message == "" {
		message = "Select a " + string(opts.Kind)
	}

	suggested := strings.TrimSpace(opts.SuggestedPath)
	if suggested != "" {
		ok, err := p.fs.Exists(ctx, location(suggested))
		if err != nil {
			return nil, err
		}
		if ok {
			choice, err := p.driver.Select(ctx, prompt.SelectConfig{
				Message: message,
				Options: []string{"Use " + suggested, "Choose another location", "Skip"},
			})
			if err != nil {
				return nil, err
			}
			switch choice {
			case choiceUseSuggested:
				return []string{suggested}, nil
			case choiceSkip:
				return nil, handle.ErrPickCancelled
			}
		} else if err := p.driver.Info(ctx, suggested+" is no longer available"); err != nil {
			return nil, err
		}
	}

	answer, err := p.driver.Input(ctx, prompt.InputConfig{
		Message: message,
		Help:    "Enter a path or afs URL. Leave empty to skip.",
		Validator: func(value string) error {
			value = strings.TrimSpace(value)
			if value == "" {
				return nil
			}
			ok, err := p.fs.Exists(ctx, location(value))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s does not exist", value)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, handle.ErrPickCancelled
	}
	return []string{answer}, nil
}

func driverConsent(d prompt.Driver) Consent {
	return func(ctx context.Context, loc string, mode handle.Mode) (bool, error) {
		verb := "read"
		if mode == handle.ModeReadWrite {
			verb = "read and write"
		}
		ok, err := d.Confirm(ctx, prompt.ConfirmConfig{
			Message: fmt.Sprintf("Allow varsub to %s %s?", verb, loc),
		})
		if errors.Is(err, prompt.ErrAborted) {
			return false, nil
		}
		return ok, err
	}
}

// AcceptSuggested picks the suggested location without asking. Stored paths
// are rebound as-is; permission is still checked per location.
var AcceptSuggested = PickerFunc(func(_ context.Context, opts handle.PickOptions) ([]string, error) {
	if strings.TrimSpace(opts.SuggestedPath) == "" {
		return nil, handle.ErrPickCancelled
	}
	return []string{opts.SuggestedPath}, nil
})
