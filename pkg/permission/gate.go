// Package permission verifies read consent on capability handles. A denial is
// final for the current attempt: the gate never re-prompts on its own, and
// recovery is left to the reacquisition flow.
package permission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-varsub/pkg/handle"
)

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for consent outcomes.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Gate verifies or requests consent.
type Gate struct {
	logger *zap.Logger
}

// New constructs a Gate.
func New(options ...Option) *Gate {
	g := &Gate{logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(g)
	}
	return g
}

// Verify queries the permission state and requests it once when the host
// answers "prompt".
func (g *Gate) Verify(ctx context.Context, h handle.Handle, mode handle.Mode) (handle.PermissionState, error) {
	if h == nil {
		return handle.PermissionDenied, handle.ErrInvalidHandle
	}
	if mode == "" {
		mode = handle.ModeRead
	}

	state, err := h.QueryPermission(ctx, mode)
	if err != nil {
		return handle.PermissionDenied, fmt.Errorf("permission: query %s: %w", h.Name(), err)
	}
	if state == handle.PermissionGranted {
		return state, nil
	}
	if state == handle.PermissionPrompt {
		state, err = h.RequestPermission(ctx, mode)
		if err != nil {
			return handle.PermissionDenied, fmt.Errorf("permission: request %s: %w", h.Name(), err)
		}
		if state == handle.PermissionGranted {
			g.logger.Debug("permission granted", zap.String("handle", h.Name()))
			return state, nil
		}
	}

	g.logger.Debug("permission denied", zap.String("handle", h.Name()), zap.String("state", string(state)))
	return handle.PermissionDenied, fmt.Errorf("%w: %s", handle.ErrPermissionDenied, h.Name())
}

// Granted is Verify reduced to a boolean.
func (g *Gate) Granted(ctx context.Context, h handle.Handle, mode handle.Mode) bool {
	state, err := g.Verify(ctx, h, mode)
	return err == nil && state == handle.PermissionGranted
}

// VerifyAny succeeds as soon as one handle is confirmed accessible. Handles
// after the first success are not checked; the ones that stay unreachable fail
// individually when they are read.
func (g *Gate) VerifyAny(ctx context.Context, handles []handle.Handle, mode handle.Mode) (bool, error) {
	var errs []error
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if h == nil {
			continue
		}
		_, err := g.Verify(ctx, h, mode)
		if err == nil {
			return true, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return false, handle.ErrInvalidHandle
	}
	return false, errors.Join(errs...)
}
