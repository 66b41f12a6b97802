package handle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHandle signals a missing, empty or wrong-kind capability.
	ErrInvalidHandle = errors.New("handle: invalid handle")
	// ErrPermissionDenied signals the host refused access.
	ErrPermissionDenied = errors.New("handle: permission denied")
	// ErrPickCancelled signals the user dismissed a pick prompt.
	ErrPickCancelled = errors.New("handle: pick cancelled")
)

func wrongKind(h Handle, want Kind) error {
	return fmt.Errorf("%w: %s is a %s, want %s", ErrInvalidHandle, h.Name(), h.Kind(), want)
}
