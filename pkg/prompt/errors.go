package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("prompt: aborted")
	// ErrNoOptions is returned by Select when there is nothing to choose.
	ErrNoOptions = errors.New("prompt: no options")
)
