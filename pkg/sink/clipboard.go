package sink

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
)

// ClipboardName is the registry name of the clipboard sink.
const ClipboardName = "clipboard"

// swapped in tests
var clipboardWriteAll = clipboard.WriteAll

// Clipboard copies output to the system clipboard.
type Clipboard struct{}

func NewClipboard() Clipboard { return Clipboard{} }

func (Clipboard) Name() string { return ClipboardName }

func (Clipboard) Deliver(ctx context.Context, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := clipboardWriteAll(output); err != nil {
		return fmt.Errorf("sink: clipboard: %w", err)
	}
	return nil
}
