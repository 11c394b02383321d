package clipboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard command available")

const copyTimeout = 4 * time.Second

// Swapped in tests.
var (
	writeAll    = clipboard.WriteAll
	unsupported = func() bool { return clipboard.Unsupported }
)

// CopyText puts value on the system clipboard. The helper tool is given a
// few seconds; xclip in particular can hang without a display.
func CopyText(ctx context.Context, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if unsupported() {
		return ErrUnavailable
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	write := writeAll
	done := make(chan error, 1)
	go func() {
		done <- write(value)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		return nil
	case <-copyCtx.Done():
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		return copyCtx.Err()
	}
}
