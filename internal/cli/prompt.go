package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrInteractiveRequiresTTY = errors.New("interactive mode requires a terminal on stdin; use --duration or --yes")

func (a *appState) waitForEnter(message string) error {
	if !a.interactive() {
		return ErrInteractiveRequiresTTY
	}

	if message != "" {
		if _, err := fmt.Fprintln(a.errWriter(), message); err != nil {
			return err
		}
	}

	_, err := a.reader().ReadString('\n')
	return err
}

// confirm asks a yes/no question; anything but y or yes is a no.
func (a *appState) confirm(question string) (bool, error) {
	if !a.interactive() {
		return false, ErrInteractiveRequiresTTY
	}

	if _, err := fmt.Fprintf(a.errWriter(), "%s [y/N]: ", question); err != nil {
		return false, err
	}

	line, err := a.reader().ReadString('\n')
	if err != nil && !isEOF(err) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
