// Package cli contains the cobra commands of the guild binary. Commands are
// thin translators: they parse flags, call a primary port via wire, and
// render the result.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/example/guild/internal/fault"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
	failMark = color.New(color.FgRed).Sprint("✗")
)

// renderedError marks an error as already printed, so main does not print
// it a second time.
type renderedError struct{ err error }

func (e renderedError) Error() string { return e.err.Error() }
func (e renderedError) Unwrap() error { return e.err }

// IsRendered reports whether the error was already printed by renderError.
func IsRendered(err error) bool {
	var re renderedError
	return errors.As(err, &re)
}

// renderError prints one failure line with its machine-parseable kind, so
// both humans and agent workers can act on it.
func renderError(err error) error {
	fmt.Fprintf(os.Stderr, "%s [%s] %v\n", failMark, fault.Kind(err), err)

	// structured errors carry enough detail for the caller to self-correct
	var te *fault.TransitionError
	if errors.As(err, &te) && len(te.Allowed) > 0 {
		fmt.Fprintf(os.Stderr, "  allowed next: %s\n", strings.Join(te.Allowed, ", "))
	}
	var we *fault.WorkspaceError
	if errors.As(err, &we) {
		fmt.Fprintf(os.Stderr, "  missing: %s\n", strings.Join(we.Missing, ", "))
	}
	return renderedError{err: err}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
