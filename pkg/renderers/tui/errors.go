package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formstate/pkg/form"
)

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrUnknownFormat is returned for unsupported output formats.
	ErrUnknownFormat = errors.New("tui: unknown output format")
)

// InvalidError is returned when the session ends with a form that still
// fails validation, either because the attempts ran out or because the
// remaining errors belong to paths the session cannot prompt for.
type InvalidError struct {
	Errors form.FieldErrors
}

func (e *InvalidError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, path := range e.Errors.Paths() {
		parts = append(parts, fmt.Sprintf("%s: %s", path, e.Errors[path].Message))
	}
	return "tui: form is invalid: " + strings.Join(parts, "; ")
}
