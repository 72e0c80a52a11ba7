package form

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every ConfigurationError and InvalidPathError.
	ErrConfiguration = errors.New("form: configuration error")
	// ErrConflictingModes is returned when per-field rules and a schema
	// resolver are configured on the same form.
	ErrConflictingModes = errors.New("form: field rules and a resolver cannot be combined")
	// ErrNotReady is returned while default values are still resolving.
	ErrNotReady = errors.New("form: default values are not resolved")
	// ErrSubmitInProgress rejects a submit attempt while another is running.
	ErrSubmitInProgress = errors.New("form: submit already in progress")
	// ErrUnknownField is returned for operations on unregistered paths.
	ErrUnknownField = errors.New("form: unknown field")
	// ErrMinItems is returned when a strict field array would drop below its
	// minimum length.
	ErrMinItems = errors.New("form: field array minimum length reached")
	// ErrIndexOutOfRange is returned for field array indices outside the
	// current items.
	ErrIndexOutOfRange = errors.New("form: field array index out of range")
	// ErrClosed is returned once the form has been closed.
	ErrClosed = errors.New("form: closed")
)

// ConfigurationError reports a fatal registration or setup mistake.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path == "" {
		return fmt.Sprintf("form: configuration: %v", e.Err)
	}
	return fmt.Sprintf("form: configuration for %q: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvalidPathError reports a malformed path or a path whose shape collides
// with an existing registration (for example a leaf used as an array).
type InvalidPathError struct {
	Path string
	Err  error
}

func (e *InvalidPathError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("form: invalid path %q: %v", e.Path, e.Err)
}

func (e *InvalidPathError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *InvalidPathError) Is(target error) bool {
	return target == ErrConfiguration
}

// SubmissionError wraps a failure returned (or panicked) by the submit
// handler.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("form: submit handler: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Resolution stages.
const (
	StageDefaults = "defaults"
	StageResolver = "resolver"
)

// ResolutionError reports a failing default-value supplier or schema
// resolver. A defaults failure leaves the form not ready until a Reload
// succeeds.
type ResolutionError struct {
	Stage string
	Err   error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("form: %s resolution: %v", e.Stage, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func unknownField(path string) error {
	return fmt.Errorf("%w: %q", ErrUnknownField, path)
}
