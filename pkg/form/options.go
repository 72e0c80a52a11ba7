package form

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects when field validation runs in response to user input.
type Mode string

const (
	ModeOnSubmit  Mode = "onSubmit"
	ModeOnChange  Mode = "onChange"
	ModeOnBlur    Mode = "onBlur"
	ModeOnTouched Mode = "onTouched"
	ModeAll       Mode = "all"
)

// ParseMode accepts the mode names case-insensitively. An empty string
// yields ModeOnSubmit.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "onsubmit":
		return ModeOnSubmit, nil
	case "onchange":
		return ModeOnChange, nil
	case "onblur":
		return ModeOnBlur, nil
	case "ontouched":
		return ModeOnTouched, nil
	case "all":
		return ModeAll, nil
	default:
		return "", fmt.Errorf("form: unknown validation mode %q", raw)
	}
}

// DefaultsSupplier resolves the initial value tree, possibly asynchronously
// (for example from a remote endpoint).
type DefaultsSupplier interface {
	Defaults(ctx context.Context) (map[string]any, error)
}

// DefaultsFunc adapts a function to DefaultsSupplier.
type DefaultsFunc func(ctx context.Context) (map[string]any, error)

// Defaults implements DefaultsSupplier.
func (f DefaultsFunc) Defaults(ctx context.Context) (map[string]any, error) {
	return f(ctx)
}

// Resolver validates the whole snapshot at once, as an alternative to
// per-field rules. It returns the failing paths; an error means the resolver
// itself could not run.
type Resolver interface {
	Resolve(ctx context.Context, values map[string]any) (FieldErrors, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, values map[string]any) (FieldErrors, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, values map[string]any) (FieldErrors, error) {
	return f(ctx, values)
}

// InputFilter rewrites raw user input before coercion, for example to strip
// markup.
type InputFilter func(path string, raw any) any

// Option configures a Form.
type Option func(*config)

type config struct {
	mode           Mode
	reValidateMode Mode
	defaults       map[string]any
	supplier       DefaultsSupplier
	loadCtx        context.Context
	resolver       Resolver
	logger         Logger
	inputFilter    InputFilter
	concurrency    int
}

func defaultConfig() config {
	return config{
		mode:           ModeOnSubmit,
		reValidateMode: ModeOnChange,
		logger:         noopLogger{},
		loadCtx:        context.Background(),
		concurrency:    4,
	}
}

// WithMode sets when validation runs before the first submit.
func WithMode(mode Mode) Option {
	return func(cfg *config) {
		if mode != "" {
			cfg.mode = mode
		}
	}
}

// WithReValidateMode sets when validation runs after the first submit.
func WithReValidateMode(mode Mode) Option {
	return func(cfg *config) {
		if mode != "" {
			cfg.reValidateMode = mode
		}
	}
}

// WithDefaultValues seeds static defaults; the form is ready immediately.
func WithDefaultValues(values map[string]any) Option {
	return func(cfg *config) {
		cfg.defaults = values
		cfg.supplier = nil
	}
}

// WithDefaultsSupplier resolves defaults asynchronously. The form is not
// ready until the supplier returns.
func WithDefaultsSupplier(supplier DefaultsSupplier) Option {
	return func(cfg *config) {
		cfg.supplier = supplier
	}
}

// WithLoadContext sets the context used for the initial defaults resolution.
func WithLoadContext(ctx context.Context) Option {
	return func(cfg *config) {
		if ctx != nil {
			cfg.loadCtx = ctx
		}
	}
}

// WithResolver switches the form to schema mode.
func WithResolver(resolver Resolver) Option {
	return func(cfg *config) {
		cfg.resolver = resolver
	}
}

// WithLogger attaches a logger. Passing nil restores the no-op logger.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithInputFilter installs a filter applied to raw input events.
func WithInputFilter(filter InputFilter) Option {
	return func(cfg *config) {
		cfg.inputFilter = filter
	}
}

// WithValidationConcurrency bounds how many fields are evaluated at once in
// rule mode. Values below one are ignored.
func WithValidationConcurrency(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.concurrency = n
		}
	}
}
