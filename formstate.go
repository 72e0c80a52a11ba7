// Package formstate is the top-level entry point: it re-exports the form
// tracker and wires the loaders, definitions and default-value suppliers
// that live in sub-packages.
package formstate

import (
	"context"
	"errors"
	"fmt"

	internalsource "github.com/goliatone/go-formstate/internal/source"
	"github.com/goliatone/go-formstate/pkg/defaults"
	"github.com/goliatone/go-formstate/pkg/definition"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/resolver/jsonschema"
	"github.com/goliatone/go-formstate/pkg/source"
)

// Form aliases form.Form.
type Form = form.Form

// Option aliases form.Option.
type Option = form.Option

// State aliases form.State.
type State = form.State

// Definition aliases definition.Definition.
type Definition = definition.Definition

// New creates a form; see form.New.
func New(opts ...Option) (*Form, error) {
	return form.New(opts...)
}

// NewLoader constructs a source loader using the internal implementation
// while keeping the concrete type hidden from consumers.
func NewLoader(options ...source.LoaderOption) source.Loader {
	cfg := source.NewLoaderOptions(options...)
	return internalsource.New(cfg)
}

// LoadDefinition reads a form definition through loader. When operationID
// is set the source is treated as an OpenAPI document and the definition is
// derived from that operation's request body.
func LoadDefinition(ctx context.Context, loader source.Loader, src source.Source, operationID string, opts ...definition.Option) (*Definition, error) {
	if loader == nil || src == nil {
		return nil, errors.New("formstate: loader and source are required")
	}
	if operationID == "" {
		return definition.Load(ctx, loader, src, opts...)
	}
	data, err := loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("formstate: load %s: %w", src.Location(), err)
	}
	return definition.FromOpenAPI(ctx, data, operationID, opts...)
}

// WithDefaultsFrom resolves the form's default values from a JSON or YAML
// document behind src.
func WithDefaultsFrom(loader source.Loader, src source.Source, opts ...defaults.Option) Option {
	return form.WithDefaultsSupplier(defaults.FromSource(loader, src, opts...))
}

// WithSchemaFrom loads a JSON Schema and returns an option that installs it
// as the form's resolver.
func WithSchemaFrom(ctx context.Context, loader source.Loader, src source.Source, opts ...jsonschema.Option) (Option, error) {
	resolver, err := jsonschema.Load(ctx, loader, src, opts...)
	if err != nil {
		return nil, err
	}
	return form.WithResolver(resolver), nil
}
