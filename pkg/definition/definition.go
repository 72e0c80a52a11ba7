// Package definition describes forms declaratively. A Definition lists the
// fields, field arrays, validation modes and default values of a form and
// builds a ready-to-use *form.Form from them. Definitions are parsed from
// YAML (or JSON) documents, or derived from the request body of an OpenAPI
// operation.
package definition

import (
	"fmt"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/rules"
)

// Input hints how a view layer should collect a field's value.
type Input string

const (
	InputText     Input = "text"
	InputPassword Input = "password"
	InputTextArea Input = "textarea"
	InputConfirm  Input = "confirm"
	InputSelect   Input = "select"
)

// Field is a single registered input.
type Field struct {
	// Path is the dotted field path. Inside an Array it is relative to the
	// item; an empty path addresses scalar items.
	Path    string
	Label   string
	Help    string
	Input   Input
	Options []string
	Rules   rules.Rules
}

// Prompt returns the label, falling back to the path.
func (f Field) Prompt() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Path
}

// Array is a dynamic list of repeated field groups.
type Array struct {
	Name     string
	Label    string
	MinItems int
	Strict   bool
	Items    []Field
}

// Prompt returns the label, falling back to the array name.
func (a Array) Prompt() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Name
}

// Definition is a declarative form.
type Definition struct {
	ID             string
	Title          string
	Description    string
	Mode           form.Mode
	ReValidateMode form.Mode
	Defaults       map[string]any
	Fields         []Field
	Arrays         []Array
}

// Build creates a form from the definition. opts are applied after the
// definition's own settings, so callers can override modes or replace the
// static defaults with a supplier.
func (d *Definition) Build(opts ...form.Option) (*form.Form, error) {
	if d == nil {
		return nil, fmt.Errorf("definition: build: definition is nil")
	}

	base := []form.Option{
		form.WithMode(d.Mode),
		form.WithReValidateMode(d.ReValidateMode),
	}
	if d.Defaults != nil {
		base = append(base, form.WithDefaultValues(tree.CloneMap(d.Defaults)))
	}
	f, err := form.New(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("definition: build %s: %w", d.ID, err)
	}

	for _, field := range d.Fields {
		if _, err := f.Register(field.Path, field.Rules); err != nil {
			f.Close()
			return nil, fmt.Errorf("definition: build %s: %w", d.ID, err)
		}
	}
	for _, array := range d.Arrays {
		arrayOpts := []form.ArrayOption{form.WithMinItems(array.MinItems)}
		if array.Strict {
			arrayOpts = append(arrayOpts, form.WithStrictMinItems())
		}
		for _, item := range array.Items {
			arrayOpts = append(arrayOpts, form.WithItemRules(item.Path, item.Rules))
		}
		if _, err := f.FieldArray(array.Name, arrayOpts...); err != nil {
			f.Close()
			return nil, fmt.Errorf("definition: build %s: %w", d.ID, err)
		}
	}
	return f, nil
}

// Field looks up a top-level field by path.
func (d *Definition) Field(path string) (Field, bool) {
	if d == nil {
		return Field{}, false
	}
	for _, field := range d.Fields {
		if field.Path == path {
			return field, true
		}
	}
	return Field{}, false
}
