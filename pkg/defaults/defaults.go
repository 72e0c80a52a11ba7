// Package defaults provides default-value suppliers for forms: static
// trees, functions, and documents loaded from files, fs.FS or HTTP.
package defaults

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/source"
)

// Supplier resolves a default value tree.
type Supplier = form.DefaultsSupplier

// Format names a document encoding.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Transform reshapes a decoded document into form values.
type Transform func(map[string]any) (map[string]any, error)

// Static returns a supplier that always yields a copy of values.
func Static(values map[string]any) Supplier {
	return form.DefaultsFunc(func(context.Context) (map[string]any, error) {
		return tree.CloneMap(values), nil
	})
}

// Option configures a document supplier.
type Option func(*documentSupplier)

// WithFormat forces the document encoding instead of guessing it.
func WithFormat(format Format) Option {
	return func(s *documentSupplier) { s.format = format }
}

// WithRoot selects the subtree at path as the defaults, for APIs that wrap
// payloads (for example "data").
func WithRoot(path string) Option {
	return func(s *documentSupplier) { s.root = path }
}

// WithTransform post-processes the decoded document.
func WithTransform(fn Transform) Option {
	return func(s *documentSupplier) { s.transform = fn }
}

type documentSupplier struct {
	loader    source.Loader
	src       source.Source
	format    Format
	root      string
	transform Transform
}

// FromSource loads defaults from src through loader.
func FromSource(loader source.Loader, src source.Source, opts ...Option) Supplier {
	s := &documentSupplier{loader: loader, src: src}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Defaults implements form.DefaultsSupplier.
func (s *documentSupplier) Defaults(ctx context.Context) (map[string]any, error) {
	if s.loader == nil {
		return nil, errors.New("defaults: loader is nil")
	}
	if s.src == nil {
		return nil, errors.New("defaults: source is nil")
	}
	data, err := s.loader.Load(ctx, s.src)
	if err != nil {
		return nil, fmt.Errorf("defaults: load %s: %w", s.src.Location(), err)
	}

	format := s.format
	if format == FormatAuto {
		format = Detect(s.src.Location(), data)
	}
	values, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("defaults: decode %s: %w", s.src.Location(), err)
	}

	if s.root != "" {
		p, err := fieldpath.Parse(s.root)
		if err != nil {
			return nil, fmt.Errorf("defaults: root: %w", err)
		}
		sub, ok := tree.Get(values, p.Segments())
		if !ok {
			return nil, fmt.Errorf("defaults: root %q not found", s.root)
		}
		values, ok = sub.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("defaults: root %q is not an object", s.root)
		}
	}

	if s.transform != nil {
		return s.transform(values)
	}
	return values, nil
}

// Detect guesses the encoding from the location extension, falling back to
// the first non-space byte.
func Detect(location string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// Decode parses data into a value tree. The top level must be an object.
func Decode(data []byte, format Format) (map[string]any, error) {
	var raw any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		raw = normalizeNumbers(raw)
	case FormatYAML, FormatAuto:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	values, ok := tree.Clone(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root must be an object, got %T", raw)
	}
	return values, nil
}

// normalizeNumbers turns json.Number into int64 when integral, float64
// otherwise.
func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for k, v := range typed {
			typed[k] = normalizeNumbers(v)
		}
		return typed
	case []any:
		for i, v := range typed {
			typed[i] = normalizeNumbers(v)
		}
		return typed
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}
		f, _ := typed.Float64()
		return f
	default:
		return value
	}
}
