// Package jsonschema validates whole form snapshots against a JSON Schema
// (draft 2020-12) and reports failures per dotted path.
package jsonschema

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/source"
)

const resourceName = "formstate://schema.json"

var missingProperty = regexp.MustCompile(`['"]([^'"]+)['"]`)

// Resolver implements form.Resolver.
type Resolver struct {
	schema    *jsonschema.Schema
	messages  map[string]string
	keepEmpty bool
}

var _ form.Resolver = (*Resolver)(nil)

// Option configures a Resolver.
type Option func(*Resolver)

// WithMessages overrides error messages. Keys are "path.keyword" (for
// example "username.required") or a bare path that applies to every
// keyword on that path.
func WithMessages(messages map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range messages {
			r.messages[k] = v
		}
	}
}

// WithKeepEmpty validates empty strings as given. By default empty strings
// and nil values are removed from the snapshot first so that "required"
// catches blank inputs.
func WithKeepEmpty() Option {
	return func(r *Resolver) { r.keepEmpty = true }
}

// Compile builds a resolver from a JSON or YAML schema document.
func Compile(data []byte, opts ...Option) (*Resolver, error) {
	data, err := toJSON(data)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(resourceName, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("jsonschema: add resource: %w", err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: compile: %w", err)
	}

	r := &Resolver{schema: schema, messages: make(map[string]string)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Load fetches a schema through loader and compiles it.
func Load(ctx context.Context, loader source.Loader, src source.Source, opts ...Option) (*Resolver, error) {
	if loader == nil || src == nil {
		return nil, errors.New("jsonschema: loader and source are required")
	}
	data, err := loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: load %s: %w", src.Location(), err)
	}
	return Compile(data, opts...)
}

// Resolve validates values and maps every failing leaf to its path. The
// first failure reported for a path wins.
func (r *Resolver) Resolve(ctx context.Context, values map[string]any) (form.FieldErrors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	instance, err := r.normalize(values)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: normalize snapshot: %w", err)
	}

	errs := make(form.FieldErrors)
	err = r.schema.Validate(instance)
	if err == nil {
		return errs, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("jsonschema: validate: %w", err)
	}
	r.collect(verr, errs)
	return errs, nil
}

// normalize round-trips the snapshot through JSON so the validator only sees
// JSON types (time.Time becomes an RFC 3339 string, typed numbers become
// float64).
func (r *Resolver) normalize(values map[string]any) (any, error) {
	if !r.keepEmpty {
		values = pruneEmpty(tree.CloneMap(values))
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) collect(verr *jsonschema.ValidationError, errs form.FieldErrors) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			r.collect(cause, errs)
		}
		return
	}

	keyword := lastSegment(verr.KeywordLocation)
	base := pointerPath(verr.InstanceLocation)
	if keyword == "required" {
		for _, match := range missingProperty.FindAllStringSubmatch(verr.Message, -1) {
			path := joinPath(base, match[1])
			r.add(errs, path, keyword, "field is required")
		}
		return
	}
	r.add(errs, base, keyword, verr.Message)
}

func (r *Resolver) add(errs form.FieldErrors, path, keyword, message string) {
	if path == "" {
		path = form.RootErrorKey
	}
	if _, exists := errs[path]; exists {
		return
	}
	if custom, ok := r.messages[path+"."+keyword]; ok {
		message = custom
	} else if custom, ok := r.messages[path]; ok {
		message = custom
	}
	errs[path] = form.FieldError{Type: keyword, Message: message}
}

// pointerPath converts a JSON pointer ("/phNumbers/0/number") into a dotted
// path.
func pointerPath(pointer string) string {
	clean := strings.Trim(strings.TrimPrefix(strings.TrimSpace(pointer), "#"), "/")
	if clean == "" {
		return ""
	}
	parts := strings.Split(clean, "/")
	for i, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		parts[i] = strings.ReplaceAll(part, "~0", "~")
	}
	return strings.Join(parts, ".")
}

func lastSegment(location string) string {
	location = strings.TrimRight(location, "/")
	if idx := strings.LastIndex(location, "/"); idx >= 0 {
		return location[idx+1:]
	}
	return location
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func pruneEmpty(values map[string]any) map[string]any {
	for key, value := range values {
		switch typed := value.(type) {
		case nil:
			delete(values, key)
		case string:
			if typed == "" {
				delete(values, key)
			}
		case map[string]any:
			values[key] = pruneEmpty(typed)
		case []any:
			for i, item := range typed {
				if m, ok := item.(map[string]any); ok {
					typed[i] = pruneEmpty(m)
				}
			}
		}
	}
	return values
}

// toJSON accepts JSON as is and converts YAML documents to JSON.
func toJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("schema document is empty")
	}
	if trimmed[0] == '{' {
		return trimmed, nil
	}
	var doc any
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml schema: %w", err)
	}
	return json.Marshal(tree.Clone(doc))
}
