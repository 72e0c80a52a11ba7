package definition

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/rules"
)

// extensionKey carries form hints on operations (mode, reValidateMode) and on
// properties (label, help, input, validate).
const extensionKey = "x-formstate"

var requestMediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

// FromOpenAPI derives a definition from the request body of an operation.
// operationID matches the operation's operationId, or "<method>:<path>"
// (lowercase method) for operations without one.
//
// Object properties become fields (nested objects flatten into dotted
// paths), arrays become field arrays, `required` lists and string, number
// and format constraints become rules, and property defaults become the
// form defaults.
func FromOpenAPI(ctx context.Context, data []byte, operationID string, opts ...Option) (*Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	cfg := newConfig(opts)

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("definition: load openapi document: %w", err)
	}

	op, err := findOperation(doc, operationID)
	if err != nil {
		return nil, err
	}
	body, err := requestSchema(op)
	if err != nil {
		return nil, fmt.Errorf("definition: operation %q: %w", operationID, err)
	}

	def := &Definition{
		ID:          operationID,
		Title:       op.Summary,
		Description: op.Description,
		Mode:        form.ModeOnSubmit,
	}
	hints := extension(op.Extensions)
	if raw, ok := hints["mode"].(string); ok {
		if def.Mode, err = form.ParseMode(raw); err != nil {
			return nil, fmt.Errorf("definition: operation %q: %w", operationID, err)
		}
	}
	if raw, ok := hints["reValidateMode"].(string); ok {
		if def.ReValidateMode, err = form.ParseMode(raw); err != nil {
			return nil, fmt.Errorf("definition: operation %q: %w", operationID, err)
		}
	}

	w := &schemaWalker{
		cfg:      cfg,
		fields:   &def.Fields,
		arrays:   &def.Arrays,
		defaults: make(map[string]any),
		visiting: make(map[*openapi3.Schema]bool),
	}
	if err := w.object(body, nil); err != nil {
		return nil, fmt.Errorf("definition: operation %q: %w", operationID, err)
	}
	if len(w.defaults) > 0 {
		def.Defaults = w.defaults
	}
	return def, nil
}

func findOperation(doc *openapi3.T, operationID string) (*openapi3.Operation, error) {
	if doc.Paths != nil {
		paths := doc.Paths.Map()
		names := make([]string, 0, len(paths))
		for name := range paths {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			item := paths[name]
			if item == nil {
				continue
			}
			for method, op := range item.Operations() {
				if op == nil {
					continue
				}
				if op.OperationID == operationID || strings.ToLower(method)+":"+name == operationID {
					return op, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("definition: operation %q not found", operationID)
}

func requestSchema(op *openapi3.Operation) (*openapi3.Schema, error) {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil, fmt.Errorf("no request body")
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range requestMediaTypes {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value, nil
		}
	}
	mediaTypes := make([]string, 0, len(content))
	for mediaType := range content {
		mediaTypes = append(mediaTypes, mediaType)
	}
	sort.Strings(mediaTypes)
	for _, mediaType := range mediaTypes {
		if mt := content[mediaType]; mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value, nil
		}
	}
	return nil, fmt.Errorf("request body has no schema")
}

type schemaWalker struct {
	cfg      config
	fields   *[]Field
	arrays   *[]Array
	defaults map[string]any
	visiting map[*openapi3.Schema]bool
	inArray  bool
}

func (w *schemaWalker) object(s *openapi3.Schema, prefix []string) error {
	if w.visiting[s] {
		return fmt.Errorf("recursive schema at %q", strings.Join(prefix, "."))
	}
	w.visiting[s] = true
	defer delete(w.visiting, s)

	properties, required := flatten(s)
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := properties[name]
		segments := append(append([]string(nil), prefix...), name)
		path := strings.Join(segments, ".")

		if prop.Default != nil && w.defaults != nil {
			if err := tree.Set(w.defaults, segments, tree.Clone(prop.Default)); err != nil {
				return fmt.Errorf("default for %q: %w", path, err)
			}
		}

		switch {
		case hasType(prop, "object") || (prop.Type == nil && len(prop.Properties) > 0):
			if err := w.object(prop, segments); err != nil {
				return err
			}
		case hasType(prop, "array"):
			if err := w.array(prop, path, name); err != nil {
				return err
			}
		default:
			field, err := scalarField(w.cfg, path, name, prop, required[name])
			if err != nil {
				return err
			}
			*w.fields = append(*w.fields, field)
		}
	}
	return nil
}

func (w *schemaWalker) array(s *openapi3.Schema, path, name string) error {
	if w.inArray {
		return fmt.Errorf("nested array %q is not supported", path)
	}
	array := Array{
		Name:     path,
		Label:    labelFor(s, name),
		MinItems: int(s.MinItems),
	}
	if s.Items != nil && s.Items.Value != nil {
		items := s.Items.Value
		if hasType(items, "object") || len(items.Properties) > 0 {
			sub := &schemaWalker{
				cfg:      w.cfg,
				fields:   &array.Items,
				visiting: w.visiting,
				inArray:  true,
			}
			if err := sub.object(items, nil); err != nil {
				return err
			}
		} else {
			item, err := scalarField(w.cfg, "", name, items, false)
			if err != nil {
				return err
			}
			array.Items = append(array.Items, item)
		}
	}
	*w.arrays = append(*w.arrays, array)
	return nil
}

func scalarField(cfg config, path, name string, s *openapi3.Schema, required bool) (Field, error) {
	field := Field{
		Path:  path,
		Label: labelFor(s, name),
		Help:  s.Description,
		Input: InputText,
	}
	r := rules.Rules{Disabled: s.ReadOnly}
	if required {
		r.Required = &rules.Required{}
	}

	switch {
	case hasType(s, "string"):
		if s.MinLength > 0 {
			r.MinLength = &rules.Length{Value: int(s.MinLength)}
		}
		if s.MaxLength != nil {
			r.MaxLength = &rules.Length{Value: int(*s.MaxLength)}
		}
		if s.Pattern != "" {
			re, err := regexp.Compile(s.Pattern)
			if err != nil {
				return Field{}, fmt.Errorf("field %q: pattern: %w", path, err)
			}
			r.Pattern = &rules.Pattern{Regexp: re}
		}
		switch s.Format {
		case "email":
			r.Validate = append(r.Validate, rules.Predicate("email", "must be a valid email address", isEmail))
		case "date", "date-time":
			r.ValueAs = rules.ValueAsDate
		case "password":
			field.Input = InputPassword
		}
	case hasType(s, "integer"), hasType(s, "number"):
		r.ValueAs = rules.ValueAsNumber
		if s.Min != nil {
			r.Min = &rules.Limit{Value: *s.Min}
		}
		if s.Max != nil {
			r.Max = &rules.Limit{Value: *s.Max}
		}
	case hasType(s, "boolean"):
		field.Input = InputConfirm
	}

	if len(s.Enum) > 0 {
		for _, value := range s.Enum {
			field.Options = append(field.Options, fmt.Sprint(value))
		}
		field.Input = InputSelect
		r.Validate = append(r.Validate, oneOf(field.Options))
	}

	hints := extension(s.Extensions)
	if label, ok := hints["label"].(string); ok {
		field.Label = label
	}
	if help, ok := hints["help"].(string); ok {
		field.Help = help
	}
	if input, ok := hints["input"].(string); ok {
		field.Input = Input(strings.ToLower(input))
	}
	if list, ok := hints["validate"].([]any); ok {
		for _, raw := range list {
			spec, _ := raw.(map[string]any)
			v := validatorFile{
				Name:       stringValue(spec["name"]),
				Ref:        stringValue(spec["ref"]),
				Engine:     stringValue(spec["engine"]),
				Expression: stringValue(spec["expression"]),
				Message:    stringValue(spec["message"]),
			}
			validator, err := v.compile(cfg)
			if err != nil {
				return Field{}, fmt.Errorf("field %q: %w", path, err)
			}
			r.Validate = append(r.Validate, validator)
		}
	}

	field.Rules = r
	return field, nil
}

// flatten merges allOf members into the schema's own properties.
func flatten(s *openapi3.Schema) (map[string]*openapi3.Schema, map[string]bool) {
	properties := make(map[string]*openapi3.Schema)
	required := make(map[string]bool)
	var visit func(*openapi3.Schema)
	visit = func(s *openapi3.Schema) {
		for name, ref := range s.Properties {
			if ref != nil && ref.Value != nil {
				properties[name] = ref.Value
			}
		}
		for _, name := range s.Required {
			required[name] = true
		}
		for _, ref := range s.AllOf {
			if ref != nil && ref.Value != nil && ref.Value != s {
				visit(ref.Value)
			}
		}
	}
	visit(s)
	return properties, required
}

func hasType(s *openapi3.Schema, typ string) bool {
	if s == nil || s.Type == nil {
		return false
	}
	for _, value := range s.Type.Slice() {
		if value == typ {
			return true
		}
	}
	return false
}

func labelFor(s *openapi3.Schema, name string) string {
	if s.Title != "" {
		return s.Title
	}
	return name
}

func extension(raw map[string]any) map[string]any {
	if value, ok := raw[extensionKey].(map[string]any); ok {
		return value
	}
	return nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func isEmail(value any) bool {
	s, ok := value.(string)
	if !ok || s == "" {
		return true
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
