package definition

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/rules"
)

// ErrEmptyDocument is returned for blank definition documents.
var ErrEmptyDocument = errors.New("definition: document is empty")

// Option configures parsing.
type Option func(*config)

type config struct {
	validators  map[string]rules.Validator
	expressions []rules.ExpressionOption
}

// WithValidator makes a Go validator available to documents under name.
// Fields reference it with `ref: <name>` in their validate list.
func WithValidator(name string, v rules.Validator) Option {
	return func(cfg *config) {
		if cfg.validators == nil {
			cfg.validators = make(map[string]rules.Validator)
		}
		if v.Name == "" {
			v.Name = name
		}
		cfg.validators[name] = v
	}
}

// WithExpressionOptions forwards options to the expr and CEL compilers.
func WithExpressionOptions(opts ...rules.ExpressionOption) Option {
	return func(cfg *config) {
		cfg.expressions = append(cfg.expressions, opts...)
	}
}

func newConfig(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

type documentFile struct {
	ID             string         `yaml:"id"`
	Title          string         `yaml:"title"`
	Description    string         `yaml:"description"`
	Mode           string         `yaml:"mode"`
	ReValidateMode string         `yaml:"reValidateMode"`
	Defaults       map[string]any `yaml:"defaults"`
	Fields         fieldList      `yaml:"fields"`
	Arrays         arrayList      `yaml:"arrays"`
}

type fieldFile struct {
	Label     string             `yaml:"label"`
	Help      string             `yaml:"help"`
	Input     string             `yaml:"input"`
	Options   []string           `yaml:"options"`
	Required  *requiredSpec      `yaml:"required"`
	MinLength *ruleSpec[int]     `yaml:"minLength"`
	MaxLength *ruleSpec[int]     `yaml:"maxLength"`
	Min       *ruleSpec[float64] `yaml:"min"`
	Max       *ruleSpec[float64] `yaml:"max"`
	Pattern   *ruleSpec[string]  `yaml:"pattern"`
	ValueAs   string             `yaml:"valueAs"`
	Disabled  bool               `yaml:"disabled"`
	Validate  []validatorFile    `yaml:"validate"`
}

type validatorFile struct {
	Name       string `yaml:"name"`
	Ref        string `yaml:"ref"`
	Engine     string `yaml:"engine"`
	Expression string `yaml:"expression"`
	Message    string `yaml:"message"`
}

type arrayFile struct {
	Label    string     `yaml:"label"`
	MinItems int        `yaml:"minItems"`
	Strict   bool       `yaml:"strict"`
	Item     *fieldFile `yaml:"item"`
	Fields   fieldList  `yaml:"fields"`
}

type namedField struct {
	name string
	line int
	file fieldFile
}

// fieldList keeps mapping order so fields are registered (and prompted) in
// document order.
type fieldList []namedField

func (l *fieldList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var file fieldFile
		if err := value.Decode(&file); err != nil {
			return fmt.Errorf("field %q: %w", key.Value, err)
		}
		*l = append(*l, namedField{name: key.Value, line: key.Line, file: file})
	}
	return nil
}

type namedArray struct {
	name string
	file arrayFile
}

type arrayList []namedArray

func (l *arrayList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: arrays must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var file arrayFile
		if err := value.Decode(&file); err != nil {
			return fmt.Errorf("array %q: %w", key.Value, err)
		}
		*l = append(*l, namedArray{name: key.Value, file: file})
	}
	return nil
}

// ruleSpec accepts either a bare value or a {value, message} mapping.
type ruleSpec[T any] struct {
	Value   T
	Message string
}

func (s *ruleSpec[T]) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&s.Value)
	case yaml.MappingNode:
		var raw struct {
			Value   T      `yaml:"value"`
			Message string `yaml:"message"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		s.Value, s.Message = raw.Value, raw.Message
		return nil
	default:
		return fmt.Errorf("line %d: expected a value or a {value, message} mapping", node.Line)
	}
}

// requiredSpec accepts true/false, a message string (required with that
// message) or a {value, message} mapping.
type requiredSpec struct {
	Value   bool
	Message string
}

func (s *requiredSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() != "!!bool" {
		s.Value = true
		s.Message = node.Value
		return nil
	}
	var spec ruleSpec[bool]
	if err := spec.UnmarshalYAML(node); err != nil {
		return err
	}
	s.Value, s.Message = spec.Value, spec.Message
	return nil
}

// Parse decodes a YAML (or JSON) form definition. Custom validators are
// compiled eagerly so expression errors surface here rather than on the
// first validation pass.
func Parse(data []byte, opts ...Option) (*Definition, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyDocument
	}
	var doc documentFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("definition: parse: %w", err)
	}
	return doc.normalise(newConfig(opts))
}

func (doc documentFile) normalise(cfg config) (*Definition, error) {
	mode, err := form.ParseMode(doc.Mode)
	if err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	var reValidate form.Mode
	if doc.ReValidateMode != "" {
		if reValidate, err = form.ParseMode(doc.ReValidateMode); err != nil {
			return nil, fmt.Errorf("definition: %w", err)
		}
	}

	def := &Definition{
		ID:             strings.TrimSpace(doc.ID),
		Title:          doc.Title,
		Description:    doc.Description,
		Mode:           mode,
		ReValidateMode: reValidate,
		Defaults:       doc.Defaults,
	}

	seen := make(map[string]bool)
	for _, raw := range doc.Fields {
		p, err := fieldpath.Parse(raw.name)
		if err != nil {
			return nil, fmt.Errorf("definition: line %d: %w", raw.line, err)
		}
		if seen[p.String()] {
			return nil, fmt.Errorf("definition: duplicate field %q", p.String())
		}
		seen[p.String()] = true
		field, err := raw.file.field(p.String(), cfg)
		if err != nil {
			return nil, fmt.Errorf("definition: %w", err)
		}
		def.Fields = append(def.Fields, field)
	}

	for _, raw := range doc.Arrays {
		p, err := fieldpath.Parse(raw.name)
		if err != nil {
			return nil, fmt.Errorf("definition: array: %w", err)
		}
		array := Array{
			Name:     p.String(),
			Label:    raw.file.Label,
			MinItems: raw.file.MinItems,
			Strict:   raw.file.Strict,
		}
		if raw.file.Item != nil && len(raw.file.Fields) > 0 {
			return nil, fmt.Errorf("definition: array %q: item and fields are mutually exclusive", array.Name)
		}
		if raw.file.Item != nil {
			item, err := raw.file.Item.field("", cfg)
			if err != nil {
				return nil, fmt.Errorf("definition: array %q: %w", array.Name, err)
			}
			array.Items = append(array.Items, item)
		}
		for _, sub := range raw.file.Fields {
			sp, err := fieldpath.Parse(sub.name)
			if err != nil {
				return nil, fmt.Errorf("definition: array %q: %w", array.Name, err)
			}
			item, err := sub.file.field(sp.String(), cfg)
			if err != nil {
				return nil, fmt.Errorf("definition: array %q: %w", array.Name, err)
			}
			array.Items = append(array.Items, item)
		}
		def.Arrays = append(def.Arrays, array)
	}
	return def, nil
}

func (f fieldFile) field(path string, cfg config) (Field, error) {
	out := Field{
		Path:    path,
		Label:   f.Label,
		Help:    f.Help,
		Input:   Input(strings.ToLower(f.Input)),
		Options: append([]string(nil), f.Options...),
	}
	switch out.Input {
	case "":
		out.Input = InputText
		if len(out.Options) > 0 {
			out.Input = InputSelect
		}
	case InputText, InputPassword, InputTextArea, InputConfirm, InputSelect:
	default:
		return Field{}, fmt.Errorf("field %q: unknown input %q", path, f.Input)
	}

	r := rules.Rules{Disabled: f.Disabled}
	if f.Required != nil && f.Required.Value {
		r.Required = &rules.Required{Message: f.Required.Message}
	}
	if f.MinLength != nil {
		r.MinLength = &rules.Length{Value: f.MinLength.Value, Message: f.MinLength.Message}
	}
	if f.MaxLength != nil {
		r.MaxLength = &rules.Length{Value: f.MaxLength.Value, Message: f.MaxLength.Message}
	}
	if f.Min != nil {
		r.Min = &rules.Limit{Value: f.Min.Value, Message: f.Min.Message}
	}
	if f.Max != nil {
		r.Max = &rules.Limit{Value: f.Max.Value, Message: f.Max.Message}
	}
	if f.Pattern != nil {
		re, err := regexp.Compile(f.Pattern.Value)
		if err != nil {
			return Field{}, fmt.Errorf("field %q: pattern: %w", path, err)
		}
		r.Pattern = &rules.Pattern{Regexp: re, Message: f.Pattern.Message}
	}
	switch rules.ValueAs(f.ValueAs) {
	case rules.ValueAsRaw, rules.ValueAsNumber, rules.ValueAsDate:
		r.ValueAs = rules.ValueAs(f.ValueAs)
	default:
		return Field{}, fmt.Errorf("field %q: unknown valueAs %q", path, f.ValueAs)
	}
	if len(out.Options) > 0 {
		r.Validate = append(r.Validate, oneOf(out.Options))
	}
	for _, v := range f.Validate {
		validator, err := v.compile(cfg)
		if err != nil {
			return Field{}, fmt.Errorf("field %q: %w", path, err)
		}
		r.Validate = append(r.Validate, validator)
	}
	out.Rules = r
	return out, nil
}

func (v validatorFile) compile(cfg config) (rules.Validator, error) {
	if v.Ref != "" {
		validator, ok := cfg.validators[v.Ref]
		if !ok {
			return rules.Validator{}, fmt.Errorf("unknown validator %q", v.Ref)
		}
		return validator, nil
	}
	name := v.Name
	if name == "" {
		name = "validate"
	}
	return rules.Compile(v.Engine, name, v.Expression, v.Message, cfg.expressions...)
}

func oneOf(options []string) rules.Validator {
	allowed := make(map[string]bool, len(options))
	for _, option := range options {
		allowed[option] = true
	}
	message := "must be one of " + strings.Join(options, ", ")
	return rules.Predicate("oneOf", message, func(value any) bool {
		s, ok := value.(string)
		return !ok || s == "" || allowed[s]
	})
}
