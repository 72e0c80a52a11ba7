// Package rules defines the per-field validation rules a form evaluates in
// built-in rule mode, and the custom validator constructors (Go funcs,
// expr-lang and CEL expressions).
package rules

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind identifies the rule that produced a violation.
type Kind string

const (
	KindRequired  Kind = "required"
	KindMinLength Kind = "minLength"
	KindMaxLength Kind = "maxLength"
	KindMin       Kind = "min"
	KindMax       Kind = "max"
	KindPattern   Kind = "pattern"
	KindValidate  Kind = "validate"
)

// Required rejects empty values: nil, "", false, and empty slices or maps.
type Required struct {
	Message string
}

// Length bounds the rune length of strings or the length of slices.
type Length struct {
	Value   int
	Message string
}

// Limit bounds numeric values.
type Limit struct {
	Value   float64
	Message string
}

// Pattern requires string values to match Regexp.
type Pattern struct {
	Regexp  *regexp.Regexp
	Message string
}

// Rules groups the constraints attached to a field at registration time.
// Evaluation order is fixed: Required, MinLength, MaxLength, Min, Max,
// Pattern, then Validate in declaration order. The first violation wins.
type Rules struct {
	Required  *Required
	MinLength *Length
	MaxLength *Length
	Min       *Limit
	Max       *Limit
	Pattern   *Pattern
	Validate  []Validator

	// ValueAs coerces raw input before it is stored.
	ValueAs ValueAs
	// Disabled fields are skipped by validation and left out of submitted
	// values.
	Disabled bool
}

// Violation describes the first failing rule.
type Violation struct {
	Kind    Kind
	Name    string
	Message string
}

// HasConstraints reports whether any validation rule is configured. ValueAs
// and Disabled are not constraints.
func (r Rules) HasConstraints() bool {
	return r.Required != nil ||
		r.MinLength != nil ||
		r.MaxLength != nil ||
		r.Min != nil ||
		r.Max != nil ||
		r.Pattern != nil ||
		len(r.Validate) > 0
}

// Evaluate runs the rules against value. values is the full form snapshot and
// is handed to custom validators. A nil violation means the value is valid;
// a non-nil error means a validator could not run.
func (r Rules) Evaluate(ctx context.Context, value any, values map[string]any) (*Violation, error) {
	empty := IsEmpty(value)

	if r.Required != nil && empty {
		return violation(KindRequired, "", r.Required.Message, "field is required"), nil
	}

	if !empty {
		if v := r.checkLength(value); v != nil {
			return v, nil
		}
		if v := r.checkLimits(value); v != nil {
			return v, nil
		}
		if r.Pattern != nil && r.Pattern.Regexp != nil {
			if s, ok := value.(string); ok && !r.Pattern.Regexp.MatchString(s) {
				return violation(KindPattern, "", r.Pattern.Message, "value does not match the expected format"), nil
			}
		}
	}

	for _, validator := range r.Validate {
		if validator.Fn == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		message, err := validator.Fn(ctx, value, values)
		if err != nil {
			return nil, fmt.Errorf("rules: validator %q: %w", validator.Name, err)
		}
		if message != "" {
			return &Violation{Kind: KindValidate, Name: validator.Name, Message: message}, nil
		}
	}
	return nil, nil
}

func (r Rules) checkLength(value any) *Violation {
	if r.MinLength == nil && r.MaxLength == nil {
		return nil
	}
	n, ok := length(value)
	if !ok {
		return nil
	}
	if r.MinLength != nil && n < r.MinLength.Value {
		return violation(KindMinLength, "", r.MinLength.Message, fmt.Sprintf("must be at least %d characters", r.MinLength.Value))
	}
	if r.MaxLength != nil && n > r.MaxLength.Value {
		return violation(KindMaxLength, "", r.MaxLength.Message, fmt.Sprintf("must be at most %d characters", r.MaxLength.Value))
	}
	return nil
}

func (r Rules) checkLimits(value any) *Violation {
	if r.Min == nil && r.Max == nil {
		return nil
	}
	n, ok := ToFloat(value)
	if !ok {
		return nil
	}
	if r.Min != nil && n < r.Min.Value {
		return violation(KindMin, "", r.Min.Message, fmt.Sprintf("must be greater than or equal to %v", r.Min.Value))
	}
	if r.Max != nil && n > r.Max.Value {
		return violation(KindMax, "", r.Max.Message, fmt.Sprintf("must be less than or equal to %v", r.Max.Value))
	}
	return nil
}

func violation(kind Kind, name, message, fallback string) *Violation {
	if strings.TrimSpace(message) == "" {
		message = fallback
	}
	return &Violation{Kind: kind, Name: name, Message: message}
}

// IsEmpty reports whether value counts as missing for the Required rule.
func IsEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case bool:
		return !typed
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func length(value any) (int, bool) {
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}
