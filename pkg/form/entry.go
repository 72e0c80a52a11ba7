package form

import (
	"reflect"
	"sort"
	"time"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/rules"
)

// FieldError is the error attached to a path.
type FieldError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// FieldErrors maps dotted paths to their errors.
type FieldErrors map[string]FieldError

// Paths returns the failing paths in sorted order.
func (e FieldErrors) Paths() []string {
	out := make([]string, 0, len(e))
	for path := range e {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (e FieldErrors) clone() FieldErrors {
	out := make(FieldErrors, len(e))
	for path, fe := range e {
		out[path] = fe
	}
	return out
}

// FieldState is the per-field projection exposed to UI code.
type FieldState struct {
	Value     any         `json:"value"`
	IsDirty   bool        `json:"isDirty"`
	IsTouched bool        `json:"isTouched"`
	Invalid   bool        `json:"invalid"`
	Disabled  bool        `json:"disabled"`
	Error     *FieldError `json:"error,omitempty"`
}

// FieldEntry is a read-only copy of one registered field.
type FieldEntry struct {
	Path     string
	Value    any
	Default  any
	Rules    rules.Rules
	Error    *FieldError
	Touched  bool
	Dirty    bool
	Disabled bool
	// ItemKey is the stable identity of the field array item that owns the
	// entry, empty for top-level fields.
	ItemKey string
}

type entry struct {
	path       fieldpath.Path
	key        string
	value      any
	def        any
	hasDefault bool
	rules      rules.Rules
	err        *FieldError
	touched    bool
	dirty      bool
	disabled   bool
	itemKey    string
}

func newEntry(p fieldpath.Path, r rules.Rules) *entry {
	return &entry{
		path:     p,
		key:      p.String(),
		rules:    r,
		disabled: r.Disabled,
	}
}

func (e *entry) export() FieldEntry {
	return FieldEntry{
		Path:     e.key,
		Value:    tree.Clone(e.value),
		Default:  tree.Clone(e.def),
		Rules:    e.rules,
		Error:    copyError(e.err),
		Touched:  e.touched,
		Dirty:    e.dirty,
		Disabled: e.disabled,
		ItemKey:  e.itemKey,
	}
}

func (e *entry) state() FieldState {
	return FieldState{
		Value:     tree.Clone(e.value),
		IsDirty:   e.dirty,
		IsTouched: e.touched,
		Invalid:   e.err != nil,
		Disabled:  e.disabled,
		Error:     copyError(e.err),
	}
}

// markDirty compares the current value with the default.
func (e *entry) markDirty() {
	e.dirty = !e.hasDefault && e.value != nil || e.hasDefault && !valuesEqual(e.value, e.def)
}

func copyError(fe *FieldError) *FieldError {
	if fe == nil {
		return nil
	}
	out := *fe
	return &out
}

func violationError(v *rules.Violation) *FieldError {
	if v == nil {
		return nil
	}
	kind := string(v.Kind)
	if v.Kind == rules.KindValidate && v.Name != "" {
		kind = v.Name
	}
	return &FieldError{Type: kind, Message: v.Message}
}

// valuesEqual compares two value trees, treating numbers of different Go
// types as equal when they hold the same quantity.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		fa, _ := rules.ToFloat(a)
		fb, _ := rules.ToFloat(b)
		return fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	switch typed := a.(type) {
	case map[string]any:
		other, ok := b.(map[string]any)
		if !ok || len(typed) != len(other) {
			return false
		}
		for key, value := range typed {
			otherValue, ok := other[key]
			if !ok || !valuesEqual(value, otherValue) {
				return false
			}
		}
		return true
	case []any:
		other, ok := b.([]any)
		if !ok || len(typed) != len(other) {
			return false
		}
		for i := range typed {
			if !valuesEqual(typed[i], other[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
