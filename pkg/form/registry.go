package form

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/rules"
)

// Binding is the handle returned by Register. It forwards input events for
// a single path.
type Binding struct {
	form *Form
	path string
}

// Name returns the dotted path the binding tracks.
func (b Binding) Name() string { return b.path }

// Change records a user edit.
func (b Binding) Change(ctx context.Context, raw any) error {
	return b.form.Change(ctx, b.path, raw)
}

// Blur records that the user left the field.
func (b Binding) Blur(ctx context.Context) error {
	return b.form.Blur(ctx, b.path)
}

// Value returns the current value.
func (b Binding) Value() (any, error) {
	return b.form.GetValue(b.path)
}

// State returns the field projection.
func (b Binding) State() (FieldState, error) {
	return b.form.FieldState(b.path)
}

// Register adds (or updates) a field. Registering an existing path replaces
// its rules and keeps its value and interaction state. Register may be
// called before defaults are resolved; the value is filled in once they are.
func (f *Form) Register(path string, r rules.Rules) (Binding, error) {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return Binding{}, &InvalidPathError{Path: path, Err: err}
	}
	key := p.String()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return Binding{}, ErrClosed
	}
	if f.cfg.resolver != nil && r.HasConstraints() {
		f.mu.Unlock()
		return Binding{}, &ConfigurationError{Path: key, Err: ErrConflictingModes}
	}

	if e, ok := f.entries[key]; ok {
		e.rules = r
		e.disabled = r.Disabled
		if arr, _, sub, ok := f.arrayForLocked(p); ok {
			arr.itemRules[sub] = r
		}
		ev := f.emitLocked(EventRegister, key)
		f.mu.Unlock()
		f.cfg.logger.LogEvent(LogEvent{Op: "register", Path: key, Attrs: map[string]any{"updated": true}})
		f.dispatch(ev)
		return Binding{form: f, path: key}, nil
	}

	if arr, idx, sub, ok := f.arrayForLocked(p); ok {
		if err := f.registerItemLocked(arr, idx, sub, p, r); err != nil {
			f.mu.Unlock()
			f.cfg.logger.LogEvent(LogEvent{Op: "register", Path: key, Err: err})
			return Binding{}, err
		}
	} else {
		if err := f.shape.Add(p, fieldpath.KindLeaf); err != nil {
			f.mu.Unlock()
			err = &InvalidPathError{Path: key, Err: err}
			f.cfg.logger.LogEvent(LogEvent{Op: "register", Path: key, Err: err})
			return Binding{}, err
		}
		e := newEntry(p, r)
		def, ok := tree.Get(f.defaults, p.Segments())
		e.def, e.hasDefault = tree.Clone(def), ok
		e.value = f.currentValueLocked(p)
		f.entries[key] = e
		f.order = append(f.order, key)
	}

	ev := f.emitLocked(EventRegister, key)
	f.mu.Unlock()
	f.cfg.logger.LogEvent(LogEvent{Op: "register", Path: key})
	f.dispatch(ev)
	return Binding{form: f, path: key}, nil
}

// entryKey normalises path the way Register keys entries. Malformed paths
// are returned unchanged and fail the lookup.
func entryKey(path string) string {
	if p, err := fieldpath.Parse(path); err == nil {
		return p.String()
	}
	return path
}

// Unregister removes a field and its state.
func (f *Form) Unregister(path string) error {
	path = entryKey(path)
	f.mu.Lock()
	e, ok := f.entries[path]
	if !ok {
		f.mu.Unlock()
		return unknownField(path)
	}
	if arr, idx, sub, ok := f.arrayForLocked(e.path); ok && idx < len(arr.items) {
		delete(arr.items[idx].fields, sub)
	}
	delete(f.entries, path)
	f.shape.Remove(e.path)
	f.removeOrderLocked(path)
	f.version++
	ev := f.emitLocked(EventUnregister, path)
	f.mu.Unlock()

	f.cfg.logger.LogEvent(LogEvent{Op: "unregister", Path: path})
	f.dispatch(ev)
	return nil
}

// Change applies a raw input event: the input filter and the field's ValueAs
// coercion run first, the field becomes dirty when the value differs from
// its default, and validation runs when the mode asks for it. Changes to
// disabled fields are ignored.
func (f *Form) Change(ctx context.Context, path string, raw any) error {
	path = entryKey(path)
	f.mu.Lock()
	if err := f.readyLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	e, ok := f.entries[path]
	if !ok {
		f.mu.Unlock()
		return unknownField(path)
	}
	if e.disabled {
		f.mu.Unlock()
		return nil
	}
	if f.cfg.inputFilter != nil {
		raw = f.cfg.inputFilter(path, raw)
	}
	e.value = e.rules.ValueAs.Coerce(tree.Clone(raw))
	e.markDirty()
	f.version++
	validate := f.validateOnChangeLocked(e)
	ev := f.emitLocked(EventChange, path)
	f.mu.Unlock()

	f.dispatch(ev)
	if validate {
		return f.validateFields(ctx, "change", []string{path})
	}
	return nil
}

// Blur marks the field touched and validates it when the mode asks for it.
func (f *Form) Blur(ctx context.Context, path string) error {
	path = entryKey(path)
	f.mu.Lock()
	if err := f.readyLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	e, ok := f.entries[path]
	if !ok {
		f.mu.Unlock()
		return unknownField(path)
	}
	e.touched = true
	validate := !e.disabled && f.validateOnBlurLocked()
	ev := f.emitLocked(EventBlur, path)
	f.mu.Unlock()

	f.dispatch(ev)
	if validate {
		return f.validateFields(ctx, "blur", []string{path})
	}
	return nil
}

func (f *Form) validateOnChangeLocked(e *entry) bool {
	if f.lc.isSubmitted {
		return f.cfg.reValidateMode == ModeOnChange || f.cfg.reValidateMode == ModeAll
	}
	switch f.cfg.mode {
	case ModeOnChange, ModeAll:
		return true
	case ModeOnTouched:
		return e.touched
	default:
		return false
	}
}

func (f *Form) validateOnBlurLocked() bool {
	if f.lc.isSubmitted {
		return f.cfg.reValidateMode == ModeOnBlur || f.cfg.reValidateMode == ModeAll
	}
	switch f.cfg.mode {
	case ModeOnBlur, ModeOnTouched, ModeAll:
		return true
	default:
		return false
	}
}

// SetValueOption adjusts a programmatic SetValue.
type SetValueOption func(*setValueConfig)

type setValueConfig struct {
	dirty    bool
	touch    bool
	validate bool
}

// ShouldDirty recomputes the dirty flag against the default.
func ShouldDirty() SetValueOption {
	return func(cfg *setValueConfig) { cfg.dirty = true }
}

// ShouldTouch marks the field touched.
func ShouldTouch() SetValueOption {
	return func(cfg *setValueConfig) { cfg.touch = true }
}

// ShouldValidate validates the affected fields after the update.
func ShouldValidate() SetValueOption {
	return func(cfg *setValueConfig) { cfg.validate = true }
}

// SetValue writes a value programmatically. When path names an object or a
// field array, value is spread over the fields below it. Paths with no
// registered field update the base value tree. A list that would shrink a
// field array below its minimum is ignored, or rejected with ErrMinItems when
// the array is strict.
func (f *Form) SetValue(ctx context.Context, path string, value any, opts ...SetValueOption) error {
	var cfg setValueConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	p, err := fieldpath.Parse(path)
	if err != nil {
		return &InvalidPathError{Path: path, Err: err}
	}
	key := p.String()
	value = tree.Clone(value)

	f.mu.Lock()
	if err := f.readyLocked(); err != nil {
		f.mu.Unlock()
		return err
	}

	var affected []string
	apply := func(e *entry, v any) {
		e.value = v
		if cfg.dirty {
			e.markDirty()
		}
		if cfg.touch {
			e.touched = true
		}
		affected = append(affected, e.key)
	}

	switch {
	case f.entries[key] != nil:
		apply(f.entries[key], value)
	case f.arrays[key] != nil:
		list, ok := value.([]any)
		if !ok && value != nil {
			f.mu.Unlock()
			return &InvalidPathError{Path: key, Err: errors.New("field array value must be a list")}
		}
		arr := f.arrays[key]
		if len(list) < arr.minItems && len(list) < len(arr.items) {
			f.mu.Unlock()
			if arr.strict {
				return fmt.Errorf("%w: %q", ErrMinItems, key)
			}
			f.cfg.logger.LogEvent(LogEvent{Op: "setValue", Path: key, Err: ErrMinItems})
			return nil
		}
		if err := f.replaceItemsLocked(arr, list); err != nil {
			f.mu.Unlock()
			return err
		}
		for _, item := range arr.items {
			for _, e := range item.fields {
				if cfg.touch {
					e.touched = true
				}
				affected = append(affected, e.key)
			}
		}
	default:
		if _, _, _, inArray := f.arrayForLocked(p); inArray {
			f.mu.Unlock()
			return unknownField(key)
		}
		if _, container := value.(map[string]any); !container {
			if err := f.shape.Check(p, fieldpath.KindLeaf); err != nil {
				f.mu.Unlock()
				return &InvalidPathError{Path: key, Err: err}
			}
		}
		for _, leaf := range tree.Leaves(value) {
			leafPath := p.Child(leaf.Segments...)
			if e := f.entries[leafPath.String()]; e != nil {
				apply(e, leaf.Value)
			}
		}
		if err := tree.Set(f.values, p.Segments(), value); err != nil {
			f.mu.Unlock()
			return &InvalidPathError{Path: key, Err: err}
		}
	}

	f.version++
	ev := f.emitLocked(EventValue, key)
	f.mu.Unlock()

	f.dispatch(ev)
	if cfg.validate && len(affected) > 0 {
		return f.validateFields(ctx, "setValue", affected)
	}
	return nil
}

// SetDisabled toggles a field. Disabled fields skip validation, ignore input
// events and are left out of submitted values.
func (f *Form) SetDisabled(path string, disabled bool) error {
	path = entryKey(path)
	f.mu.Lock()
	e, ok := f.entries[path]
	if !ok {
		f.mu.Unlock()
		return unknownField(path)
	}
	e.disabled = disabled
	if disabled {
		e.err = nil
	}
	f.version++
	ev := f.emitLocked(EventDisabled, path)
	f.mu.Unlock()
	f.dispatch(ev)
	return nil
}

// GetValues returns the current value tree, or only the requested paths.
func (f *Form) GetValues(paths ...string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readyLocked(); err != nil {
		return nil, err
	}
	snapshot := f.snapshotLocked(false)
	if len(paths) == 0 {
		return snapshot, nil
	}
	out := make(map[string]any)
	for _, raw := range paths {
		p, err := fieldpath.Parse(raw)
		if err != nil {
			return nil, &InvalidPathError{Path: raw, Err: err}
		}
		if v, ok := tree.Get(snapshot, p.Segments()); ok {
			_ = tree.Set(out, p.Segments(), v)
		}
	}
	return out, nil
}

// GetValue returns the value at a single path.
func (f *Form) GetValue(path string) (any, error) {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return nil, &InvalidPathError{Path: path, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readyLocked(); err != nil {
		return nil, err
	}
	if e, ok := f.entries[p.String()]; ok {
		return tree.Clone(e.value), nil
	}
	v, _ := tree.Get(f.snapshotLocked(false), p.Segments())
	return v, nil
}

// ResetOption adjusts Reset.
type ResetOption func(*resetConfig)

type resetConfig struct {
	values           map[string]any
	hasValues        bool
	resetSubmitCount bool
}

// WithValues replaces the defaults before resetting.
func WithValues(values map[string]any) ResetOption {
	return func(cfg *resetConfig) {
		cfg.values = values
		cfg.hasValues = true
	}
}

// ResetSubmitCount also zeroes the submit counter, which Reset keeps by
// default.
func ResetSubmitCount() ResetOption {
	return func(cfg *resetConfig) { cfg.resetSubmitCount = true }
}

// Reset restores every field to its default value and clears dirty, touched
// and error state along with the submitted flags. With WithValues the new
// values become the defaults; on a form that is still resolving defaults
// this supersedes the resolution and makes the form ready.
func (f *Form) Reset(ctx context.Context, opts ...ResetOption) error {
	var cfg resetConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	started := time.Now()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if !f.ready && !cfg.hasValues {
		err := f.readyLocked()
		f.mu.Unlock()
		return err
	}

	defaults := f.defaults
	if cfg.hasValues {
		defaults = cfg.values
	}
	if !f.ready {
		f.generation++
		if f.cancelLoad != nil {
			f.cancelLoad()
			f.cancelLoad = nil
		}
		f.loadErr = nil
		f.ready = true
		f.settleLocked()
	}

	wasValidated := f.validated
	f.resetLocked(defaults)
	if cfg.resetSubmitCount {
		f.lc.submitCount = 0
	}
	ev := f.emitLocked(EventReset, "")
	f.mu.Unlock()

	f.cfg.logger.LogEvent(LogEvent{Op: "reset", Duration: time.Since(started)})
	f.dispatch(ev)
	if wasValidated {
		_, err := f.ValidateAll(ctx)
		return err
	}
	return nil
}
