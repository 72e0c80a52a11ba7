package form

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/rules"
)

type itemKind int

const (
	itemUnknown itemKind = iota
	itemScalar
	itemObject
)

type arrayItem struct {
	key    string
	fields map[string]*entry
}

type arrayState struct {
	name       fieldpath.Path
	key        string
	items      []*arrayItem
	kind       itemKind
	itemRules  map[string]rules.Rules
	minItems   int
	strict     bool
	defaultLen int
	dirty      bool
}

// ArrayOption configures a field array.
type ArrayOption func(*arrayState)

// WithMinItems sets the minimum number of items. Remove below the minimum is
// a no-op unless WithStrictMinItems is set.
func WithMinItems(n int) ArrayOption {
	return func(arr *arrayState) {
		if n >= 0 {
			arr.minItems = n
		}
	}
}

// WithStrictMinItems makes Remove below the minimum return ErrMinItems.
func WithStrictMinItems() ArrayOption {
	return func(arr *arrayState) { arr.strict = true }
}

// WithItemRules attaches rules to the field at sub inside every item. An
// empty sub addresses scalar items.
func WithItemRules(sub string, r rules.Rules) ArrayOption {
	return func(arr *arrayState) {
		arr.itemRules[sub] = r
	}
}

// ArrayItem identifies one item of a field array. Key stays stable across
// reorders; Path and Index follow the item's current position.
type ArrayItem struct {
	Key   string `json:"key"`
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// FieldArray manages a list-valued path.
type FieldArray struct {
	form *Form
	key  string
}

// FieldArray returns the manager for the list at name, creating it on first
// use from the current values. Options only apply when the array is created.
func (f *Form) FieldArray(name string, opts ...ArrayOption) (*FieldArray, error) {
	p, err := fieldpath.Parse(name)
	if err != nil {
		return nil, &InvalidPathError{Path: name, Err: err}
	}
	key := p.String()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if _, ok := f.arrays[key]; ok {
		return &FieldArray{form: f, key: key}, nil
	}
	for _, other := range f.arrays {
		if p.HasPrefix(other.name) || other.name.HasPrefix(p) {
			return nil, &ConfigurationError{Path: key, Err: fmt.Errorf("overlaps field array %q", other.key)}
		}
	}

	arr := &arrayState{name: p, key: key, itemRules: make(map[string]rules.Rules)}
	for _, opt := range opts {
		if opt != nil {
			opt(arr)
		}
	}
	for sub, r := range arr.itemRules {
		if f.cfg.resolver != nil && r.HasConstraints() {
			return nil, &ConfigurationError{Path: fieldpath.Join(key, sub), Err: ErrConflictingModes}
		}
		if err := arr.acceptSub(sub); err != nil {
			return nil, &InvalidPathError{Path: key, Err: err}
		}
	}
	// Fields registered below the array before it was created are adopted
	// by the item at their index.
	adopted := make(map[int]map[string]*entry)
	maxIndex := -1
	for _, k := range f.order {
		if !hasKeyPrefix(k, key) {
			continue
		}
		e := f.entries[k]
		rel, _ := e.path.TrimPrefix(p)
		idx, ok := fieldpath.IsIndex(rel.Segment(0))
		if !ok {
			continue
		}
		sub := strings.Join(rel.Segments()[1:], ".")
		if err := arr.acceptSub(sub); err != nil {
			return nil, &InvalidPathError{Path: k, Err: err}
		}
		if adopted[idx] == nil {
			adopted[idx] = make(map[string]*entry)
		}
		adopted[idx][sub] = e
		if _, ok := arr.itemRules[sub]; !ok {
			arr.itemRules[sub] = e.rules
		}
		maxIndex = max(maxIndex, idx)
	}
	if err := f.shape.Add(p, fieldpath.KindArray); err != nil {
		return nil, &InvalidPathError{Path: key, Err: err}
	}

	var values []any
	if f.ready {
		list, _ := tree.Get(f.values, p.Segments())
		values, _ = list.([]any)
		def, _ := tree.Get(f.defaults, p.Segments())
		defaults, _ := def.([]any)
		arr.defaultLen = len(defaults)
	}
	for i := 0; i < len(values) || i <= maxIndex; i++ {
		var v any
		if i < len(values) {
			v = values[i]
		}
		item, err := f.newItemLocked(arr, v)
		if err != nil {
			f.shape.Remove(p)
			return nil, err
		}
		for sub, e := range adopted[i] {
			item.fields[sub] = e
		}
		arr.items = append(arr.items, item)
	}

	f.arrays[key] = arr
	f.relayoutLocked(arr)
	f.cfg.logger.LogEvent(LogEvent{Op: "fieldArray", Path: key, Attrs: map[string]any{"items": len(arr.items)}})
	return &FieldArray{form: f, key: key}, nil
}

// Name returns the array path.
func (a *FieldArray) Name() string { return a.key }

// Fields lists the items in order.
func (a *FieldArray) Fields() []ArrayItem {
	f := a.form
	f.mu.Lock()
	defer f.mu.Unlock()
	arr := f.arrays[a.key]
	out := make([]ArrayItem, len(arr.items))
	for i, item := range arr.items {
		out[i] = ArrayItem{Key: item.key, Index: i, Path: arr.name.Index(i).String()}
	}
	return out
}

// Len returns the number of items.
func (a *FieldArray) Len() int {
	f := a.form
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.arrays[a.key].items)
}

// Append adds an item at the end.
func (a *FieldArray) Append(ctx context.Context, value any) error {
	return a.mutate(ctx, "append", func(arr *arrayState) (bool, error) {
		item, err := a.form.newItemLocked(arr, value)
		if err != nil {
			return false, err
		}
		arr.items = append(arr.items, item)
		return true, nil
	})
}

// Prepend adds an item at the start.
func (a *FieldArray) Prepend(ctx context.Context, value any) error {
	return a.Insert(ctx, 0, value)
}

// Insert adds an item at index, shifting later items up.
func (a *FieldArray) Insert(ctx context.Context, index int, value any) error {
	return a.mutate(ctx, "insert", func(arr *arrayState) (bool, error) {
		if index < 0 || index > len(arr.items) {
			return false, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
		}
		item, err := a.form.newItemLocked(arr, value)
		if err != nil {
			return false, err
		}
		arr.items = append(arr.items, nil)
		copy(arr.items[index+1:], arr.items[index:])
		arr.items[index] = item
		return true, nil
	})
}

// Remove deletes the item at index. Later items keep their values, errors
// and touched state under their new paths. At the minimum length Remove is
// a no-op, or returns ErrMinItems when the array is strict.
func (a *FieldArray) Remove(ctx context.Context, index int) error {
	return a.mutate(ctx, "remove", func(arr *arrayState) (bool, error) {
		if len(arr.items) <= arr.minItems {
			if arr.strict {
				return false, ErrMinItems
			}
			return false, nil
		}
		if index < 0 || index >= len(arr.items) {
			return false, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
		}
		arr.items = append(arr.items[:index], arr.items[index+1:]...)
		return true, nil
	})
}

// Swap exchanges two items.
func (a *FieldArray) Swap(ctx context.Context, i, j int) error {
	return a.mutate(ctx, "swap", func(arr *arrayState) (bool, error) {
		if err := arr.checkIndex(i, j); err != nil {
			return false, err
		}
		if i == j {
			return false, nil
		}
		arr.items[i], arr.items[j] = arr.items[j], arr.items[i]
		return true, nil
	})
}

// Move relocates the item at from to position to.
func (a *FieldArray) Move(ctx context.Context, from, to int) error {
	return a.mutate(ctx, "move", func(arr *arrayState) (bool, error) {
		if err := arr.checkIndex(from, to); err != nil {
			return false, err
		}
		if from == to {
			return false, nil
		}
		item := arr.items[from]
		arr.items = append(arr.items[:from], arr.items[from+1:]...)
		arr.items = append(arr.items, nil)
		copy(arr.items[to+1:], arr.items[to:])
		arr.items[to] = item
		return true, nil
	})
}

func (a *FieldArray) mutate(ctx context.Context, op string, fn func(arr *arrayState) (bool, error)) error {
	f := a.form
	started := time.Now()

	f.mu.Lock()
	if err := f.readyLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	arr := f.arrays[a.key]
	changed, err := fn(arr)
	if err != nil || !changed {
		f.mu.Unlock()
		f.cfg.logger.LogEvent(LogEvent{Op: "array." + op, Path: a.key, Err: err})
		return err
	}
	f.relayoutLocked(arr)
	f.version++
	revalidate := f.validated
	ev := f.emitLocked(EventArray, a.key)
	f.mu.Unlock()

	f.cfg.logger.LogEvent(LogEvent{
		Op:       "array." + op,
		Path:     a.key,
		Duration: time.Since(started),
		Attrs:    map[string]any{"items": len(arr.items)},
	})
	f.dispatch(ev)
	if revalidate {
		_, err := f.ValidateAll(ctx)
		return err
	}
	return nil
}

func (arr *arrayState) checkIndex(indices ...int) error {
	for _, i := range indices {
		if i < 0 || i >= len(arr.items) {
			return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
		}
	}
	return nil
}

// acceptSub fixes the item kind from a sub path, rejecting a mix of scalar
// and object items.
func (arr *arrayState) acceptSub(sub string) error {
	if sub == "" {
		return arr.acceptKind(itemScalar)
	}
	return arr.acceptKind(itemObject)
}

// newItemLocked builds an item with a fresh key. Its fields are the leaves
// of value plus every sub path that has item rules.
func (f *Form) newItemLocked(arr *arrayState, value any) (*arrayItem, error) {
	value = tree.Clone(value)
	leaves := make(map[string]any)
	switch typed := value.(type) {
	case map[string]any:
		if err := arr.acceptKind(itemObject); err != nil {
			return nil, &InvalidPathError{Path: arr.key, Err: err}
		}
		for _, leaf := range tree.Leaves(typed) {
			leaves[strings.Join(leaf.Segments, ".")] = leaf.Value
		}
	case nil:
		if arr.kind == itemScalar {
			leaves[""] = nil
		}
	default:
		if err := arr.acceptKind(itemScalar); err != nil {
			return nil, &InvalidPathError{Path: arr.key, Err: err}
		}
		leaves[""] = typed
	}

	item := &arrayItem{key: uuid.NewString(), fields: make(map[string]*entry)}
	for sub, v := range leaves {
		e := &entry{rules: arr.itemRules[sub], disabled: arr.itemRules[sub].Disabled}
		e.value = v
		item.fields[sub] = e
	}
	for sub, r := range arr.itemRules {
		if _, ok := item.fields[sub]; ok {
			continue
		}
		if (sub == "") != (arr.kind == itemScalar) {
			continue
		}
		item.fields[sub] = &entry{rules: r, disabled: r.Disabled}
	}
	return item, nil
}

func (arr *arrayState) acceptKind(kind itemKind) error {
	if arr.kind != itemUnknown && arr.kind != kind {
		return errors.New("items mix scalar values and objects")
	}
	arr.kind = kind
	return nil
}

// registerItemLocked attaches a new field to an existing item and records
// its rules as the template for future items.
func (f *Form) registerItemLocked(arr *arrayState, idx int, sub string, p fieldpath.Path, r rules.Rules) error {
	if err := arr.acceptSub(sub); err != nil {
		return &InvalidPathError{Path: p.String(), Err: err}
	}
	if f.ready && idx >= len(arr.items) {
		return &InvalidPathError{Path: p.String(), Err: fmt.Errorf("%w: %d", ErrIndexOutOfRange, idx)}
	}
	arr.itemRules[sub] = r
	if !f.ready {
		// items are built from the defaults once they resolve
		return nil
	}
	item := arr.items[idx]
	item.fields[sub] = &entry{rules: r, disabled: r.Disabled, value: f.currentValueLocked(p)}
	f.relayoutLocked(arr)
	return nil
}

// replaceItemsLocked swaps every item for new ones built from values.
func (f *Form) replaceItemsLocked(arr *arrayState, values []any) error {
	items := make([]*arrayItem, 0, len(values))
	for _, v := range values {
		item, err := f.newItemLocked(arr, v)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	arr.items = items
	f.relayoutLocked(arr)
	return nil
}

// rebuildArrayLocked recreates the items from the base values, used when
// defaults are (re)applied.
func (f *Form) rebuildArrayLocked(arr *arrayState) {
	list, _ := tree.Get(f.values, arr.name.Segments())
	values, _ := list.([]any)
	def, _ := tree.Get(f.defaults, arr.name.Segments())
	defaults, _ := def.([]any)
	arr.defaultLen = len(defaults)

	arr.items = nil
	for _, v := range values {
		item, err := f.newItemLocked(arr, v)
		if err != nil {
			f.cfg.logger.LogEvent(LogEvent{Op: "array.rebuild", Path: arr.key, Err: err})
			continue
		}
		arr.items = append(arr.items, item)
	}
	f.relayoutLocked(arr)
}

// relayoutLocked re-keys every entry of the array after its items changed.
// Entries move with their item, so values, errors and touched state follow
// the item to its new index. Dirty flags are recomputed against the
// defaults at the new paths.
func (f *Form) relayoutLocked(arr *arrayState) {
	pos := -1
	kept := make([]string, 0, len(f.order))
	for _, key := range f.order {
		if hasKeyPrefix(key, arr.key) {
			if pos < 0 {
				pos = len(kept)
			}
			if e, ok := f.entries[key]; ok {
				f.shape.Remove(e.path)
				delete(f.entries, key)
			}
			continue
		}
		kept = append(kept, key)
	}

	var placed []string
	for i, item := range arr.items {
		subs := make([]string, 0, len(item.fields))
		for sub := range item.fields {
			subs = append(subs, sub)
		}
		sort.Strings(subs)
		for _, sub := range subs {
			e := item.fields[sub]
			p := arr.name.Index(i)
			if sub != "" {
				p = p.Child(strings.Split(sub, ".")...)
			}
			e.path = p
			e.key = p.String()
			e.itemKey = item.key
			def, ok := tree.Get(f.defaults, p.Segments())
			e.def, e.hasDefault = tree.Clone(def), ok
			e.markDirty()
			if err := f.shape.Add(p, fieldpath.KindLeaf); err != nil {
				f.cfg.logger.LogEvent(LogEvent{Op: "array.layout", Path: e.key, Err: err})
			}
			f.entries[e.key] = e
			placed = append(placed, e.key)
		}
	}

	if pos < 0 {
		pos = len(kept)
	}
	order := make([]string, 0, len(kept)+len(placed))
	order = append(order, kept[:pos]...)
	order = append(order, placed...)
	order = append(order, kept[pos:]...)
	f.order = order
	arr.dirty = len(arr.items) != arr.defaultLen
}

// arrayForLocked finds the field array that owns p, returning the item index
// and the path inside the item.
func (f *Form) arrayForLocked(p fieldpath.Path) (*arrayState, int, string, bool) {
	for _, arr := range f.arrays {
		rel, ok := p.TrimPrefix(arr.name)
		if !ok || rel.Len() == 0 {
			continue
		}
		idx, ok := fieldpath.IsIndex(rel.Segment(0))
		if !ok {
			continue
		}
		return arr, idx, strings.Join(rel.Segments()[1:], "."), true
	}
	return nil, 0, "", false
}
