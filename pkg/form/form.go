// Package form tracks the state of a structured form: registered fields,
// their values and rules, validation results, field arrays and the submit
// lifecycle. A Form is safe for concurrent use.
package form

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/fieldpath"
)

type lifecycle struct {
	isValid            bool
	isSubmitting       bool
	isSubmitted        bool
	isSubmitSuccessful bool
	validating         int
	submitCount        int
}

// Form is the state tracker.
type Form struct {
	cfg config

	mu          sync.Mutex
	shape       *fieldpath.Shape
	entries     map[string]*entry
	order       []string
	arrays      map[string]*arrayState
	defaults    map[string]any
	values      map[string]any
	extraErrors FieldErrors
	lc          lifecycle
	validated   bool
	version     uint64

	ready      bool
	settled    bool
	readyCh    chan struct{}
	loadErr    error
	generation uint64
	cancelLoad context.CancelFunc
	closed     bool

	observers    map[uint64]Observer
	nextObserver uint64
	seq          uint64
}

// New builds a Form. With static defaults (or none) the form is ready
// immediately; with a DefaultsSupplier it becomes ready once the supplier
// returns.
func New(opts ...Option) (*Form, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	for _, mode := range []*Mode{&cfg.mode, &cfg.reValidateMode} {
		parsed, err := ParseMode(string(*mode))
		if err != nil {
			return nil, &ConfigurationError{Err: err}
		}
		*mode = parsed
	}

	f := &Form{
		cfg:       cfg,
		shape:     fieldpath.NewShape(),
		entries:   make(map[string]*entry),
		arrays:    make(map[string]*arrayState),
		defaults:  make(map[string]any),
		values:    make(map[string]any),
		readyCh:   make(chan struct{}),
		observers: make(map[uint64]Observer),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cfg.supplier == nil {
		f.resetLocked(cfg.defaults)
		f.ready = true
		f.settleLocked()
		return f, nil
	}
	f.startLoadLocked(cfg.loadCtx, cfg.supplier)
	return f, nil
}

// Ready returns a channel closed once the current defaults resolution has
// settled, successfully or not. Check Err after it closes.
func (f *Form) Ready() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readyCh
}

// Err reports the last defaults resolution failure. A failed Reload on a
// ready form keeps the current defaults and values; Err returns the failure
// until a later resolution succeeds.
func (f *Form) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadErr
}

// WaitReady blocks until defaults are resolved, resolution fails, or ctx is
// done.
func (f *Form) WaitReady(ctx context.Context) error {
	for {
		f.mu.Lock()
		ch := f.readyCh
		ready := f.ready
		err := f.loadErr
		closed := f.closed
		f.mu.Unlock()

		switch {
		case closed:
			return ErrClosed
		case ready:
			return nil
		case err != nil:
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Reload resolves defaults again. A newer Reload supersedes any in-flight
// resolution; only the latest one is applied. ctx bounds the resolution.
// A nil supplier reuses the one configured on the form. Once applied, the
// new defaults reset field state the way Reset(WithValues) does.
func (f *Form) Reload(ctx context.Context, supplier DefaultsSupplier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if supplier == nil {
		supplier = f.cfg.supplier
	}
	if supplier == nil {
		return &ConfigurationError{Err: fmt.Errorf("reload requires a defaults supplier")}
	}
	if !f.ready && f.settled {
		f.readyCh = make(chan struct{})
		f.settled = false
		f.loadErr = nil
	}
	f.startLoadLocked(ctx, supplier)
	return nil
}

// Close cancels any in-flight defaults resolution. Later operations return
// ErrClosed.
func (f *Form) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.cancelLoad != nil {
		f.cancelLoad()
		f.cancelLoad = nil
	}
	f.settleLocked()
	return nil
}

func (f *Form) startLoadLocked(ctx context.Context, supplier DefaultsSupplier) {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.cancelLoad != nil {
		f.cancelLoad()
	}
	f.generation++
	loadCtx, cancel := context.WithCancel(ctx)
	f.cancelLoad = cancel
	go f.load(loadCtx, cancel, f.generation, supplier)
}

func (f *Form) load(ctx context.Context, cancel context.CancelFunc, generation uint64, supplier DefaultsSupplier) {
	defer cancel()
	started := time.Now()
	values, err := supplier.Defaults(ctx)

	f.mu.Lock()
	if generation != f.generation || f.closed {
		f.mu.Unlock()
		f.cfg.logger.LogEvent(LogEvent{
			Op:       "defaults.stale",
			Duration: time.Since(started),
			Attrs:    map[string]any{"generation": generation},
		})
		return
	}
	f.cancelLoad = nil

	if err != nil {
		f.loadErr = &ResolutionError{Stage: StageDefaults, Err: err}
		f.settleLocked()
		ev := f.emitLocked(EventLoadFailed, "")
		f.mu.Unlock()
		f.cfg.logger.LogEvent(LogEvent{Op: "defaults", Duration: time.Since(started), Err: err})
		f.dispatch(ev)
		return
	}

	wasValidated := f.validated
	f.loadErr = nil
	f.resetLocked(values)
	f.ready = true
	f.settleLocked()
	ev := f.emitLocked(EventReady, "")
	f.mu.Unlock()

	f.cfg.logger.LogEvent(LogEvent{Op: "defaults", Duration: time.Since(started)})
	f.dispatch(ev)
	if wasValidated {
		_, _ = f.ValidateAll(context.Background())
	}
}

func (f *Form) settleLocked() {
	if f.settled {
		return
	}
	f.settled = true
	close(f.readyCh)
}

func (f *Form) readyLocked() error {
	switch {
	case f.closed:
		return ErrClosed
	case f.ready:
		return nil
	case f.loadErr != nil:
		return fmt.Errorf("%w: %w", ErrNotReady, f.loadErr)
	default:
		return ErrNotReady
	}
}

// resetLocked installs defaults and returns every field to its pristine
// state. The submit count is left to the caller.
func (f *Form) resetLocked(defaults map[string]any) {
	f.defaults = tree.CloneMap(defaults)
	f.values = tree.CloneMap(defaults)

	for _, key := range f.order {
		e := f.entries[key]
		if e == nil || e.itemKey != "" {
			continue
		}
		f.resetEntryLocked(e)
	}
	for _, arr := range f.sortedArraysLocked() {
		f.rebuildArrayLocked(arr)
	}

	f.extraErrors = nil
	f.lc.isValid = false
	f.lc.isSubmitted = false
	f.lc.isSubmitSuccessful = false
	f.validated = false
	f.version++
}

func (f *Form) resetEntryLocked(e *entry) {
	e.def, e.hasDefault = tree.Get(f.defaults, e.path.Segments())
	e.def = tree.Clone(e.def)
	e.value = tree.Clone(e.def)
	e.err = nil
	e.touched = false
	e.dirty = false
}

// currentValueLocked returns the live base value for a path that has no
// entry yet.
func (f *Form) currentValueLocked(p fieldpath.Path) any {
	v, _ := tree.Get(f.values, p.Segments())
	return tree.Clone(v)
}

// snapshotLocked assembles the value tree: the base values, field array
// containers rebuilt from their items, then every registered entry.
func (f *Form) snapshotLocked(omitDisabled bool) map[string]any {
	out := tree.CloneMap(f.values)
	for _, arr := range f.sortedArraysLocked() {
		list := make([]any, len(arr.items))
		if arr.kind == itemObject {
			for i := range list {
				list[i] = make(map[string]any)
			}
		}
		_ = tree.Set(out, arr.name.Segments(), list)
	}

	var disabled []*entry
	for _, key := range f.order {
		e := f.entries[key]
		if e == nil {
			continue
		}
		if e.disabled && omitDisabled {
			disabled = append(disabled, e)
			continue
		}
		if e.value == nil && !e.hasDefault {
			continue
		}
		_ = tree.Set(out, e.path.Segments(), tree.Clone(e.value))
	}
	for _, e := range disabled {
		tree.Delete(out, e.path.Segments())
	}
	return out
}

func (f *Form) sortedArraysLocked() []*arrayState {
	out := make([]*arrayState, 0, len(f.arrays))
	for _, arr := range f.arrays {
		out = append(out, arr)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key < out[j].key
	})
	return out
}

// keysLocked expands paths into registered entry keys. A path that names an
// object or array selects every entry below it.
func (f *Form) keysLocked(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return append([]string(nil), f.order...), nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range paths {
		p, err := fieldpath.Parse(raw)
		if err != nil {
			return nil, &InvalidPathError{Path: raw, Err: err}
		}
		matched := false
		for _, key := range f.order {
			e := f.entries[key]
			if e == nil || !e.path.HasPrefix(p) {
				continue
			}
			matched = true
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
		if !matched {
			return nil, unknownField(raw)
		}
	}
	return out, nil
}

func (f *Form) removeOrderLocked(key string) {
	for i, existing := range f.order {
		if existing == key {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}

func hasKeyPrefix(key, prefix string) bool {
	return strings.HasPrefix(key, prefix+".")
}
