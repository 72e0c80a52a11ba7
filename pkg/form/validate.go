package form

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formstate/internal/tree"
	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/rules"
)

// maxValidationAttempts bounds how often a pass restarts because values
// changed while validators were running.
const maxValidationAttempts = 3

type target struct {
	key   string
	value any
	rules rules.Rules
}

// validate evaluates every field against one consistent snapshot. apply runs
// under the form lock with the results of the pass; it is skipped when the
// pass fails. The aggregate IsValid flag is always refreshed.
func (f *Form) validate(ctx context.Context, op string, apply func(errs FieldErrors)) (FieldErrors, error) {
	for attempt := 1; ; attempt++ {
		started := time.Now()

		f.mu.Lock()
		if err := f.readyLocked(); err != nil {
			f.mu.Unlock()
			return nil, err
		}
		snapshot := f.snapshotLocked(true)
		version := f.version
		resolver := f.cfg.resolver
		var targets []target
		if resolver == nil {
			targets = f.targetsLocked(f.order)
		}
		f.lc.validating++
		ev := f.emitLocked(EventValidating, "")
		f.mu.Unlock()
		f.dispatch(ev)

		errs, err := f.runValidation(ctx, snapshot, resolver, targets)

		f.mu.Lock()
		f.lc.validating--
		if err == nil && f.version != version && attempt < maxValidationAttempts {
			ev := f.emitLocked(EventValidate, "")
			f.mu.Unlock()
			f.dispatch(ev)
			continue
		}
		if err == nil {
			f.lc.isValid = len(errs) == 0
			f.validated = true
			if apply != nil {
				apply(errs)
			}
		}
		ev = f.emitLocked(EventValidate, "")
		f.mu.Unlock()

		f.cfg.logger.LogEvent(LogEvent{
			Op:       op,
			Duration: time.Since(started),
			Err:      err,
			Attrs:    map[string]any{"errors": len(errs), "attempt": attempt},
		})
		f.dispatch(ev)
		return errs, err
	}
}

func (f *Form) targetsLocked(keys []string) []target {
	out := make([]target, 0, len(keys))
	for _, key := range keys {
		e := f.entries[key]
		if e == nil || e.disabled || !e.rules.HasConstraints() {
			continue
		}
		out = append(out, target{key: key, value: tree.Clone(e.value), rules: e.rules})
	}
	return out
}

// runValidation executes either the resolver or the per-field rules. Rules
// for different fields run concurrently; results are collected per field so
// the outcome does not depend on scheduling.
func (f *Form) runValidation(ctx context.Context, snapshot map[string]any, resolver Resolver, targets []target) (FieldErrors, error) {
	if resolver != nil {
		errs, err := resolver.Resolve(ctx, snapshot)
		if err != nil {
			return nil, &ResolutionError{Stage: StageResolver, Err: err}
		}
		if errs == nil {
			errs = make(FieldErrors)
		}
		return errs.clone(), nil
	}

	results := make([]*FieldError, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			v, err := t.rules.Evaluate(gctx, t.value, snapshot)
			if err != nil {
				return fmt.Errorf("form: validate %q: %w", t.key, err)
			}
			results[i] = violationError(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	errs := make(FieldErrors)
	for i, fe := range results {
		if fe != nil {
			errs[targets[i].key] = *fe
		}
	}
	return errs, nil
}

// ValidateAll evaluates every field without attaching errors to them. It
// refreshes the aggregate IsValid flag.
func (f *Form) ValidateAll(ctx context.Context) (FieldErrors, error) {
	return f.validate(ctx, "validateAll", nil)
}

// ValidateField evaluates one field without changing any state.
func (f *Form) ValidateField(ctx context.Context, path string) (*FieldError, error) {
	path = entryKey(path)
	f.mu.Lock()
	if err := f.readyLocked(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	e, ok := f.entries[path]
	if !ok {
		f.mu.Unlock()
		return nil, unknownField(path)
	}
	snapshot := f.snapshotLocked(true)
	resolver := f.cfg.resolver
	targets := f.targetsLocked([]string{e.key})
	f.mu.Unlock()

	errs, err := f.runValidation(ctx, snapshot, resolver, targets)
	if err != nil {
		return nil, err
	}
	if fe, ok := errs[path]; ok {
		return &fe, nil
	}
	return nil, nil
}

// Trigger validates the given paths (every field when none are given),
// attaches the results to them and reports whether they all passed. A path
// naming an object or field array covers every field below it.
func (f *Form) Trigger(ctx context.Context, paths ...string) (bool, error) {
	f.mu.Lock()
	keys, err := f.keysLocked(paths)
	f.mu.Unlock()
	if err != nil {
		return false, err
	}

	valid := true
	_, err = f.validate(ctx, "trigger", func(errs FieldErrors) {
		if len(paths) == 0 {
			f.attachAllLocked(errs)
		} else {
			f.attachLocked(keys, errs)
		}
		for _, key := range keys {
			if _, failed := errs[key]; failed {
				valid = false
			}
		}
		if len(paths) == 0 && len(errs) > 0 {
			valid = false
		}
	})
	if err != nil {
		return false, err
	}
	return valid, nil
}

// validateFields runs a full pass and attaches the results for keys only.
func (f *Form) validateFields(ctx context.Context, op string, keys []string) error {
	_, err := f.validate(ctx, op, func(errs FieldErrors) {
		f.attachLocked(keys, errs)
	})
	return err
}

func (f *Form) attachLocked(keys []string, errs FieldErrors) {
	for _, key := range keys {
		e := f.entries[key]
		if e == nil {
			continue
		}
		if fe, ok := errs[key]; ok {
			e.err = &fe
		} else {
			e.err = nil
		}
	}
}

// attachAllLocked replaces every error with the results of a full pass.
// Errors on paths without a registered field are kept on the form.
func (f *Form) attachAllLocked(errs FieldErrors) {
	for _, e := range f.entries {
		if fe, ok := errs[e.key]; ok {
			e.err = &fe
		} else {
			e.err = nil
		}
	}
	root, hasRoot := f.extraErrors[RootErrorKey]
	f.extraErrors = make(FieldErrors)
	if hasRoot {
		f.extraErrors[RootErrorKey] = root
	}
	for path, fe := range errs {
		if _, ok := f.entries[path]; !ok {
			f.extraErrors[path] = fe
		}
	}
}

// SetError attaches a manual error, for example one returned by a server.
// Paths without a registered field are accepted. The form is marked invalid
// until the next validation pass.
func (f *Form) SetError(path string, fe FieldError) error {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return &InvalidPathError{Path: path, Err: err}
	}
	key := p.String()

	f.mu.Lock()
	if e, ok := f.entries[key]; ok {
		e.err = &fe
	} else {
		if f.extraErrors == nil {
			f.extraErrors = make(FieldErrors)
		}
		f.extraErrors[key] = fe
	}
	f.lc.isValid = false
	ev := f.emitLocked(EventError, key)
	f.mu.Unlock()
	f.dispatch(ev)
	return nil
}

// ClearErrors removes errors from the given paths, or from every path when
// none are given. It does not revalidate.
func (f *Form) ClearErrors(paths ...string) {
	f.mu.Lock()
	if len(paths) == 0 {
		for _, e := range f.entries {
			e.err = nil
		}
		f.extraErrors = nil
	} else {
		for _, raw := range paths {
			p, err := fieldpath.Parse(raw)
			if err != nil {
				continue
			}
			for _, e := range f.entries {
				if e.path.HasPrefix(p) {
					e.err = nil
				}
			}
			delete(f.extraErrors, p.String())
		}
	}
	ev := f.emitLocked(EventError, "")
	f.mu.Unlock()
	f.dispatch(ev)
}
