package form

import (
	"context"
	"fmt"
	"time"
)

// RootErrorKey is the error path used for failures that belong to the form
// as a whole, such as a failing submit handler.
const RootErrorKey = "root"

// SubmitHandler receives the validated snapshot. Disabled fields are not
// part of it.
type SubmitHandler func(ctx context.Context, values map[string]any) error

// InvalidHandler receives the errors of a failed submit.
type InvalidHandler func(ctx context.Context, errs FieldErrors)

// HandleSubmit binds handlers into a reusable submit function.
func (f *Form) HandleSubmit(onValid SubmitHandler, onInvalid InvalidHandler) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return f.Submit(ctx, onValid, onInvalid)
	}
}

// Submit runs a full validation pass and, if it succeeds, calls onValid with
// the snapshot. Validation failures go to onInvalid and are not returned as
// errors. A failing (or panicking) onValid is reported to onInvalid under
// RootErrorKey and returned as a *SubmissionError. A second Submit while one
// is running fails with ErrSubmitInProgress.
func (f *Form) Submit(ctx context.Context, onValid SubmitHandler, onInvalid InvalidHandler) error {
	started := time.Now()

	f.mu.Lock()
	if err := f.readyLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.lc.isSubmitting {
		f.mu.Unlock()
		f.cfg.logger.LogEvent(LogEvent{Op: "submit", Err: ErrSubmitInProgress})
		return ErrSubmitInProgress
	}
	f.lc.isSubmitting = true
	f.lc.submitCount++
	delete(f.extraErrors, RootErrorKey)
	ev := f.emitLocked(EventSubmit, "")
	f.mu.Unlock()
	f.dispatch(ev)

	success := false
	var result error
	defer func() {
		f.finishSubmit(success)
		f.cfg.logger.LogEvent(LogEvent{
			Op:       "submit",
			Duration: time.Since(started),
			Err:      result,
			Attrs:    map[string]any{"success": success},
		})
	}()

	var payload map[string]any
	errs, err := f.validate(ctx, "submit.validate", func(errs FieldErrors) {
		f.attachAllLocked(errs)
		payload = f.snapshotLocked(true)
	})
	if err != nil {
		result = err
		return err
	}
	if len(errs) > 0 {
		if onInvalid != nil {
			onInvalid(ctx, errs.clone())
		}
		return nil
	}

	if onValid != nil {
		if err := callSubmitHandler(ctx, onValid, payload); err != nil {
			rootErr := FieldError{Type: "submit", Message: err.Error()}
			f.mu.Lock()
			if f.extraErrors == nil {
				f.extraErrors = make(FieldErrors)
			}
			f.extraErrors[RootErrorKey] = rootErr
			ev := f.emitLocked(EventError, RootErrorKey)
			f.mu.Unlock()
			f.dispatch(ev)

			if onInvalid != nil {
				onInvalid(ctx, FieldErrors{RootErrorKey: rootErr})
			}
			result = &SubmissionError{Err: err}
			return result
		}
	}
	success = true
	return nil
}

func (f *Form) finishSubmit(success bool) {
	f.mu.Lock()
	f.lc.isSubmitting = false
	f.lc.isSubmitted = true
	f.lc.isSubmitSuccessful = success
	ev := f.emitLocked(EventSubmit, "")
	f.mu.Unlock()
	f.dispatch(ev)
}

func callSubmitHandler(ctx context.Context, fn SubmitHandler, values map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, values)
}
