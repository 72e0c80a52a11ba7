package form

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/rules"
)

func mustForm(t *testing.T, opts ...Option) *Form {
	t.Helper()
	f, err := New(opts...)
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func mustRegister(t *testing.T, f *Form, path string, r rules.Rules) Binding {
	t.Helper()
	b, err := f.Register(path, r)
	if err != nil {
		t.Fatalf("register %s: %v", path, err)
	}
	return b
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestResetRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	defaults := map[string]any{
		"firstName": "Bruce",
		"age":       30,
		"social":    map[string]any{"twitter": "@bw"},
	}
	f := mustForm(t, WithDefaultValues(defaults))
	mustRegister(t, f, "firstName", rules.Rules{})
	mustRegister(t, f, "age", rules.Rules{ValueAs: rules.ValueAsNumber})
	mustRegister(t, f, "social.twitter", rules.Rules{})

	if err := f.Change(ctx, "firstName", "Alfred"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if err := f.Change(ctx, "age", "41"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if !f.State().IsDirty {
		t.Fatalf("expected dirty after change")
	}
	if err := f.Submit(ctx, func(context.Context, map[string]any) error { return nil }, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := f.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, err := f.GetValues()
	if err != nil {
		t.Fatalf("get values: %v", err)
	}
	if diff := cmp.Diff(defaults, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	state := f.State()
	if state.IsDirty || state.IsSubmitted || state.IsSubmitSuccessful {
		t.Fatalf("unexpected state after reset: %+v", state)
	}
	if state.SubmitCount != 1 {
		t.Fatalf("submit count should survive reset, got %d", state.SubmitCount)
	}
	if len(f.TouchedFields()) != 0 || len(f.DirtyFields()) != 0 {
		t.Fatalf("expected pristine fields")
	}

	if err := f.Reset(ctx, ResetSubmitCount()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if f.State().SubmitCount != 0 {
		t.Fatalf("expected submit count reset")
	}
}

func TestResetWithValuesReplacesDefaults(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithDefaultValues(map[string]any{"name": "a"}))
	mustRegister(t, f, "name", rules.Rules{})

	if err := f.Reset(ctx, WithValues(map[string]any{"name": "b"})); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := f.Change(ctx, "name", "b"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if f.State().IsDirty {
		t.Fatalf("value equal to the new default must not be dirty")
	}
}

func TestRegisterRejectsBadPaths(t *testing.T) {
	f := mustForm(t)

	if _, err := f.Register("a..b", rules.Rules{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	mustRegister(t, f, "profile", rules.Rules{})
	_, err := f.Register("profile.name", rules.Rules{})
	var pathErr *InvalidPathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("expected invalid path error, got %v", err)
	}
	var shapeErr *fieldpath.ShapeError
	if !errors.As(err, &shapeErr) || shapeErr.Node != "profile" {
		t.Fatalf("expected shape conflict on profile, got %v", err)
	}
}

func TestRegisterTwiceKeepsState(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithDefaultValues(map[string]any{"name": ""}))
	mustRegister(t, f, "name", rules.Rules{})
	if err := f.Change(ctx, "name", "Bruce"); err != nil {
		t.Fatalf("change: %v", err)
	}

	mustRegister(t, f, "name", rules.Rules{MinLength: &rules.Length{Value: 10}})
	state, err := f.FieldState("name")
	if err != nil {
		t.Fatalf("field state: %v", err)
	}
	if state.Value != "Bruce" || !state.IsDirty {
		t.Fatalf("re-register lost state: %+v", state)
	}
	fe, err := f.ValidateField(ctx, "name")
	if err != nil || fe == nil || fe.Type != string(rules.KindMinLength) {
		t.Fatalf("expected new rules to apply, got %+v %v", fe, err)
	}
}

func TestSubmitRequiredFieldFails(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithDefaultValues(map[string]any{"username": ""}))
	mustRegister(t, f, "username", rules.Rules{Required: &rules.Required{Message: "Username is required"}})

	called := false
	var got FieldErrors
	err := f.Submit(ctx,
		func(context.Context, map[string]any) error {
			called = true
			return nil
		},
		func(_ context.Context, errs FieldErrors) { got = errs },
	)
	if err != nil {
		t.Fatalf("validation failures are not submit errors: %v", err)
	}
	if called {
		t.Fatalf("onValid must not run")
	}
	want := FieldErrors{"username": {Type: string(rules.KindRequired), Message: "Username is required"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	state := f.State()
	if state.SubmitCount != 1 || !state.IsSubmitted || state.IsSubmitSuccessful || state.IsSubmitting || state.IsValid {
		t.Fatalf("unexpected state: %+v", state)
	}
	fs, _ := f.FieldState("username")
	if !fs.Invalid || fs.Error.Message != "Username is required" {
		t.Fatalf("error not attached: %+v", fs)
	}
}

func TestSubmitDeliversSnapshot(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithDefaultValues(map[string]any{
		"username": "bruce",
		"social":   map[string]any{"twitter": "@bw"},
		"token":    "hidden",
	}))
	mustRegister(t, f, "username", rules.Rules{Required: &rules.Required{}})
	mustRegister(t, f, "social.twitter", rules.Rules{})
	mustRegister(t, f, "token", rules.Rules{Required: &rules.Required{}, Disabled: true})
	if err := f.SetValue(ctx, "token", ""); err != nil {
		t.Fatalf("set value: %v", err)
	}

	var got map[string]any
	err := f.Submit(ctx, func(_ context.Context, values map[string]any) error {
		got = values
		return nil
	}, func(_ context.Context, errs FieldErrors) {
		t.Fatalf("unexpected errors: %v", errs)
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := map[string]any{"username": "bruce", "social": map[string]any{"twitter": "@bw"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	state := f.State()
	if !state.IsSubmitSuccessful || state.SubmitCount != 1 || !state.IsValid {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestSubmitHandlerFailure(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithDefaultValues(map[string]any{"name": "x"}))
	mustRegister(t, f, "name", rules.Rules{})

	boom := errors.New("server down")
	var got FieldErrors
	err := f.Submit(ctx,
		func(context.Context, map[string]any) error { return boom },
		func(_ context.Context, errs FieldErrors) { got = errs },
	)

	var subErr *SubmissionError
	if !errors.As(err, &subErr) || !errors.Is(err, boom) {
		t.Fatalf("expected submission error, got %v", err)
	}
	want := FieldErrors{RootErrorKey: {Type: "submit", Message: "server down"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if _, ok := f.Errors()[RootErrorKey]; !ok {
		t.Fatalf("root error not recorded")
	}
	state := f.State()
	if state.IsSubmitting || state.IsSubmitSuccessful || !state.IsSubmitted {
		t.Fatalf("unexpected state: %+v", state)
	}

	err = f.Submit(ctx, func(context.Context, map[string]any) error { panic("kaboom") }, nil)
	if !errors.As(err, &subErr) {
		t.Fatalf("expected panics to surface as submission errors, got %v", err)
	}
	if f.State().IsSubmitting {
		t.Fatalf("submitting flag leaked after panic")
	}
}

func TestConcurrentSubmitSingleSuccess(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithDefaultValues(map[string]any{"name": "x"}))
	mustRegister(t, f, "name", rules.Rules{Required: &rules.Required{}})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- f.Submit(ctx, func(context.Context, map[string]any) error {
			close(entered)
			<-release
			return nil
		}, nil)
	}()

	<-entered
	if !f.State().IsSubmitting {
		t.Fatalf("expected submitting state while handler runs")
	}
	if err := f.Submit(ctx, func(context.Context, map[string]any) error { return nil }, nil); !errors.Is(err, ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}

	state := f.State()
	if state.SubmitCount != 1 || !state.IsSubmitSuccessful {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestIsValidMatchesFieldValidation(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t,
		WithMode(ModeOnChange),
		WithDefaultValues(map[string]any{"email": "", "age": ""}),
	)
	mustRegister(t, f, "email", rules.Rules{
		Required: &rules.Required{Message: "Email is required"},
		Pattern:  &rules.Pattern{Regexp: regexp.MustCompile(`^[^@]+@[^@]+$`), Message: "Invalid email format"},
	})
	mustRegister(t, f, "age", rules.Rules{ValueAs: rules.ValueAsNumber, Min: &rules.Limit{Value: 18}})

	steps := []struct {
		path  string
		value any
	}{
		{"email", "bruce"},
		{"email", "bruce@wayne.com"},
		{"age", "12"},
		{"age", "40"},
		{"email", ""},
	}
	for _, step := range steps {
		if err := f.Change(ctx, step.path, step.value); err != nil {
			t.Fatalf("change %s: %v", step.path, err)
		}
		all := true
		for _, path := range []string{"email", "age"} {
			fe, err := f.ValidateField(ctx, path)
			if err != nil {
				t.Fatalf("validate %s: %v", path, err)
			}
			if fe != nil {
				all = false
			}
		}
		if got := f.State().IsValid; got != all {
			t.Fatalf("after %s=%v IsValid=%v, field validation says %v", step.path, step.value, got, all)
		}
	}
}

func TestModesControlWhenErrorsAttach(t *testing.T) {
	ctx := context.Background()
	required := rules.Rules{Required: &rules.Required{Message: "required"}}

	t.Run("onSubmit waits for submit then revalidates on change", func(t *testing.T) {
		f := mustForm(t, WithDefaultValues(map[string]any{"name": "x"}))
		mustRegister(t, f, "name", required)
		if err := f.Change(ctx, "name", ""); err != nil {
			t.Fatalf("change: %v", err)
		}
		if fs, _ := f.FieldState("name"); fs.Invalid {
			t.Fatalf("onSubmit mode must not validate on change")
		}
		_ = f.Submit(ctx, nil, nil)
		if fs, _ := f.FieldState("name"); !fs.Invalid {
			t.Fatalf("submit should attach the error")
		}
		if err := f.Change(ctx, "name", "fixed"); err != nil {
			t.Fatalf("change: %v", err)
		}
		if fs, _ := f.FieldState("name"); fs.Invalid {
			t.Fatalf("reValidate onChange should clear the error")
		}
	})

	t.Run("onBlur validates on blur only", func(t *testing.T) {
		f := mustForm(t, WithMode(ModeOnBlur), WithDefaultValues(map[string]any{"name": ""}))
		mustRegister(t, f, "name", required)
		if err := f.Change(ctx, "name", ""); err != nil {
			t.Fatalf("change: %v", err)
		}
		if fs, _ := f.FieldState("name"); fs.Invalid {
			t.Fatalf("onBlur mode must not validate on change")
		}
		if err := f.Blur(ctx, "name"); err != nil {
			t.Fatalf("blur: %v", err)
		}
		fs, _ := f.FieldState("name")
		if !fs.Invalid || !fs.IsTouched {
			t.Fatalf("expected touched invalid field, got %+v", fs)
		}
	})

	t.Run("onTouched validates changes after first blur", func(t *testing.T) {
		f := mustForm(t, WithMode(ModeOnTouched), WithDefaultValues(map[string]any{"name": "x"}))
		mustRegister(t, f, "name", required)
		_ = f.Change(ctx, "name", "")
		if fs, _ := f.FieldState("name"); fs.Invalid {
			t.Fatalf("untouched field must not validate on change")
		}
		_ = f.Blur(ctx, "name")
		_ = f.Change(ctx, "name", "ok")
		_ = f.Change(ctx, "name", "")
		if fs, _ := f.FieldState("name"); !fs.Invalid {
			t.Fatalf("touched field should validate on change")
		}
	})
}

func TestAsyncDefaults(t *testing.T) {
	release := make(chan struct{})
	f := mustForm(t, WithDefaultsSupplier(DefaultsFunc(func(ctx context.Context) (map[string]any, error) {
		select {
		case <-release:
			return map[string]any{"name": "Bruce"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})))

	if _, err := f.GetValues(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if err := f.Submit(context.Background(), nil, nil); !errors.Is(err, ErrNotReady) {
		t.Fatalf("submit before ready: %v", err)
	}
	mustRegister(t, f, "name", rules.Rules{})

	close(release)
	if err := f.WaitReady(waitCtx(t)); err != nil {
		t.Fatalf("wait ready: %v", err)
	}
	got, err := f.GetValue("name")
	if err != nil || got != "Bruce" {
		t.Fatalf("expected resolved default, got %v %v", got, err)
	}
	if !f.State().IsReady || f.State().IsDirty {
		t.Fatalf("unexpected state: %+v", f.State())
	}
}

func TestDefaultsFailureAndReload(t *testing.T) {
	boom := errors.New("endpoint unavailable")
	f := mustForm(t, WithDefaultsSupplier(DefaultsFunc(func(context.Context) (map[string]any, error) {
		return nil, boom
	})))

	err := f.WaitReady(waitCtx(t))
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Stage != StageDefaults || !errors.Is(err, boom) {
		t.Fatalf("expected defaults resolution error, got %v", err)
	}
	if _, err := f.GetValues(); !errors.Is(err, ErrNotReady) || !errors.As(err, &resErr) {
		t.Fatalf("reads must stay blocked, got %v", err)
	}

	err = f.Reload(context.Background(), DefaultsFunc(func(context.Context) (map[string]any, error) {
		return map[string]any{"name": "ok"}, nil
	}))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := f.WaitReady(waitCtx(t)); err != nil {
		t.Fatalf("wait after reload: %v", err)
	}
	if v, _ := f.GetValue("name"); v != "ok" {
		t.Fatalf("unexpected value %v", v)
	}
}

func TestFailedReloadKeepsDefaults(t *testing.T) {
	f := mustForm(t, WithDefaultsSupplier(DefaultsFunc(func(context.Context) (map[string]any, error) {
		return map[string]any{"name": "ok"}, nil
	})))
	if err := f.WaitReady(waitCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}

	failed := make(chan struct{})
	var once sync.Once
	defer f.Subscribe(func(ev Event) {
		if ev.Kind == EventLoadFailed {
			once.Do(func() { close(failed) })
		}
	})()

	boom := errors.New("endpoint unavailable")
	err := f.Reload(context.Background(), DefaultsFunc(func(context.Context) (map[string]any, error) {
		return nil, boom
	}))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("reload failure was not published")
	}

	if err := f.Err(); !errors.Is(err, boom) {
		t.Fatalf("expected Err to report the reload failure, got %v", err)
	}
	if err := f.WaitReady(waitCtx(t)); err != nil {
		t.Fatalf("form must stay ready, got %v", err)
	}
	if v, _ := f.GetValue("name"); v != "ok" {
		t.Fatalf("expected previous defaults, got %v", v)
	}

	err = f.Reload(context.Background(), DefaultsFunc(func(context.Context) (map[string]any, error) {
		return map[string]any{"name": "again"}, nil
	}))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.Err() != nil {
		if time.Now().After(deadline) {
			t.Fatalf("successful reload did not clear Err")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReloadLatestWins(t *testing.T) {
	releaseFirst := make(chan struct{})
	stale := make(chan struct{})
	var once sync.Once
	logger := LoggerFunc(func(ev LogEvent) {
		if ev.Op == "defaults.stale" {
			once.Do(func() { close(stale) })
		}
	})

	f := mustForm(t, WithLogger(logger), WithDefaultsSupplier(DefaultsFunc(func(context.Context) (map[string]any, error) {
		<-releaseFirst
		return map[string]any{"v": 1}, nil
	})))
	err := f.Reload(context.Background(), DefaultsFunc(func(context.Context) (map[string]any, error) {
		return map[string]any{"v": 2}, nil
	}))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := f.WaitReady(waitCtx(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}

	close(releaseFirst)
	select {
	case <-stale:
	case <-time.After(2 * time.Second):
		t.Fatalf("first resolution was not discarded")
	}
	if v, _ := f.GetValue("v"); v != 2 {
		t.Fatalf("expected latest defaults, got %v", v)
	}
}

func TestResolverMode(t *testing.T) {
	ctx := context.Background()
	resolver := ResolverFunc(func(_ context.Context, values map[string]any) (FieldErrors, error) {
		if values["name"] == "" {
			return FieldErrors{"name": {Type: "required", Message: "Name is required"}}, nil
		}
		return nil, nil
	})
	f := mustForm(t, WithResolver(resolver), WithDefaultValues(map[string]any{"name": ""}))

	_, err := f.Register("name", rules.Rules{Required: &rules.Required{}})
	if !errors.Is(err, ErrConflictingModes) || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected conflicting modes, got %v", err)
	}
	mustRegister(t, f, "name", rules.Rules{})

	ok, err := f.Trigger(ctx)
	if err != nil || ok {
		t.Fatalf("expected invalid form, got %v %v", ok, err)
	}
	if fs, _ := f.FieldState("name"); fs.Error == nil || fs.Error.Message != "Name is required" {
		t.Fatalf("resolver error not attached: %+v", fs)
	}

	if err := f.Change(ctx, "name", "Bruce"); err != nil {
		t.Fatalf("change: %v", err)
	}
	ok, err = f.Trigger(ctx, "name")
	if err != nil || !ok {
		t.Fatalf("expected valid field, got %v %v", ok, err)
	}
}

func TestResolverFailure(t *testing.T) {
	boom := errors.New("schema broken")
	f := mustForm(t, WithResolver(ResolverFunc(func(context.Context, map[string]any) (FieldErrors, error) {
		return nil, boom
	})))
	err := f.Submit(context.Background(), nil, nil)
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Stage != StageResolver {
		t.Fatalf("expected resolver error, got %v", err)
	}
	if f.State().IsSubmitting {
		t.Fatalf("submitting flag leaked")
	}
}

func TestSetValueOptions(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithDefaultValues(map[string]any{"social": map[string]any{"twitter": "", "github": ""}}))
	mustRegister(t, f, "social.twitter", rules.Rules{})
	mustRegister(t, f, "social.github", rules.Rules{Required: &rules.Required{}})

	if err := f.SetValue(ctx, "social.twitter", "@bw"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if f.State().IsDirty {
		t.Fatalf("plain SetValue must not mark dirty")
	}

	err := f.SetValue(ctx, "social", map[string]any{"twitter": "@bruce", "github": ""}, ShouldDirty(), ShouldTouch(), ShouldValidate())
	if err != nil {
		t.Fatalf("set value: %v", err)
	}
	twitter, _ := f.FieldState("social.twitter")
	if twitter.Value != "@bruce" || !twitter.IsDirty || !twitter.IsTouched {
		t.Fatalf("unexpected twitter state: %+v", twitter)
	}
	github, _ := f.FieldState("social.github")
	if !github.Invalid {
		t.Fatalf("expected validation to run for github")
	}

	if err := f.SetValue(ctx, "extra.note", "kept"); err != nil {
		t.Fatalf("set unregistered: %v", err)
	}
	values, _ := f.GetValues("extra")
	if diff := cmp.Diff(map[string]any{"extra": map[string]any{"note": "kept"}}, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestManualErrors(t *testing.T) {
	f := mustForm(t, WithDefaultValues(map[string]any{"email": "a@b.c"}))
	mustRegister(t, f, "email", rules.Rules{})

	if err := f.SetError("email", FieldError{Type: "server", Message: "taken"}); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if err := f.SetError("root.serverError", FieldError{Type: "500", Message: "oops"}); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if got := f.Errors().Paths(); !cmp.Equal(got, []string{"email", "root.serverError"}) {
		t.Fatalf("unexpected error paths %v", got)
	}

	f.ClearErrors("email")
	if got := f.Errors().Paths(); !cmp.Equal(got, []string{"root.serverError"}) {
		t.Fatalf("unexpected error paths %v", got)
	}
	f.ClearErrors()
	if len(f.Errors()) != 0 {
		t.Fatalf("expected no errors")
	}
}

func TestUnregisterDropsField(t *testing.T) {
	f := mustForm(t)
	mustRegister(t, f, "name", rules.Rules{})
	mustRegister(t, f, "email", rules.Rules{})

	if err := f.Unregister("email"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	var paths []string
	for _, e := range f.Entries() {
		paths = append(paths, e.Path)
	}
	if !cmp.Equal(paths, []string{"name"}) {
		t.Fatalf("unexpected entries %v", paths)
	}
	if err := f.Change(context.Background(), "email", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if err := f.Unregister("email"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField on second unregister, got %v", err)
	}
	mustRegister(t, f, "email", rules.Rules{})
}

func TestObserversAndWatch(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithDefaultValues(map[string]any{"firstName": "", "lastName": ""}))
	mustRegister(t, f, "firstName", rules.Rules{})
	mustRegister(t, f, "lastName", rules.Rules{})

	var events []Event
	unsubscribe := f.Subscribe(func(ev Event) { events = append(events, ev) })

	var watched []map[string]any
	stop, err := f.Watch(func(values map[string]any) { watched = append(watched, values) }, "firstName")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stop()

	_ = f.Change(ctx, "lastName", "Wayne")
	_ = f.Change(ctx, "firstName", "Bruce")

	if len(events) != 2 || events[0].Kind != EventChange || events[1].Seq <= events[0].Seq {
		t.Fatalf("unexpected events %+v", events)
	}
	if !events[1].State.IsDirty {
		t.Fatalf("event should carry the new state")
	}
	want := []map[string]any{{"firstName": "Bruce"}}
	if diff := cmp.Diff(want, watched); diff != "" {
		t.Fatalf("watch mismatch (-want +got):\n%s", diff)
	}

	unsubscribe()
	_ = f.Change(ctx, "lastName", "Kent")
	if len(events) != 2 {
		t.Fatalf("unsubscribed observer still called")
	}
}

func TestDisabledFieldsIgnoreInput(t *testing.T) {
	ctx := context.Background()
	f := mustForm(t, WithMode(ModeOnChange), WithDefaultValues(map[string]any{"name": "x"}))
	mustRegister(t, f, "name", rules.Rules{Required: &rules.Required{}})

	if err := f.SetDisabled("name", true); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := f.Change(ctx, "name", ""); err != nil {
		t.Fatalf("change: %v", err)
	}
	if v, _ := f.GetValue("name"); v != "x" {
		t.Fatalf("disabled field accepted input: %v", v)
	}
	if err := f.Change(ctx, "missing", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestInputFilterRunsBeforeCoercion(t *testing.T) {
	ctx := context.Background()
	filter := func(_ string, raw any) any {
		if s, ok := raw.(string); ok {
			return s + "0"
		}
		return raw
	}
	f := mustForm(t, WithInputFilter(filter), WithDefaultValues(map[string]any{"qty": 0}))
	mustRegister(t, f, "qty", rules.Rules{ValueAs: rules.ValueAsNumber})
	if err := f.Change(ctx, "qty", "4"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if v, _ := f.GetValue("qty"); v != 40.0 {
		t.Fatalf("expected filtered and coerced value, got %#v", v)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("onTouched"); err != nil || m != ModeOnTouched {
		t.Fatalf("parse: %v %v", m, err)
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := New(WithMode("sometimes")); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
