// Package tui runs a form as a terminal session: every field of a
// definition is prompted in order, field arrays grow on request, and the
// validated submit payload is serialized once the form passes.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formstate/pkg/definition"
	"github.com/goliatone/go-formstate/pkg/fieldpath"
	"github.com/goliatone/go-formstate/pkg/form"
)

const defaultMaxAttempts = 3

// Renderer drives a form through a PromptDriver.
type Renderer struct {
	driver            PromptDriver
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	theme             Theme
	maxAttempts       int
	out               io.Writer
}

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		maxAttempts:  defaultMaxAttempts,
		out:          os.Stdout,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	switch r.outputFormat {
	case OutputFormatJSON, OutputFormatFormURLEncoded, OutputFormatPrettyText:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, r.outputFormat)
	}
	if r.driver == nil {
		r.driver = newSurveyDriver(r.out)
	}
	return r, nil
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// ContentType reports the serialization format used by Run.
func (r *Renderer) ContentType() string {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Run prompts for every field of def, then submits f. When the submit
// fails, the failing fields are prompted again, up to the configured number
// of attempts. The submitted values are returned serialized.
func (r *Renderer) Run(ctx context.Context, def *definition.Definition, f *form.Form) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if def == nil || f == nil {
		return nil, errors.New("tui: definition and form are required")
	}
	if err := f.WaitReady(ctx); err != nil {
		return nil, err
	}

	for _, field := range def.Fields {
		if err := r.promptField(ctx, f, field, field.Path, field.Prompt()); err != nil {
			return nil, err
		}
	}
	for _, array := range def.Arrays {
		if err := r.promptArray(ctx, f, array); err != nil {
			return nil, err
		}
	}

	var values map[string]any
	for attempt := 1; ; attempt++ {
		var failed form.FieldErrors
		err := f.Submit(ctx, func(_ context.Context, submitted map[string]any) error {
			values = submitted
			return nil
		}, func(_ context.Context, errs form.FieldErrors) {
			failed = errs
		})
		if err != nil {
			return nil, err
		}
		if failed == nil {
			break
		}

		for _, path := range failed.Paths() {
			r.errorf(ctx, "%s: %s", path, failed[path].Message)
		}
		if attempt >= r.maxAttempts {
			return nil, &InvalidError{Errors: failed}
		}
		retry := 0
		for _, path := range failed.Paths() {
			field, ok := lookupField(def, path)
			if !ok {
				continue
			}
			retry++
			if err := r.promptField(ctx, f, field, path, path); err != nil {
				return nil, err
			}
		}
		if retry == 0 {
			return nil, &InvalidError{Errors: failed}
		}
	}

	if r.submitTransformer != nil {
		var err error
		values, err = r.submitTransformer(values)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	return r.serialize(values)
}

// promptField asks for one value until it passes the field's rules. Input
// goes through Change and Blur so the form sees it as user input.
func (r *Renderer) promptField(ctx context.Context, f *form.Form, field definition.Field, path, label string) error {
	if field.Rules.Disabled {
		return nil
	}
	for {
		current, err := f.GetValue(path)
		if err != nil {
			return err
		}
		value, err := r.ask(ctx, field, r.theme.PromptPrefix+label, current)
		if err != nil {
			return err
		}
		if err := f.Change(ctx, path, value); err != nil {
			return err
		}
		if err := f.Blur(ctx, path); err != nil {
			return err
		}
		fe, err := f.ValidateField(ctx, path)
		if err != nil {
			return err
		}
		if fe == nil {
			return nil
		}
		r.errorf(ctx, "Invalid %s: %s", path, fe.Message)
	}
}

func (r *Renderer) ask(ctx context.Context, field definition.Field, label string, current any) (any, error) {
	switch field.Input {
	case definition.InputConfirm:
		def, _ := current.(bool)
		return r.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: def, Help: field.Help})
	case definition.InputSelect:
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      field.Options,
			DefaultIndex: indexOf(field.Options, displayValue(current)),
			Help:         field.Help,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(field.Options) {
			return "", nil
		}
		return field.Options[idx], nil
	case definition.InputPassword:
		return r.driver.Password(ctx, InputConfig{Message: label, Help: field.Help})
	case definition.InputTextArea:
		return r.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: displayValue(current), Help: field.Help})
	default:
		return r.driver.Input(ctx, InputConfig{Message: label, Default: displayValue(current), Help: field.Help})
	}
}

func (r *Renderer) promptArray(ctx context.Context, f *form.Form, array definition.Array) error {
	handle, err := f.FieldArray(array.Name)
	if err != nil {
		return err
	}
	items := array.Items
	if len(items) == 0 {
		items = []definition.Field{{Input: definition.InputText}}
	}
	scalar := len(items) == 1 && items[0].Path == ""

	if scalar && len(items[0].Options) > 0 {
		return r.promptMultiSelect(ctx, f, array, items[0])
	}

	for i := 0; i < handle.Len(); i++ {
		if err := r.promptItem(ctx, f, array, items, i); err != nil {
			return err
		}
	}
	appendItem := func() error {
		var seed any
		if scalar {
			seed = ""
		}
		if err := handle.Append(ctx, seed); err != nil {
			return err
		}
		return r.promptItem(ctx, f, array, items, handle.Len()-1)
	}
	for handle.Len() < array.MinItems {
		r.infof(ctx, "%s needs at least %d item(s)", array.Prompt(), array.MinItems)
		if err := appendItem(); err != nil {
			return err
		}
	}
	for {
		more, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: r.theme.PromptPrefix + fmt.Sprintf("Add another %s?", array.Prompt()),
			Default: false,
		})
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		if err := appendItem(); err != nil {
			return err
		}
	}
}

func (r *Renderer) promptItem(ctx context.Context, f *form.Form, array definition.Array, items []definition.Field, index int) error {
	for _, item := range items {
		path := fieldpath.Join(array.Name, strconv.Itoa(index), item.Path)
		label := fmt.Sprintf("%s #%d", array.Prompt(), index+1)
		if item.Path != "" {
			label += " " + item.Prompt()
		}
		if err := r.promptField(ctx, f, item, path, label); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) promptMultiSelect(ctx context.Context, f *form.Form, array definition.Array, item definition.Field) error {
	current, err := f.GetValue(array.Name)
	if err != nil {
		return err
	}
	list, _ := current.([]any)
	defaults := indicesOf(item.Options, stringifySlice(list))

	for {
		indices, err := r.driver.MultiSelect(ctx, SelectConfig{
			Message:  r.theme.PromptPrefix + array.Prompt(),
			Options:  item.Options,
			Defaults: defaults,
			Help:     item.Help,
		})
		if err != nil {
			return err
		}
		selected := defaultsFromIndices(item.Options, indices)
		if len(selected) < array.MinItems {
			r.errorf(ctx, "Invalid %s: select at least %d", array.Name, array.MinItems)
			continue
		}
		return f.SetValue(ctx, array.Name, toAnySlice(selected), form.ShouldDirty(), form.ShouldTouch())
	}
}

// lookupField finds the definition behind a registered path, including
// array item paths such as "phNumbers.2.number".
func lookupField(def *definition.Definition, path string) (definition.Field, bool) {
	if field, ok := def.Field(path); ok {
		return field, true
	}
	p, err := fieldpath.Parse(path)
	if err != nil {
		return definition.Field{}, false
	}
	for _, array := range def.Arrays {
		name, err := fieldpath.Parse(array.Name)
		if err != nil {
			continue
		}
		rel, ok := p.TrimPrefix(name)
		if !ok || rel.Len() == 0 {
			continue
		}
		if _, isIndex := fieldpath.IsIndex(rel.Segment(0)); !isIndex {
			continue
		}
		sub := strings.Join(rel.Segments()[1:], ".")
		for _, item := range array.Items {
			if item.Path == sub {
				return item, true
			}
		}
		if sub == "" && len(array.Items) == 0 {
			return definition.Field{Input: definition.InputText}, true
		}
	}
	return definition.Field{}, false
}

func (r *Renderer) infof(ctx context.Context, format string, args ...any) {
	_ = r.driver.Info(ctx, r.theme.InfoPrefix+fmt.Sprintf(format, args...))
}

func (r *Renderer) errorf(ctx context.Context, format string, args ...any) {
	_ = r.driver.Info(ctx, r.theme.ErrorPrefix+fmt.Sprintf(format, args...))
}

func (r *Renderer) serialize(values map[string]any) ([]byte, error) {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values)), nil
	case OutputFormatPrettyText:
		return []byte(prettyPrint(values)), nil
	default:
		return json.Marshal(values)
	}
}

func displayValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.DateOnly)
	default:
		return fmt.Sprint(v)
	}
}

func stringifySlice(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, displayValue(v))
	}
	return out
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func flattenForm(values map[string]any) string {
	flattened := url.Values{}
	flatten("", values, flattened)
	return flattened.Encode()
}

func flatten(prefix string, value any, out url.Values) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			flatten(fieldpath.Join(prefix, key), val, out)
		}
	case []any:
		for idx, val := range v {
			if _, nested := val.(map[string]any); nested {
				flatten(fmt.Sprintf("%s.%d", prefix, idx), val, out)
				continue
			}
			out.Add(prefix+"[]", displayValue(val))
		}
	default:
		out.Set(prefix, displayValue(v))
	}
}

func prettyPrint(values map[string]any) string {
	var b strings.Builder
	writePretty(&b, "", values)
	return b.String()
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			writePretty(b, fieldpath.Join(prefix, key), v[key])
		}
	case []any:
		for idx, val := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), val)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%s\n", prefix, displayValue(v))
		}
	}
}
