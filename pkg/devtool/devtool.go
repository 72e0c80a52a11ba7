// Package devtool renders a debugging view of a form: current values,
// per-field touched/dirty/error flags and the aggregate state. Output is
// available as an HTML panel, a text dump and JSON.
package devtool

import (
	"context"
	"errors"
	"io"

	"github.com/davecgh/go-spew/spew"
	json "github.com/goccy/go-json"

	"github.com/goliatone/go-formstate/pkg/form"
)

// FieldRow is one registered field in a snapshot.
type FieldRow struct {
	Path     string `json:"path"`
	Value    any    `json:"value"`
	Display  string `json:"-"`
	Touched  bool   `json:"touched"`
	Dirty    bool   `json:"dirty"`
	Disabled bool   `json:"disabled"`
	Error    string `json:"error,omitempty"`
}

// ErrorRow is an error attached to a path without a registered field, such
// as the root submit error.
type ErrorRow struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Snapshot is a point-in-time view of a form.
type Snapshot struct {
	Title   string         `json:"title,omitempty"`
	State   form.State     `json:"state"`
	Values  map[string]any `json:"values"`
	Fields  []FieldRow     `json:"fields"`
	Errors  []ErrorRow     `json:"errors,omitempty"`
	Renders uint64         `json:"renders,omitempty"`
}

// Capture reads the form. Before the form is ready the snapshot carries the
// state only. The render count comes from the Counter in ctx, if any.
func Capture(ctx context.Context, f *form.Form, title string) (Snapshot, error) {
	snap := Snapshot{Title: title, State: f.State()}
	if counter := CounterFrom(ctx); counter != nil {
		snap.Renders = counter.Count()
	}

	values, err := f.GetValues()
	if err != nil {
		if errors.Is(err, form.ErrNotReady) {
			return snap, nil
		}
		return Snapshot{}, err
	}
	snap.Values = values

	registered := make(map[string]bool)
	for _, entry := range f.Entries() {
		registered[entry.Path] = true
		row := FieldRow{
			Path:     entry.Path,
			Value:    entry.Value,
			Display:  display(entry.Value),
			Touched:  entry.Touched,
			Dirty:    entry.Dirty,
			Disabled: entry.Disabled,
		}
		if entry.Error != nil {
			row.Error = entry.Error.Message
		}
		snap.Fields = append(snap.Fields, row)
	}

	errs := f.Errors()
	for _, path := range errs.Paths() {
		if registered[path] {
			continue
		}
		fe := errs[path]
		snap.Errors = append(snap.Errors, ErrorRow{Path: path, Type: fe.Type, Message: fe.Message})
	}
	return snap, nil
}

// RenderJSON writes the snapshot as indented JSON.
func RenderJSON(w io.Writer, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
}

// RenderText writes a Go-syntax dump of the snapshot.
func RenderText(w io.Writer, snap Snapshot) error {
	dumper.Fdump(w, snap)
	return nil
}

func display(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.Marshal(value)
	if err != nil {
		return spew.Sprint(value)
	}
	return string(data)
}
