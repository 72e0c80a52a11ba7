// Package testsupport holds helpers shared by tests that need a ready form
// built from a definition document.
package testsupport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formstate/pkg/definition"
	"github.com/goliatone/go-formstate/pkg/form"
)

// ReadyTimeout bounds how long BuildReady waits for defaults.
const ReadyTimeout = 5 * time.Second

// ParseDefinition parses an inline YAML definition or fails the test.
func ParseDefinition(t testing.TB, document string, opts ...definition.Option) *definition.Definition {
	t.Helper()

	def, err := definition.Parse([]byte(document), opts...)
	if err != nil {
		t.Fatalf("parse definition: %v", err)
	}
	return def
}

// LoadDefinition reads a definition fixture from disk.
func LoadDefinition(t testing.TB, path string, opts ...definition.Option) *definition.Definition {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read definition: %v", err)
	}
	return ParseDefinition(t, string(data), opts...)
}

// Build creates the form for def and closes it when the test ends.
func Build(t testing.TB, def *definition.Definition, opts ...form.Option) *form.Form {
	t.Helper()

	f, err := def.Build(opts...)
	if err != nil {
		t.Fatalf("build form: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// BuildReady is Build followed by a bounded wait for the defaults.
func BuildReady(t testing.TB, def *definition.Definition, opts ...form.Option) *form.Form {
	t.Helper()

	f := Build(t, def, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), ReadyTimeout)
	defer cancel()
	if err := f.WaitReady(ctx); err != nil {
		t.Fatalf("wait ready: %v", err)
	}
	return f
}

// AssertValues compares the form's current values with want.
func AssertValues(t testing.TB, f *form.Form, want map[string]any) {
	t.Helper()

	got, err := f.GetValues()
	if err != nil {
		t.Fatalf("get values: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}
