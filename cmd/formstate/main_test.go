package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formstate/pkg/devtool"
	"github.com/goliatone/go-formstate/pkg/renderers/tui"
)

type scriptedDriver struct {
	inputs  []string
	selects []int
	confirm []bool
}

func (d *scriptedDriver) Input(context.Context, tui.InputConfig) (string, error) {
	if len(d.inputs) == 0 {
		return "", errors.New("no input scripted")
	}
	v := d.inputs[0]
	d.inputs = d.inputs[1:]
	return v, nil
}

func (d *scriptedDriver) Password(ctx context.Context, cfg tui.InputConfig) (string, error) {
	return d.Input(ctx, cfg)
}

func (d *scriptedDriver) Confirm(context.Context, tui.ConfirmConfig) (bool, error) {
	if len(d.confirm) == 0 {
		return false, errors.New("no confirm scripted")
	}
	v := d.confirm[0]
	d.confirm = d.confirm[1:]
	return v, nil
}

func (d *scriptedDriver) Select(context.Context, tui.SelectConfig) (int, error) {
	if len(d.selects) == 0 {
		return -1, errors.New("no select scripted")
	}
	v := d.selects[0]
	d.selects = d.selects[1:]
	return v, nil
}

func (d *scriptedDriver) MultiSelect(context.Context, tui.SelectConfig) ([]int, error) {
	return nil, errors.New("no multiselect scripted")
}

func (d *scriptedDriver) TextArea(ctx context.Context, cfg tui.TextAreaConfig) (string, error) {
	return d.Input(ctx, tui.InputConfig{Message: cfg.Message})
}

func (d *scriptedDriver) Info(context.Context, string) error {
	return nil
}

// execute runs the CLI with a fresh viper instance and returns stdout and
// stderr.
func execute(t *testing.T, driver tui.PromptDriver, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	a := newApp()
	a.driver = driver
	cmd := newRootCmd(a)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestValidateWithDefinition(t *testing.T) {
	stdout, _, err := execute(t, nil, "validate", "testdata/values-ok.json", "--definition", "testdata/signup.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", stdout)
}

func TestValidateReportsEveryInvalidField(t *testing.T) {
	stdout, _, err := execute(t, nil, "validate", "testdata/values-bad.yaml", "--definition", "testdata/signup.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 invalid field(s)")

	want := strings.Join([]string{
		"email: Invalid email format (pattern)",
		"phNumbers.0.number: Number is required (required)",
		"username: At least 3 characters (minLength)",
	}, "\n") + "\n"
	assert.Equal(t, want, stdout)
}

func TestValidateWithSchemaAsJSON(t *testing.T) {
	stdout, _, err := execute(t, nil, "validate", "testdata/values-bad.yaml",
		"--schema", "testdata/signup.schema.json", "--format", "json")
	require.Error(t, err)

	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.False(t, report.Valid)
	require.Contains(t, report.Errors, "username")
	assert.Equal(t, "minLength", report.Errors["username"].Type)
}

func TestValidateNeedsExactlyOneSource(t *testing.T) {
	_, _, err := execute(t, nil, "validate", "testdata/values-ok.json")
	assert.ErrorContains(t, err, "one of --definition or --schema is required")

	_, _, err = execute(t, nil, "validate", "testdata/values-ok.json",
		"--definition", "testdata/signup.yaml", "--schema", "testdata/signup.schema.json")
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestRunWritesSubmittedValues(t *testing.T) {
	driver := &scriptedDriver{
		inputs:  []string{"batman", "bruce@wayne.com"},
		selects: []int{1},
		confirm: []bool{false},
	}
	out := filepath.Join(t.TempDir(), "out.json")

	_, stderr, err := execute(t, driver, "run", "testdata/signup.yaml", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Sign up")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var values map[string]any
	require.NoError(t, json.Unmarshal(data, &values))
	assert.Equal(t, "batman", values["username"])
	assert.Equal(t, "bruce@wayne.com", values["email"])
	assert.Equal(t, "pro", values["plan"])
}

func TestRunStripsMarkup(t *testing.T) {
	driver := &scriptedDriver{
		inputs:  []string{"<b>batman</b>", "bruce@wayne.com"},
		selects: []int{0},
		confirm: []bool{false},
	}
	stdout, _, err := execute(t, driver, "run", "testdata/signup.yaml")
	require.NoError(t, err)

	var values map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &values))
	assert.Equal(t, "batman", values["username"])
}

func TestRunFormatFromEnvironment(t *testing.T) {
	t.Setenv("FORMSTATE_FORMAT", "pretty")
	driver := &scriptedDriver{
		inputs:  []string{"batman", "bruce@wayne.com"},
		selects: []int{0},
		confirm: []bool{false},
	}
	stdout, _, err := execute(t, driver, "run", "testdata/signup.yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "username=batman\n")
	assert.Contains(t, stdout, "plan=free\n")
}

func TestRunUnknownFormat(t *testing.T) {
	_, _, err := execute(t, &scriptedDriver{}, "run", "testdata/signup.yaml", "--format", "xml")
	assert.ErrorIs(t, err, tui.ErrUnknownFormat)
}

func TestInspectJSON(t *testing.T) {
	stdout, _, err := execute(t, nil, "inspect", "testdata/signup.yaml",
		"--defaults", "testdata/values-bad.yaml", "--validate")
	require.NoError(t, err)

	var snap devtool.Snapshot
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	assert.Equal(t, "Sign up", snap.Title)
	assert.True(t, snap.State.IsReady)
	assert.False(t, snap.State.IsValid)

	errs := make(map[string]string)
	for _, row := range snap.Fields {
		if row.Error != "" {
			errs[row.Path] = row.Error
		}
	}
	assert.Equal(t, map[string]string{
		"username":           "At least 3 characters",
		"email":              "Invalid email format",
		"phNumbers.0.number": "Number is required",
	}, errs)
}

func TestInspectHTML(t *testing.T) {
	stdout, _, err := execute(t, nil, "inspect", "testdata/signup.yaml",
		"--defaults", "testdata/values-ok.json", "--format", "html")
	require.NoError(t, err)
	assert.Contains(t, stdout, "<h2>Sign up</h2>")
	assert.Contains(t, stdout, `data-path="username"`)
}

func TestConfigFileSetsFlags(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "formstate.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("format: json\n"), 0o600))

	stdout, _, err := execute(t, nil, "validate", "testdata/values-ok.json",
		"--definition", "testdata/signup.yaml", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"valid": true`)
}
