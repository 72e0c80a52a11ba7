package main

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	formstate "github.com/goliatone/go-formstate"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/source"
)

// validationReport is the JSON shape printed by validate.
type validationReport struct {
	Valid  bool             `json:"valid"`
	Errors form.FieldErrors `json:"errors,omitempty"`
}

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <values>",
		Short: "Validate a values document",
		Long: `Load a JSON or YAML values document as the defaults of a form and run a
full validation pass over it.

The form comes from --definition (a form document, or an OpenAPI document
with --operation) or from --schema (a JSON Schema used as the resolver).
The command fails when any field is invalid.`,
		Example: `  formstate validate values.json --definition signup.yaml
  formstate validate values.yaml --schema profile.schema.json --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateValues(cmd, args[0])
		},
	}

	cmd.Flags().String("definition", "", "Form definition or OpenAPI document")
	cmd.Flags().String("operation", "", "OpenAPI operation (operationId or method:path)")
	cmd.Flags().String("schema", "", "JSON Schema to validate against")
	cmd.Flags().String("format", "text", "Output format: text, json")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	return cmd
}

func (a *app) validateValues(cmd *cobra.Command, location string) error {
	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	format := a.v.GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	loader := a.loader()
	valuesSrc, err := source.Resolve(location)
	if err != nil {
		return err
	}
	opts := []form.Option{a.formLogger(), formstate.WithDefaultsFrom(loader, valuesSrc)}

	defLocation, schemaLocation := a.v.GetString("definition"), a.v.GetString("schema")
	var f *form.Form
	switch {
	case defLocation != "" && schemaLocation != "":
		return errors.New("--definition and --schema are mutually exclusive")
	case defLocation != "":
		def, err := a.loadDefinition(ctx, loader, defLocation)
		if err != nil {
			return err
		}
		if f, err = def.Build(opts...); err != nil {
			return err
		}
	case schemaLocation != "":
		schemaSrc, err := source.Resolve(schemaLocation)
		if err != nil {
			return err
		}
		schema, err := formstate.WithSchemaFrom(ctx, loader, schemaSrc)
		if err != nil {
			return fmt.Errorf("failed to load schema: %w", err)
		}
		if f, err = form.New(append(opts, schema)...); err != nil {
			return err
		}
	default:
		return errors.New("one of --definition or --schema is required")
	}
	defer f.Close()

	if err := f.WaitReady(ctx); err != nil {
		return fmt.Errorf("failed to load values: %w", err)
	}
	errs, err := f.ValidateAll(ctx)
	if err != nil {
		return err
	}
	a.logger.Debug("validation complete", "errors", len(errs))

	report := validationReport{Valid: len(errs) == 0, Errors: errs}
	var out []byte
	if format == "json" {
		if out, err = json.MarshalIndent(report, "", "  "); err != nil {
			return err
		}
	} else {
		out = textReport(report)
	}
	if err := a.writeOutput(cmd, out); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("validation failed: %d invalid field(s)", len(errs))
	}
	return nil
}

func textReport(report validationReport) []byte {
	if report.Valid {
		return []byte("ok\n")
	}
	var buf bytes.Buffer
	for _, path := range report.Errors.Paths() {
		fe := report.Errors[path]
		fmt.Fprintf(&buf, "%s: %s (%s)\n", path, fe.Message, fe.Type)
	}
	return buf.Bytes()
}
