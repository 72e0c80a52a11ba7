package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formstate/pkg/devtool"
	"github.com/goliatone/go-formstate/pkg/form"
)

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <definition>",
		Short: "Print the state of a form",
		Long: `Build the form described by a definition, resolve its defaults and print
a snapshot of its values, per-field flags and errors.

With --validate a full pass runs first so the snapshot carries every
field error.`,
		Example: `  formstate inspect signup.yaml --defaults values.json --validate
  formstate inspect openapi.yaml --operation createChannel --format html -o panel.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspect(cmd, args[0])
		},
	}

	cmd.Flags().String("operation", "", "OpenAPI operation (operationId or method:path)")
	cmd.Flags().String("defaults", "", "JSON or YAML document with initial values")
	cmd.Flags().String("format", "json", "Output format: json, text, html")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().Bool("validate", false, "Validate every field before printing")
	return cmd
}

func (a *app) inspect(cmd *cobra.Command, location string) error {
	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	loader := a.loader()
	def, err := a.loadDefinition(ctx, loader, location)
	if err != nil {
		return err
	}
	opts := []form.Option{a.formLogger()}
	defaultsOpt, err := a.defaultsOption(loader)
	if err != nil {
		return err
	}
	if defaultsOpt != nil {
		opts = append(opts, defaultsOpt)
	}
	f, err := def.Build(opts...)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.WaitReady(ctx); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	if a.v.GetBool("validate") {
		if _, err := f.Trigger(ctx); err != nil {
			return err
		}
	}

	title := def.Title
	if title == "" {
		title = def.ID
	}
	snap, err := devtool.Capture(ctx, f, title)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format := a.v.GetString("format"); format {
	case "json":
		err = devtool.RenderJSON(&buf, snap)
	case "text":
		err = devtool.RenderText(&buf, snap)
	case "html":
		var panel *devtool.Panel
		if panel, err = devtool.NewPanel(); err == nil {
			err = panel.RenderHTML(&buf, snap)
		}
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}
	return a.writeOutput(cmd, buf.Bytes())
}
