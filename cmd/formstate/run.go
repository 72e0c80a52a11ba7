package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/renderers/tui"
	"github.com/goliatone/go-formstate/pkg/sanitize"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <definition>",
		Short: "Fill in a form in the terminal",
		Long: `Prompt for every field of a form definition, validate the answers and
print the submitted values.

The definition is a YAML or JSON form document, or an OpenAPI document when
--operation names one of its operations. Sources may be file paths or
http(s) URLs.`,
		Example: `  formstate run signup.yaml
  formstate run openapi.yaml --operation createChannel --format pretty
  formstate run signup.yaml --defaults https://example.com/profile.json -o out.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runForm(cmd, args[0])
		},
	}

	cmd.Flags().String("operation", "", "OpenAPI operation (operationId or method:path)")
	cmd.Flags().String("defaults", "", "JSON or YAML document with initial values")
	cmd.Flags().String("format", string(tui.OutputFormatJSON), "Output format: json, form, pretty")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().Bool("sanitize", true, "Strip markup from text answers")
	cmd.Flags().Int("attempts", 3, "Submit attempts before giving up")
	return cmd
}

func (a *app) runForm(cmd *cobra.Command, location string) error {
	ctx, cancel := a.context(cmd.Context())
	defer cancel()

	loader := a.loader()
	def, err := a.loadDefinition(ctx, loader, location)
	if err != nil {
		return err
	}

	opts := []form.Option{a.formLogger()}
	if a.v.GetBool("sanitize") {
		opts = append(opts, form.WithInputFilter(sanitize.Strict()))
	}
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

	renderer, err := tui.New(
		tui.WithPromptDriver(a.driver),
		tui.WithOutput(cmd.ErrOrStderr()),
		tui.WithOutputFormat(tui.OutputFormat(a.v.GetString("format"))),
		tui.WithMaxSubmitAttempts(a.v.GetInt("attempts")),
		tui.WithTheme(tui.Theme{ErrorPrefix: "✗ "}),
	)
	if err != nil {
		return err
	}

	if def.Title != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), def.Title)
	}
	a.logger.Debug("running form", "id", def.ID, "fields", len(def.Fields), "arrays", len(def.Arrays))

	out, err := renderer.Run(ctx, def, f)
	if err != nil {
		return err
	}

	return a.writeOutput(cmd, out)
}
