package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	formstate "github.com/goliatone/go-formstate"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/renderers/tui"
	"github.com/goliatone/go-formstate/pkg/source"
)

// app carries the state shared by every command.
type app struct {
	v      *viper.Viper
	logger *slog.Logger
	// driver replaces the terminal prompts; nil uses survey.
	driver tui.PromptDriver
}

func newApp() *app {
	return &app{v: viper.New()}
}

func newRootCmd(a *app) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "formstate",
		Short: "Fill in and validate declarative forms",
		Long: `formstate loads form definitions (YAML documents or OpenAPI operations),
collects values in the terminal and validates value documents against a
definition or a JSON Schema.

Every flag can also be set through a FORMSTATE_<FLAG> environment variable
or a config file.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.initConfig(cfgFile); err != nil {
				return err
			}
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := a.v.BindPFlags(cmd.InheritedFlags()); err != nil {
				return err
			}
			a.setupLogging(cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.formstate.yaml)")
	flags.BoolP("verbose", "v", false, "enable verbose output")
	flags.Duration("timeout", 0, "overall timeout (0 to disable)")
	flags.Duration("http-timeout", 10*time.Second, "timeout for http(s) sources (0 disables remote sources)")

	cmd.AddCommand(newRunCmd(a), newValidateCmd(a), newInspectCmd(a))
	return cmd
}

// initConfig loads configuration from the config file and environment.
func (a *app) initConfig(cfgFile string) error {
	a.v.SetEnvPrefix("FORMSTATE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
	}
	a.v.SetConfigType("yaml")
	a.v.SetConfigName(".formstate")
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (a *app) setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if a.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", "file", used)
	}
}

func (a *app) context(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeout := a.v.GetDuration("timeout"); timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

func (a *app) loader() source.Loader {
	var opts []source.LoaderOption
	if timeout := a.v.GetDuration("http-timeout"); timeout > 0 {
		opts = append(opts, source.WithHTTPFallback(timeout))
	}
	return formstate.NewLoader(opts...)
}

func (a *app) formLogger() form.Option {
	return form.WithLogger(form.SlogLogger(a.logger))
}

// loadDefinition resolves a file path or URL into a definition.
func (a *app) loadDefinition(ctx context.Context, loader source.Loader, location string) (*formstate.Definition, error) {
	src, err := source.Resolve(location)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("loading definition", "location", location, "operation", a.v.GetString("operation"))
	def, err := formstate.LoadDefinition(ctx, loader, src, a.v.GetString("operation"))
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}
	return def, nil
}

// defaultsOption returns the supplier option for the --defaults flag, or nil.
func (a *app) defaultsOption(loader source.Loader) (form.Option, error) {
	location := a.v.GetString("defaults")
	if location == "" {
		return nil, nil
	}
	src, err := source.Resolve(location)
	if err != nil {
		return nil, err
	}
	return formstate.WithDefaultsFrom(loader, src), nil
}

// writeOutput writes data to --output, or stdout when it is unset.
func (a *app) writeOutput(cmd *cobra.Command, data []byte) error {
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	path := a.v.GetString("output")
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	a.logger.Info("writing output", "file", path)
	//nolint:gosec // G306: output files are meant to be readable
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
