package devtool

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/flosch/pongo2/v6"
	json "github.com/goccy/go-json"
)

//go:embed templates/*.tpl
var templateFS embed.FS

const defaultTemplate = "panel.html.tpl"

// PanelOption configures a Panel.
type PanelOption func(*panelConfig)

type panelConfig struct {
	templates fs.FS
	name      string
	globals   map[string]any
}

// WithTemplateFS renders the panel from name inside files instead of the
// built-in template. The template receives title, state, fields, errors,
// values and renders.
func WithTemplateFS(files fs.FS, name string) PanelOption {
	return func(cfg *panelConfig) {
		cfg.templates = files
		cfg.name = strings.TrimSpace(name)
	}
}

// WithGlobals seeds values available to every render.
func WithGlobals(data map[string]any) PanelOption {
	return func(cfg *panelConfig) {
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globals[strings.TrimSpace(key)] = value
		}
	}
}

// Panel renders snapshots as HTML with pongo2. It is safe for concurrent
// use.
type Panel struct {
	tmpl *pongo2.Template
}

// NewPanel compiles the panel template.
func NewPanel(opts ...PanelOption) (*Panel, error) {
	cfg := panelConfig{name: defaultTemplate}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	files := cfg.templates
	if files == nil {
		sub, err := fs.Sub(templateFS, "templates")
		if err != nil {
			return nil, fmt.Errorf("devtool: templates: %w", err)
		}
		files = sub
	}
	if cfg.name == "" {
		return nil, errors.New("devtool: template name is empty")
	}

	set := pongo2.NewSet("devtool", pongo2.NewFSLoader(files))
	if len(cfg.globals) > 0 {
		set.Globals = make(pongo2.Context, len(cfg.globals))
		set.Globals.Update(cfg.globals)
	}
	tmpl, err := set.FromFile(cfg.name)
	if err != nil {
		return nil, fmt.Errorf("devtool: parse template %q: %w", cfg.name, err)
	}
	return &Panel{tmpl: tmpl}, nil
}

// RenderHTML writes the snapshot as an HTML fragment.
func (p *Panel) RenderHTML(w io.Writer, snap Snapshot) error {
	if p == nil || p.tmpl == nil {
		return errors.New("devtool: panel is nil")
	}
	values, err := json.MarshalIndent(snap.Values, "", "  ")
	if err != nil {
		return fmt.Errorf("devtool: encode values: %w", err)
	}

	viewContext := pongo2.Context{
		"title":   snap.Title,
		"state":   snap.State,
		"fields":  snap.Fields,
		"errors":  snap.Errors,
		"values":  string(values),
		"renders": snap.Renders,
	}

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteWriter(viewContext, &buf); err != nil {
		return fmt.Errorf("devtool: execute template: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}
