package receipt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.tpl
var templateFS embed.FS

const templateExt = ".tpl"

// Engine renders receipt templates with pongo2. Templates found in the
// optional base directory shadow the embedded defaults.
type Engine struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
}

// NewEngine builds an engine. baseDir may be empty.
func NewEngine(baseDir string) (*Engine, error) {
	embedded, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("receipt: embedded templates: %w", err)
	}

	var loaders []pongo2.TemplateLoader
	if dir := strings.TrimSpace(baseDir); dir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(dir)
		if err != nil {
			return nil, fmt.Errorf("receipt: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	loaders = append(loaders, pongo2.NewFSLoader(embedded))

	registerFilters()
	return &Engine{
		set:       pongo2.NewSet("receipt", loaders...),
		templates: make(map[string]*pongo2.Template),
	}, nil
}

// Render executes the named template (extension optional) with data.
func (e *Engine) Render(name string, data pongo2.Context) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("receipt: engine is nil")
	}
	path := name
	if !strings.HasSuffix(path, templateExt) {
		path += templateExt
	}
	tmpl, err := e.template(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(data, &buf); err != nil {
		return "", fmt.Errorf("receipt: execute template %q: %w", path, err)
	}
	return buf.String(), nil
}

func (e *Engine) template(path string) (*pongo2.Template, error) {
	e.mu.RLock()
	if tmpl, ok := e.templates[path]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.templates[path]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("receipt: load template %q: %w", path, err)
	}
	e.templates[path] = tmpl
	return tmpl, nil
}

var filtersOnce sync.Once

func registerFilters() {
	filtersOnce.Do(func() {
		if !pongo2.FilterExists("trim") {
			_ = pongo2.RegisterFilter("trim", filterTrim)
		}
		if !pongo2.FilterExists("mdcell") {
			_ = pongo2.RegisterFilter("mdcell", filterMarkdownCell)
		}
	})
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

// filterMarkdownCell keeps a value on one table row.
func filterMarkdownCell(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	replacer := strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")
	return pongo2.AsValue(replacer.Replace(strings.TrimSpace(in.String()))), nil
}
