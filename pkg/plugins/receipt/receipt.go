package receipt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
	"github.com/jemish-virani/declaratii-anaf/pkg/workspace"
)

// Output formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// DefaultTitle heads every receipt unless overridden.
const DefaultTitle = "Confirmare validare declaratie"

// Options configure a receipt renderer.
type Options struct {
	Format      string `yaml:"format"`
	Title       string `yaml:"title"`
	TemplateDir string `yaml:"template_dir"`
}

// Renderer writes a human readable receipt for a validated declaration: the
// declaration metadata, the reporting period and any warnings the validator
// logged. It is the output of families that have no native renderer.
type Renderer struct {
	typeID plugin.TypeID
	opts   Options
	engine *Engine
	now    func() time.Time
}

var _ plugin.Renderer = (*Renderer)(nil)

// New builds a receipt renderer for typeID.
func New(typeID plugin.TypeID, opts Options) (*Renderer, error) {
	opts.Format = strings.ToLower(strings.TrimSpace(opts.Format))
	switch opts.Format {
	case "":
		opts.Format = FormatHTML
	case FormatHTML, FormatMarkdown:
	default:
		return nil, fmt.Errorf("receipt: unsupported format %q", opts.Format)
	}
	if strings.TrimSpace(opts.Title) == "" {
		opts.Title = DefaultTitle
	}
	engine, err := NewEngine(opts.TemplateDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		typeID: plugin.NormalizeType(string(typeID)),
		opts:   opts,
		engine: engine,
		now:    time.Now,
	}, nil
}

// FromEntry reads the nested "receipt" options of a configured entry.
func FromEntry(entry plugin.Entry) (*Renderer, error) {
	var wrapper struct {
		Receipt Options `yaml:"receipt"`
	}
	if err := entry.DecodeOptions(&wrapper); err != nil {
		return nil, err
	}
	return New(entry.TypeID(), wrapper.Receipt)
}

// Format reports the configured output format.
func (r *Renderer) Format() string {
	return r.opts.Format
}

// CreatePDF implements plugin.Renderer. The receipt is written to outputPath
// in the configured format.
func (r *Renderer) CreatePDF(info any, outputPath, inputPath, extra string) error {
	data, err := r.context(info, inputPath, extra)
	if err != nil {
		return err
	}
	md, err := r.engine.Render("receipt.md", data)
	if err != nil {
		return err
	}

	content := md
	if r.opts.Format == FormatHTML {
		body := sanitizeMarkup(string(markdownToHTML([]byte(md))))
		content, err = r.engine.Render("page.html", pongo2.Context{
			"title": r.opts.Title,
			"body":  body,
		})
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("receipt: write output: %w", err)
	}
	return nil
}

func (r *Renderer) context(info any, inputPath, extra string) (pongo2.Context, error) {
	meta, err := toMap(info)
	if err != nil {
		return nil, fmt.Errorf("receipt: convert info: %w", err)
	}
	logContent, err := workspace.ReadErrorLog(workspace.ErrorLogPath(inputPath))
	if err != nil {
		return nil, err
	}

	return pongo2.Context{
		"title":        r.opts.Title,
		"type":         string(r.typeID),
		"source":       filepath.Base(inputPath),
		"period":       period(meta),
		"fields":       fields(meta),
		"extra":        extra,
		"log":          splitLines(logContent),
		"generated_at": r.now().Format("02.01.2006 15:04:05"),
	}, nil
}

// fields flattens the metadata into sorted name/value rows. Root attributes
// reported by XML validators are listed individually.
func fields(meta map[string]any) []map[string]any {
	flat := map[string]string{}
	for key, value := range meta {
		switch key {
		case "type", "input", "root":
			continue
		case "attributes":
			if attrs, ok := value.(map[string]any); ok {
				for name, attr := range attrs {
					flat[name] = fmt.Sprint(attr)
				}
				continue
			}
		}
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		flat[key] = fmt.Sprint(value)
	}

	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]map[string]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, map[string]any{"name": name, "value": flat[name]})
	}
	return rows
}

func period(meta map[string]any) string {
	attrs, _ := meta["attributes"].(map[string]any)
	if attrs == nil {
		attrs = meta
	}
	month, _ := attrs["luna_r"].(string)
	year, _ := attrs["an_r"].(string)
	if month == "" || year == "" {
		return ""
	}
	if len(month) == 1 {
		month = "0" + month
	}
	return month + "/" + year
}

func splitLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func toMap(v any) (map[string]any, error) {
	switch typed := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return typed, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{"info": fmt.Sprint(v)}, nil
	}
	return out, nil
}

func markdownToHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML(md, p, renderer)
}
