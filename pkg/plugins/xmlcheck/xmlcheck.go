package xmlcheck

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
)

// Return codes produced by the validator.
const (
	CodeValid          = 0
	CodeMalformed      = -1
	CodeReportingError = -4
	CodeWrongType      = -8
)

// Period attribute names carried by declaration roots.
const (
	MonthAttribute = "luna_r"
	YearAttribute  = "an_r"
)

// DefaultMinYear is the earliest accepted reporting year.
const DefaultMinYear = 2000

// Options tune the generic checks.
type Options struct {
	// RequiredAttributes are root attributes whose absence is reported as a
	// warning, one per missing attribute.
	RequiredAttributes []string `yaml:"required_attributes"`

	// MinYear bounds an_r from below. Zero means DefaultMinYear.
	MinYear int `yaml:"min_year"`

	// SkipRootCheck accepts any root element.
	SkipRootCheck bool `yaml:"skip_root_check"`
}

// Info is the metadata of the last parsed document.
type Info struct {
	Type       string            `json:"type"`
	Root       string            `json:"root"`
	Attributes map[string]string `json:"attributes"`
	Elements   int               `json:"elements"`
}

// Period returns the "MM/YYYY" reporting period when both attributes are
// present.
func (i Info) Period() string {
	month, year := i.Attributes[MonthAttribute], i.Attributes[YearAttribute]
	if month == "" || year == "" {
		return ""
	}
	if len(month) == 1 {
		month = "0" + month
	}
	return month + "/" + year
}

// Validator checks that a document is well formed, carries the root element
// of its type and declares a plausible reporting period. It keeps the last
// parsed Info, so calls must be serialized.
type Validator struct {
	typeID plugin.TypeID
	opts   Options
	info   Info
}

var _ plugin.Validator = (*Validator)(nil)

// New returns a validator for typeID.
func New(typeID plugin.TypeID, opts Options) *Validator {
	if opts.MinYear == 0 {
		opts.MinYear = DefaultMinYear
	}
	return &Validator{typeID: plugin.NormalizeType(string(typeID)), opts: opts}
}

// Info implements plugin.Validator.
func (v *Validator) Info() any {
	return v.info
}

// ParseDocument implements plugin.Validator. Diagnostics go to errorLogPath,
// one per line. An error is returned only when the files cannot be accessed.
func (v *Validator) ParseDocument(inputPath, errorLogPath string) (int, error) {
	v.info = Info{Type: string(v.typeID)}

	f, err := os.Open(inputPath)
	if err != nil {
		return 0, fmt.Errorf("xmlcheck: open input: %w", err)
	}
	defer f.Close()

	doc, err := scan(f)
	if err != nil {
		return CodeMalformed, writeLog(errorLogPath, []string{"E: " + err.Error()})
	}
	v.info.Root = doc.root
	v.info.Attributes = doc.attrs
	v.info.Elements = doc.elements

	if !v.opts.SkipRootCheck && doc.root != plugin.TagFromType(v.typeID) {
		return CodeWrongType, nil
	}

	if problems := checkPeriod(doc.attrs, v.opts.MinYear); len(problems) > 0 {
		return CodeReportingError, writeLog(errorLogPath, problems)
	}

	var warnings []string
	for _, name := range v.opts.RequiredAttributes {
		if strings.TrimSpace(doc.attrs[name]) == "" {
			warnings = append(warnings, fmt.Sprintf("A: atributul %s lipseste", name))
		}
	}
	if len(warnings) > 0 {
		return len(warnings), writeLog(errorLogPath, warnings)
	}
	return CodeValid, nil
}

type document struct {
	root     string
	attrs    map[string]string
	elements int
}

// scan reads the whole stream so that errors after the root start tag are
// still reported.
func scan(r io.Reader) (document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var doc document
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return document{}, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		doc.elements++
		if doc.root != "" {
			continue
		}
		doc.root = start.Name.Local
		doc.attrs = make(map[string]string, len(start.Attr))
		for _, attr := range start.Attr {
			if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
				continue
			}
			doc.attrs[attr.Name.Local] = attr.Value
		}
	}
	if doc.root == "" {
		return document{}, errors.New("document has no root element")
	}
	return doc, nil
}

func checkPeriod(attrs map[string]string, minYear int) []string {
	var problems []string
	if raw, ok := attrs[MonthAttribute]; ok {
		month, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || month < 1 || month > 12 {
			problems = append(problems, fmt.Sprintf("E: %s=%q nu este o luna valida", MonthAttribute, raw))
		}
	}
	if raw, ok := attrs[YearAttribute]; ok {
		year, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || year < minYear {
			problems = append(problems, fmt.Sprintf("E: %s=%q nu este un an valid", YearAttribute, raw))
		}
	}
	sort.Strings(problems)
	return problems
}

func writeLog(path string, lines []string) error {
	if path == "" || len(lines) == 0 {
		return nil
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("xmlcheck: write error log: %w", err)
	}
	return nil
}
