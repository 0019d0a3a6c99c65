package plugin

import (
	"errors"
	"strings"
)

// TypeID names a declaration type (for example "d112"). It keys both the
// registry and the classification messages.
type TypeID string

func (t TypeID) String() string {
	return string(t)
}

// Validator checks one declaration document. ParseDocument writes any
// diagnostics to errorLogPath and reports the plugin return code; the
// classification of that code is owned by the pipeline.
//
// Implementations may keep per-call state (Info reflects the last parsed
// document), so callers must serialize access.
type Validator interface {
	ParseDocument(inputPath, errorLogPath string) (int, error)
	Info() any
}

// Renderer produces the output document for a validated declaration.
type Renderer interface {
	CreatePDF(info any, outputPath, inputPath, extra string) error
}

// Pair binds the validator and renderer that serve one TypeID.
type Pair struct {
	Validator Validator
	Renderer  Renderer
}

// Validate reports whether both capabilities are present.
func (p Pair) Validate() error {
	if p.Validator == nil {
		return errors.New("plugin: validator is required")
	}
	if p.Renderer == nil {
		return errors.New("plugin: renderer is required")
	}
	return nil
}

const (
	tagPrefix       = "declaratie"
	shortTagPrefix  = "d"
	validatorSuffix = "validator"
)

// NormalizeType trims and lower-cases a raw type identifier.
func NormalizeType(raw string) TypeID {
	return TypeID(strings.ToLower(strings.TrimSpace(raw)))
}

// TypeFromTag maps a document root tag to its TypeID: "declaratie112"
// becomes "d112".
func TypeFromTag(tag string) TypeID {
	return NormalizeType(strings.ReplaceAll(tag, tagPrefix, shortTagPrefix))
}

// TagFromType is the inverse of TypeFromTag.
func TagFromType(id TypeID) string {
	trimmed := strings.TrimPrefix(string(id), shortTagPrefix)
	return tagPrefix + trimmed
}

// TypeFromPackage derives a TypeID from a configured plugin package
// identifier. The last dot separated segment wins and a trailing
// "validator" suffix is dropped: "dec.d112." and "dec.d112validator" both
// map to "d112".
func TypeFromPackage(pkg string) TypeID {
	trimmed := strings.Trim(strings.TrimSpace(pkg), ".")
	if idx := strings.LastIndex(trimmed, "."); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	lower := strings.ToLower(trimmed)
	if lower != validatorSuffix {
		lower = strings.TrimSuffix(lower, validatorSuffix)
	}
	return NormalizeType(lower)
}
