package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed assets/openapi.yaml
var openAPIDocument []byte

// Operation is one documented route.
type Operation struct {
	ID     string
	Method string
	Path   string
}

// Pattern returns the net/http mux pattern for the operation.
func (o Operation) Pattern() string {
	return o.Method + " " + o.Path
}

// Description is the loaded and validated API document.
type Description struct {
	doc        *openapi3.T
	json       []byte
	operations []Operation
}

// LoadDescription parses the embedded OpenAPI document, validates it and
// collects its operations sorted by path then method.
func LoadDescription(ctx context.Context) (*Description, error) {
	return loadDescription(ctx, openAPIDocument)
}

func loadDescription(ctx context.Context, raw []byte) (*Description, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(raw) == 0 {
		return nil, errors.New("httpapi: openapi document is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("httpapi: load openapi: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("httpapi: validate openapi: %w", err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("httpapi: encode openapi: %w", err)
	}

	var operations []Operation
	if doc.Paths != nil {
		for path, item := range doc.Paths.Map() {
			if item == nil {
				continue
			}
			for method, op := range item.Operations() {
				if op == nil || op.OperationID == "" {
					continue
				}
				operations = append(operations, Operation{ID: op.OperationID, Method: method, Path: path})
			}
		}
	}
	if len(operations) == 0 {
		return nil, errors.New("httpapi: openapi document has no operations")
	}
	sort.Slice(operations, func(i, j int) bool {
		if operations[i].Path != operations[j].Path {
			return operations[i].Path < operations[j].Path
		}
		return operations[i].Method < operations[j].Method
	})

	return &Description{doc: doc, json: encoded, operations: operations}, nil
}

// Operations returns the documented operations.
func (d *Description) Operations() []Operation {
	return append([]Operation(nil), d.operations...)
}

// JSON returns the document encoded as JSON.
func (d *Description) JSON() []byte {
	return d.json
}

// Version reports info.version.
func (d *Description) Version() string {
	if d.doc == nil || d.doc.Info == nil {
		return ""
	}
	return d.doc.Info.Version
}
