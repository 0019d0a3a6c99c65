package httpapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDescription_Embedded(t *testing.T) {
	desc, err := LoadDescription(context.Background())
	if err != nil {
		t.Fatalf("load embedded description: %v", err)
	}
	if desc.Version() != "1.0.0" {
		t.Fatalf("want version 1.0.0, got %q", desc.Version())
	}

	want := []Operation{
		{ID: "available", Method: "GET", Path: "/available"},
		{ID: "download", Method: "GET", Path: "/download/{id}"},
		{ID: "listTypes", Method: "GET", Path: "/types"},
		{ID: "uploadDeclaration", Method: "POST", Path: "/upload"},
		{ID: "validateJSONML", Method: "POST", Path: "/validate"},
	}
	if diff := cmp.Diff(want, desc.Operations()); diff != "" {
		t.Fatalf("operations mismatch (-want +got):\n%s", diff)
	}

	var decoded struct {
		Components struct {
			Schemas map[string]struct {
				Description string `json:"description"`
			} `json:"schemas"`
		} `json:"components"`
	}
	if err := json.Unmarshal(desc.JSON(), &decoded); err != nil {
		t.Fatalf("decode description json: %v", err)
	}
	got := decoded.Components.Schemas["JSONMLElement"].Description
	if got != `Either {"tagName": ..., "childNodes": [...]} or ["tag", {attrs}, ...children].` {
		t.Fatalf("unexpected JSONMLElement description %q", got)
	}
}

func TestLoadDescription_RejectsMalformedYAML(t *testing.T) {
	raw := []byte("openapi: 3.0.3\ninfo:\n  title: x\n  version: 1.0.0\n  description: a: b\npaths: {}\n")
	if _, err := loadDescription(context.Background(), raw); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}

func TestLoadDescription_RequiresOperations(t *testing.T) {
	raw := []byte("openapi: 3.0.3\ninfo:\n  title: x\n  version: 1.0.0\npaths: {}\n")
	if _, err := loadDescription(context.Background(), raw); err == nil {
		t.Fatalf("expected error for a document without operations")
	}
	if _, err := loadDescription(context.Background(), nil); err == nil {
		t.Fatalf("expected error for an empty document")
	}
}
