package pipeline

import (
	"testing"
)

func TestClassify_Table(t *testing.T) {
	const log = "E1: camp lipsa\n"
	cases := []struct {
		name     string
		code     int
		category Category
		message  string
		render   bool
		needsLog bool
	}{
		{name: "unknown declaration", code: -8, category: CategoryUnknownDeclaration, message: "Tip declaratie necunoscut \"d112\" \n"},
		{name: "reporting period", code: -4, category: CategoryReportingPeriodInvalid, message: "Perioada raportare eronata \"d112\" \n"},
		{name: "errors", code: -1, category: CategoryErrors, message: "Erori la validare fisier \n" + log, needsLog: true},
		{name: "errors lower bound", code: -3, category: CategoryErrors, message: "Erori la validare fisier \n" + log, needsLog: true},
		{name: "valid", code: 0, category: CategoryValid, message: "Validare fara erori \n", render: true},
		{name: "warnings", code: 3, category: CategoryWarnings, message: "Atentionari la validare fisier \n" + log, render: true, needsLog: true},
		{name: "failed", code: -5, category: CategoryFailed, message: "Erori la validare fisier; cod eroare=-5\n"},
		{name: "failed below unknown", code: -12, category: CategoryFailed, message: "Erori la validare fisier; cod eroare=-12\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logArg := ""
			if NeedsErrorLog(tc.code) {
				logArg = log
			}
			if got := NeedsErrorLog(tc.code); got != tc.needsLog {
				t.Fatalf("needs log: want %v, got %v", tc.needsLog, got)
			}
			got := Classify(tc.code, "d112", logArg)
			if got.Category != tc.category {
				t.Fatalf("category: want %s, got %s", tc.category, got.Category)
			}
			if got.Message != tc.message {
				t.Fatalf("message: want %q, got %q", tc.message, got.Message)
			}
			if got.Render != tc.render {
				t.Fatalf("render: want %v, got %v", tc.render, got.Render)
			}
		})
	}
}

func TestClassify_RenderOnlyForNonNegative(t *testing.T) {
	for code := -20; code <= 20; code++ {
		if got := Classify(code, "d", "").Render; got != (code >= 0) {
			t.Fatalf("code %d: render=%v", code, got)
		}
	}
}
