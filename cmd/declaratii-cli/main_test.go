package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jemish-virani/declaratii-anaf/internal/config"
	"github.com/jemish-virani/declaratii-anaf/internal/prompt"
)

type fakeDriver struct {
	choice  string
	confirm bool
	asked   []string
}

func (d *fakeDriver) Select(_ context.Context, cfg prompt.SelectConfig) (string, error) {
	d.asked = append(d.asked, "select:"+strings.Join(cfg.Options, ","))
	return d.choice, nil
}

func (d *fakeDriver) Confirm(_ context.Context, cfg prompt.ConfirmConfig) (bool, error) {
	d.asked = append(d.asked, "confirm:"+cfg.Message)
	return d.confirm, nil
}

const twoTypes = `
plugins:
  - package: dec.d112.
    family: xml
    options:
      required_attributes: [cif]
      receipt:
        format: markdown
  - package: dec.d300.
    family: xml
`

func setup(t *testing.T, yaml string) (dir, configPath string) {
	t.Helper()
	for _, name := range []string{config.EnvListen, config.EnvWorkspace, config.EnvCacheTTL, config.EnvGateTimeout} {
		t.Setenv(name, "")
	}
	dir = t.TempDir()
	configPath = filepath.Join(dir, "declaratii.yaml")
	content := "workspace_root: " + filepath.Join(dir, "work") + "\n" + yaml
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, configPath
}

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "decl.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_ValidWritesArtifact(t *testing.T) {
	dir, configPath := setup(t, twoTypes)
	input := writeInput(t, dir, `<declaratie112 luna_r="1" an_r="2025" cif="42"/>`)
	out := filepath.Join(dir, "confirmare.md")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", configPath, "-type", "D112", "-out", out, input}, &stdout, &stderr, nil)

	if code != exitOK {
		t.Fatalf("want exit 0, got %d (stderr %q)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Validare fara erori") || !strings.Contains(stdout.String(), "(cod 0)") {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(data), "01/2025") {
		t.Fatalf("artifact missing period:\n%s", data)
	}
	if entries, _ := os.ReadDir(filepath.Join(dir, "work")); len(entries) != 0 {
		t.Fatalf("expected workspace cleaned on exit, found %d entries", len(entries))
	}
}

func TestRun_RejectedExitCode(t *testing.T) {
	dir, configPath := setup(t, twoTypes)
	input := writeInput(t, dir, `<declaratie112`)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", configPath, "-type", "d112", input}, &stdout, &stderr, nil)

	if code != exitRejected {
		t.Fatalf("want exit %d, got %d", exitRejected, code)
	}
	if !strings.Contains(stdout.String(), "(cod -1)") {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
}

func TestRun_PromptsForType(t *testing.T) {
	dir, configPath := setup(t, twoTypes)
	input := writeInput(t, dir, `<declaratie300 luna_r="2" an_r="2025"/>`)
	driver := &fakeDriver{choice: "d300"}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", configPath, input}, &stdout, &stderr, driver)

	if code != exitOK {
		t.Fatalf("want exit 0, got %d (stderr %q, stdout %q)", code, stderr.String(), stdout.String())
	}
	if len(driver.asked) != 1 || driver.asked[0] != "select:d112,d300" {
		t.Fatalf("unexpected prompts %v", driver.asked)
	}
}

func TestRun_TypeRequiredWithoutTerminal(t *testing.T) {
	dir, configPath := setup(t, twoTypes)
	input := writeInput(t, dir, `<declaratie300/>`)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-config", configPath, input}, &stdout, &stderr, nil); code != exitUsage {
		t.Fatalf("want usage exit, got %d", code)
	}
	if !strings.Contains(stderr.String(), "-type is required") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestRun_ExistingOutput(t *testing.T) {
	dir, configPath := setup(t, twoTypes)
	input := writeInput(t, dir, `<declaratie112 luna_r="1" an_r="2025" cif="42"/>`)
	out := filepath.Join(dir, "out.md")
	if err := os.WriteFile(out, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	args := []string{"-config", configPath, "-type", "d112", "-out", out, input}
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), args, &stdout, &stderr, nil); code != exitRejected {
		t.Fatalf("want refusal without terminal, got %d", code)
	}

	driver := &fakeDriver{confirm: false}
	if code := run(context.Background(), args, &stdout, &stderr, driver); code != exitRejected {
		t.Fatalf("want refusal when declined, got %d", code)
	}
	if data, _ := os.ReadFile(out); string(data) != "old" {
		t.Fatalf("output overwritten: %q", data)
	}

	driver.confirm = true
	if code := run(context.Background(), args, &stdout, &stderr, driver); code != exitOK {
		t.Fatalf("want overwrite after confirm, got %d", code)
	}
	if data, _ := os.ReadFile(out); string(data) == "old" {
		t.Fatalf("output not overwritten")
	}

	if code := run(context.Background(), append([]string{"-force"}, args...), &stdout, &stderr, nil); code != exitOK {
		t.Fatalf("want overwrite with -force, got %d", code)
	}
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), nil, &stdout, &stderr, nil); code != exitUsage {
		t.Fatalf("want usage exit, got %d", code)
	}
	if code := run(context.Background(), []string{"-h"}, &stdout, &stderr, nil); code != exitOK {
		t.Fatalf("want 0 for -h, got %d", code)
	}
}
