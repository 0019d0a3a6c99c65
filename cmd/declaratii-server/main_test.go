package main

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jemish-virani/declaratii-anaf/internal/config"
)

func TestServe_StartsAndStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvListen, "127.0.0.1:0")
	t.Setenv(config.EnvWorkspace, filepath.Join(dir, "work"))
	t.Setenv(config.EnvCacheTTL, "")
	t.Setenv(config.EnvGateTimeout, "")

	path := filepath.Join(dir, "declaratii.yaml")
	if err := os.WriteFile(path, []byte(config.DefaultYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := serve(ctx, path, true, logger); err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"declaration types: [d112]", "httpapi: listening on 127.0.0.1:", "shutting down"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
}

func TestServe_ConfigError(t *testing.T) {
	var buf bytes.Buffer
	err := serve(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), false, log.New(&buf, "", 0))
	if err == nil {
		t.Fatalf("expected error for missing config")
	}
}
