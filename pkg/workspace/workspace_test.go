package workspace

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDerivedPaths(t *testing.T) {
	in := filepath.Join("tmp", "d112.xml")
	if got := ErrorLogPath(in); got != in+".err.txt" {
		t.Fatalf("unexpected error log path %q", got)
	}
	if got := OutputPath(in); got != in+".pdf" {
		t.Fatalf("unexpected output path %q", got)
	}
}

func TestManager_AllocateIsolatedDirs(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "work"))
	a, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	b, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if a.Path == b.Path {
		t.Fatalf("expected distinct directories")
	}
	if !strings.HasPrefix(filepath.Base(a.Path), "declaratii-") {
		t.Fatalf("unexpected dir name %q", a.Path)
	}
	if err := a.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(a.Path); !os.IsNotExist(err) {
		t.Fatalf("expected dir removed")
	}
}

func TestDir_WriteInputSanitisesName(t *testing.T) {
	dir := &Dir{Path: t.TempDir()}
	path, err := dir.WriteInput("../../etc/d112.xml", []byte("<x/>"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Dir(path) != dir.Path {
		t.Fatalf("input escaped workspace: %s", path)
	}
	if filepath.Base(path) != "d112.xml" {
		t.Fatalf("unexpected name %q", filepath.Base(path))
	}

	path, err = dir.WriteInput("", []byte("<x/>"))
	if err != nil {
		t.Fatalf("write empty name: %v", err)
	}
	if filepath.Base(path) != "declaratie.xml" {
		t.Fatalf("expected default name, got %q", filepath.Base(path))
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: defaultFileName},
		{in: "   ", want: defaultFileName},
		{in: "/", want: defaultFileName},
		{in: ".", want: defaultFileName},
		{in: "..", want: defaultFileName},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `..\..\d300.xml`, want: "d300.xml"},
		{in: "d112.xml", want: "d112.xml"},
	}
	for _, tc := range cases {
		if got := sanitizeName(tc.in); got != tc.want {
			t.Fatalf("sanitizeName(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}

func zipPayload(t *testing.T, entries map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDir_StoreUploadPlain(t *testing.T) {
	dir := &Dir{Path: t.TempDir()}
	path, err := dir.StoreUpload("D112.xml", strings.NewReader("<declaratie112/>"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "<declaratie112/>" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestDir_StoreUploadZipExtractsFirstEntry(t *testing.T) {
	dir := &Dir{Path: t.TempDir()}
	payload := zipPayload(t, map[string]string{
		"nested/d112.xml": "<declaratie112/>",
		"second.xml":      "<other/>",
	}, []string{"nested/d112.xml", "second.xml"})

	path, err := dir.StoreUpload("UPLOAD.ZIP", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if filepath.Base(path) != "d112.xml" {
		t.Fatalf("expected first entry extracted, got %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "<declaratie112/>" {
		t.Fatalf("unexpected content %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir.Path, "UPLOAD.ZIP")); !os.IsNotExist(err) {
		t.Fatalf("expected archive removed after extraction")
	}
}

func TestDir_StoreUploadEmptyZip(t *testing.T) {
	dir := &Dir{Path: t.TempDir()}
	payload := zipPayload(t, nil, nil)
	if _, err := dir.StoreUpload("empty.zip", bytes.NewReader(payload)); !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("expected ErrEmptyArchive, got %v", err)
	}

	payload = zipPayload(t, map[string]string{"folder/": ""}, []string{"folder/"})
	if _, err := dir.StoreUpload("dir.zip", bytes.NewReader(payload)); !errors.Is(err, ErrEmptyArchive) {
		t.Fatalf("expected ErrEmptyArchive for directory entry, got %v", err)
	}
}

func TestReadErrorLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.xml.err.txt")

	got, err := ReadErrorLog(path)
	if err != nil || got != "" {
		t.Fatalf("missing log should read empty, got %q err=%v", got, err)
	}

	if err := os.WriteFile(path, []byte("E: linia 1\r\nW: linia 2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = ReadErrorLog(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "E: linia 1\nW: linia 2\n" {
		t.Fatalf("unexpected log %q", got)
	}
}
