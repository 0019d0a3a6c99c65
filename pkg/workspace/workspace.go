package workspace

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPrefix       = "declaratii-"
	errorLogSuffix  = ".err.txt"
	outputSuffix    = ".pdf"
	defaultFileName = "declaratie.xml"
)

// ErrEmptyArchive is returned when a zip upload has no usable first entry.
var ErrEmptyArchive = errors.New("workspace: zip file does not contain a valid XML file")

// ErrorLogPath derives the validator error-log path for an input file.
func ErrorLogPath(inputPath string) string {
	return inputPath + errorLogSuffix
}

// OutputPath derives the rendered output path for an input file.
func OutputPath(inputPath string) string {
	return inputPath + outputSuffix
}

// ReadErrorLog returns the log content with every line terminated by "\n".
// A missing log reads as empty.
func ReadErrorLog(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("workspace: open error log: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("workspace: read error log: %w", err)
	}
	return b.String(), nil
}

// Manager allocates per-request directories under Root. An empty Root uses
// the OS temp directory.
type Manager struct {
	root string
}

// NewManager returns a manager rooted at root.
func NewManager(root string) *Manager {
	return &Manager{root: strings.TrimSpace(root)}
}

// Root reports the directory new workspaces are created in.
func (m *Manager) Root() string {
	if m == nil || m.root == "" {
		return os.TempDir()
	}
	return m.root
}

// Allocate creates a fresh isolated directory.
func (m *Manager) Allocate() (*Dir, error) {
	root := m.Root()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: ensure root: %w", err)
	}
	path, err := os.MkdirTemp(root, dirPrefix)
	if err != nil {
		return nil, fmt.Errorf("workspace: create dir: %w", err)
	}
	return &Dir{Path: path}, nil
}

// Dir is one request's private directory. Files written here are owned by
// the resulting artifact (or by the caller when no artifact is produced).
type Dir struct {
	Path string
}

// WriteInput stores content under the sanitised name and returns its path.
func (d *Dir) WriteInput(name string, content []byte) (string, error) {
	target := filepath.Join(d.Path, sanitizeName(name))
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return "", fmt.Errorf("workspace: write input: %w", err)
	}
	return target, nil
}

// StoreUpload copies an uploaded stream into the directory. Names ending in
// ".zip" are treated as archives and their first entry is extracted in
// place of the archive.
func (d *Dir) StoreUpload(name string, r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("workspace: upload reader is nil")
	}
	clean := sanitizeName(name)
	if strings.HasSuffix(strings.ToLower(clean), ".zip") {
		return d.extractFirstEntry(clean, r)
	}
	target := filepath.Join(d.Path, clean)
	if err := copyToFile(target, r); err != nil {
		return "", err
	}
	return target, nil
}

func (d *Dir) extractFirstEntry(archiveName string, r io.Reader) (string, error) {
	archivePath := filepath.Join(d.Path, archiveName)
	if err := copyToFile(archivePath, r); err != nil {
		return "", err
	}
	defer os.Remove(archivePath)

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("workspace: open zip: %w", err)
	}
	defer zr.Close()

	if len(zr.File) == 0 || zr.File[0].FileInfo().IsDir() {
		return "", ErrEmptyArchive
	}
	entry := zr.File[0]
	src, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("workspace: open zip entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	target := filepath.Join(d.Path, sanitizeName(entry.Name))
	if err := copyToFile(target, src); err != nil {
		return "", err
	}
	return target, nil
}

// Remove deletes the directory and everything in it.
func (d *Dir) Remove() error {
	if d == nil || d.Path == "" {
		return nil
	}
	return os.RemoveAll(d.Path)
}

func copyToFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("workspace: create %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("workspace: write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("workspace: close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sanitizeName keeps only the base name so uploads cannot escape the
// directory.
func sanitizeName(name string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	base := filepath.Base(filepath.Clean("/" + normalized))
	switch base {
	case "", ".", string(filepath.Separator):
		return defaultFileName
	}
	return base
}
