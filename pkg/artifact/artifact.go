package artifact

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/twmb/murmur3"
)

// Artifact is a produced bundle: the summary message plus the files written
// while validating and rendering one document. Artifacts are shared by
// pointer; the fingerprint is computed once and cleanup runs at most once.
type Artifact struct {
	Message    string
	TypeID     string
	OutputFile string
	SourceFile string
	ErrorFile  string
	ReturnCode int
	// Dir, when set, is the workspace directory holding the files. Cleanup
	// removes it once it is empty.
	Dir string

	fingerprintOnce sync.Once
	fingerprint     string

	cleanupOnce sync.Once
}

// New builds an artifact for a rendered document.
func New(message, typeID, outputFile, sourceFile, errorFile string, returnCode int) *Artifact {
	return &Artifact{
		Message:    message,
		TypeID:     typeID,
		OutputFile: outputFile,
		SourceFile: sourceFile,
		ErrorFile:  errorFile,
		ReturnCode: returnCode,
	}
}

// Fingerprint identifies the artifact by its output file. It is empty when
// there is no output file, which makes the artifact uncacheable.
func (a *Artifact) Fingerprint() string {
	if a == nil || a.OutputFile == "" {
		return ""
	}
	a.fingerprintOnce.Do(func() {
		a.fingerprint = Fingerprint(a.OutputFile)
	})
	return a.fingerprint
}

// Fingerprint hashes the absolute form of path with 32-bit murmur3 and
// renders the hash bytes little-endian as hex.
func Fingerprint(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], murmur3.Sum32([]byte(abs)))
	return hex.EncodeToString(buf[:])
}

// Cleanup deletes the output, source and error files, then Dir if it is
// left empty. Missing files are ignored. Only the first call does any work;
// it reports whether this call was the one that ran.
func (a *Artifact) Cleanup() bool {
	if a == nil {
		return false
	}
	ran := false
	a.cleanupOnce.Do(func() {
		ran = true
		for _, path := range []string{a.OutputFile, a.SourceFile, a.ErrorFile} {
			removeQuietly(path)
		}
		if a.Dir != "" {
			_ = os.Remove(a.Dir)
		}
	})
	return ran
}

// removeQuietly is best effort: a file that is already gone counts as
// removed and other failures are left for the OS temp reaper.
func removeQuietly(path string) bool {
	if path == "" {
		return true
	}
	err := os.Remove(path)
	return err == nil || errors.Is(err, fs.ErrNotExist)
}
