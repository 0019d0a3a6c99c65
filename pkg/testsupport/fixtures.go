package testsupport

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
)

// Tracker counts concurrent entries into plugin code so tests can assert
// that the gate never lets two calls overlap.
type Tracker struct {
	inside  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
}

// Enter marks the start of a plugin call.
func (t *Tracker) Enter() {
	if t == nil {
		return
	}
	t.calls.Add(1)
	n := t.inside.Add(1)
	for {
		seen := t.maxSeen.Load()
		if n <= seen || t.maxSeen.CompareAndSwap(seen, n) {
			return
		}
	}
}

// Exit marks the end of a plugin call.
func (t *Tracker) Exit() {
	if t == nil {
		return
	}
	t.inside.Add(-1)
}

// MaxConcurrent reports the highest number of overlapping calls observed.
func (t *Tracker) MaxConcurrent() int {
	return int(t.maxSeen.Load())
}

// Calls reports how many plugin calls were made.
func (t *Tracker) Calls() int {
	return int(t.calls.Load())
}

// StubValidator returns a fixed code and optionally writes an error log.
type StubValidator struct {
	Code      int
	Log       string
	Err       error
	Panic     any
	InfoValue any
	Delay     time.Duration
	Tracker   *Tracker

	// Started, when set, receives one value per ParseDocument call as soon as
	// the call begins.
	Started chan<- string
	// Block, when set, is read once before ParseDocument returns.
	Block <-chan struct{}

	mu    sync.Mutex
	paths []string
}

// ParseDocument implements plugin.Validator.
func (v *StubValidator) ParseDocument(inputPath, errorLogPath string) (int, error) {
	v.Tracker.Enter()
	defer v.Tracker.Exit()

	v.mu.Lock()
	v.paths = append(v.paths, inputPath)
	v.mu.Unlock()

	if v.Started != nil {
		v.Started <- inputPath
	}
	if v.Block != nil {
		<-v.Block
	}
	if v.Delay > 0 {
		time.Sleep(v.Delay)
	}
	if v.Panic != nil {
		panic(v.Panic)
	}
	if v.Log != "" {
		if err := os.WriteFile(errorLogPath, []byte(v.Log), 0o644); err != nil {
			return 0, err
		}
	}
	return v.Code, v.Err
}

// Info implements plugin.Validator.
func (v *StubValidator) Info() any {
	return v.InfoValue
}

// Inputs returns the input paths seen so far, in call order.
func (v *StubValidator) Inputs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.paths...)
}

// StubRenderer writes Content to the output path.
type StubRenderer struct {
	Content []byte
	Err     error
	Panic   any
	Delay   time.Duration
	Tracker *Tracker

	mu    sync.Mutex
	infos []any
}

// CreatePDF implements plugin.Renderer.
func (r *StubRenderer) CreatePDF(info any, outputPath, _ string, _ string) error {
	r.Tracker.Enter()
	defer r.Tracker.Exit()

	r.mu.Lock()
	r.infos = append(r.infos, info)
	r.mu.Unlock()

	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}
	if r.Panic != nil {
		panic(r.Panic)
	}
	if r.Err != nil {
		return r.Err
	}
	content := r.Content
	if content == nil {
		content = []byte("%PDF-1.4\n%stub\n")
	}
	return os.WriteFile(outputPath, content, 0o644)
}

// Infos returns the metadata values handed to CreatePDF.
func (r *StubRenderer) Infos() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.infos...)
}

// Registry builds a sealed registry from pairs.
func Registry(t *testing.T, pairs map[plugin.TypeID]plugin.Pair) *plugin.Registry {
	t.Helper()

	reg := plugin.NewRegistry()
	for id, pair := range pairs {
		if err := reg.Register(id, pair); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	reg.Seal()
	return reg
}

// WriteDocument stores content as name inside dir and returns the path.
func WriteDocument(t *testing.T, dir, name, content string) string {
	t.Helper()

	if dir == "" {
		t.Fatalf("testsupport: document dir is required")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}

// ErrStub is a generic failure for stub plugins.
var ErrStub = errors.New("testsupport: stub failure")
