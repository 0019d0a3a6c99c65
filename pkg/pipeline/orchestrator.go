package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/jemish-virani/declaratii-anaf/pkg/artifact"
	"github.com/jemish-virani/declaratii-anaf/pkg/gate"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
	"github.com/jemish-virani/declaratii-anaf/pkg/workspace"
)

// Phase names a step of the pipeline state machine.
type Phase string

const (
	PhaseResolve  Phase = "resolve"
	PhaseAcquire  Phase = "acquire"
	PhaseValidate Phase = "validate"
	PhaseClassify Phase = "classify"
	PhaseRender   Phase = "render"
	PhaseReject   Phase = "reject"
	PhasePackage  Phase = "package"
	PhaseRelease  Phase = "release"
)

// Observer is notified on every phase transition.
type Observer func(phase Phase, typeID plugin.TypeID)

// Logger records pipeline failures.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithGate injects the serialization gate. Every orchestrator sharing
// plugins must share the gate.
func WithGate(g *gate.Gate) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.gate = g
		}
	}
}

// WithWorkspace injects the manager used by ProcessContent and
// ProcessStored.
func WithWorkspace(m *workspace.Manager) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.workspace = m
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers a phase observer.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// Orchestrator sequences resolve → acquire → validate → classify →
// render → package → release for one document at a time. Plugin code only
// ever runs while the gate is held.
type Orchestrator struct {
	registry  *plugin.Registry
	gate      *gate.Gate
	workspace *workspace.Manager
	logger    Logger
	observer  Observer
}

// New constructs an Orchestrator over registry. Missing dependencies get
// defaults: a gate with gate.DefaultTimeout and a workspace in the OS temp
// directory.
func New(registry *plugin.Registry, options ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		logger:   nopLogger{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	if o.registry == nil {
		o.registry = plugin.NewRegistry()
	}
	if o.gate == nil {
		o.gate = gate.New(gate.DefaultTimeout)
	}
	if o.workspace == nil {
		o.workspace = workspace.NewManager("")
	}
	return o
}

// Request describes one document already stored on disk.
type Request struct {
	// TypeID names the declaration type; it is normalised before lookup.
	TypeID string

	// InputPath locates the document. The error log and output file are
	// derived from it.
	InputPath string

	// Extra is passed through to the renderer untouched.
	Extra string
}

// StoreFunc writes the document into dir and returns its path.
type StoreFunc func(dir *workspace.Dir, id plugin.TypeID) (string, error)

// ProcessContent stores content in a fresh workspace directory as
// "<type>.xml" and processes it.
func (o *Orchestrator) ProcessContent(ctx context.Context, typeID string, content []byte) Result {
	return o.ProcessStored(ctx, typeID, func(dir *workspace.Dir, id plugin.TypeID) (string, error) {
		return dir.WriteInput(string(id)+".xml", content)
	})
}

// ProcessStored allocates a fresh workspace directory, lets store write the
// document into it and processes the result. Unknown types are rejected
// before anything is written. The directory is removed again unless an
// artifact owns it; store errors become io_failure results carrying the
// error text.
func (o *Orchestrator) ProcessStored(ctx context.Context, typeID string, store StoreFunc) Result {
	id := plugin.NormalizeType(typeID)
	if !o.registry.Has(id) {
		return UnknownType(id)
	}
	dir, err := o.workspace.Allocate()
	if err != nil {
		o.logger.Printf("pipeline: %s: %v", id, err)
		return Failure(KindIOFailure, err.Error())
	}
	input, err := store(dir, id)
	if err != nil {
		_ = dir.Remove()
		o.logger.Printf("pipeline: %s: %v", id, err)
		return Failure(KindIOFailure, err.Error())
	}
	res := o.Process(ctx, Request{TypeID: string(id), InputPath: input})
	if res.HasArtifact() {
		res.Artifact.Dir = dir.Path
	} else {
		_ = dir.Remove()
	}
	return res
}

// Process runs the pipeline for req. It never returns an error: every
// outcome, including plugin panics, is a Result. Once the gate has been
// acquired it is released on every path.
func (o *Orchestrator) Process(ctx context.Context, req Request) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	id := plugin.NormalizeType(req.TypeID)

	o.observe(PhaseResolve, id)
	pair, err := o.registry.Resolve(id)
	if err != nil {
		return UnknownType(id)
	}
	if req.InputPath == "" {
		return Failure(KindInvalidRequest, "pipeline: input path is required")
	}

	o.observe(PhaseAcquire, id)
	ticket, err := o.gate.Acquire(ctx)
	switch {
	case errors.Is(err, gate.ErrBusy):
		o.logger.Printf("pipeline: %s: gate busy after %s", id, o.gate.Timeout())
		return Failure(KindServerBusy, MessageServerBusy)
	case errors.Is(err, gate.ErrInterrupted):
		return Failure(KindInterrupted, MessageInterrupted)
	case err != nil:
		return Failure(KindPluginFailure, err.Error())
	}
	defer func() {
		ticket.Release()
		o.observe(PhaseRelease, id)
	}()

	return o.runLocked(ctx, pair, id, req)
}

func (o *Orchestrator) runLocked(ctx context.Context, pair plugin.Pair, id plugin.TypeID, req Request) (res Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			o.logger.Printf("pipeline: %s: plugin panic: %v\n%s", id, recovered, debug.Stack())
			res = Failure(KindPluginFailure, fmt.Sprint(recovered))
		}
	}()

	input := req.InputPath
	errorLog := workspace.ErrorLogPath(input)
	output := workspace.OutputPath(input)

	o.observe(PhaseValidate, id)
	returnCode, err := pair.Validator.ParseDocument(input, errorLog)
	if err != nil {
		o.logger.Printf("pipeline: %s: validate: %v", id, err)
		return Failure(KindPluginFailure, err.Error())
	}

	o.observe(PhaseClassify, id)
	var logContent string
	if NeedsErrorLog(returnCode) {
		logContent, err = workspace.ReadErrorLog(errorLog)
		if err != nil {
			o.logger.Printf("pipeline: %s: %v", id, err)
			return Failure(KindIOFailure, err.Error())
		}
	}
	verdict := Classify(returnCode, string(id), logContent)
	if !verdict.Render {
		o.observe(PhaseReject, id)
		return Result{
			Message:    verdict.Message,
			ReturnCode: returnCode,
			Kind:       KindValidationRejected,
			TypeID:     string(id),
		}
	}

	if ctx.Err() != nil {
		return Failure(KindInterrupted, MessageInterrupted)
	}

	o.observe(PhaseRender, id)
	if err := pair.Renderer.CreatePDF(pair.Validator.Info(), output, input, req.Extra); err != nil {
		o.logger.Printf("pipeline: %s: render: %v", id, err)
		return Result{
			Message:    err.Error(),
			ReturnCode: UnknownError,
			Kind:       KindRenderFailure,
			TypeID:     string(id),
		}
	}

	o.observe(PhasePackage, id)
	kind := KindOK
	if verdict.Category == CategoryWarnings {
		kind = KindWarning
	}
	return Result{
		Message:    verdict.Message,
		ReturnCode: returnCode,
		Kind:       kind,
		TypeID:     string(id),
		Artifact:   artifact.New(verdict.Message, string(id), output, input, errorLog, returnCode),
	}
}

func (o *Orchestrator) observe(phase Phase, id plugin.TypeID) {
	if o.observer != nil {
		o.observer(phase, id)
	}
}

// UnknownType is the result for a type with no registered plugins.
func UnknownType(id plugin.TypeID) Result {
	res := Failure(KindUnknownType, unknownDeclarationMessage(string(id)))
	res.TypeID = string(id)
	return res
}
