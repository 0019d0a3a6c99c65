package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/jemish-virani/declaratii-anaf/pkg/artifact"
	"github.com/jemish-virani/declaratii-anaf/pkg/cache"
	"github.com/jemish-virani/declaratii-anaf/pkg/gate"
	"github.com/jemish-virani/declaratii-anaf/pkg/jsonml"
	"github.com/jemish-virani/declaratii-anaf/pkg/pipeline"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
	"github.com/jemish-virani/declaratii-anaf/pkg/workspace"
)

// Messages returned for requests rejected before the pipeline runs.
const (
	MessageMissingUpload = "No file uploaded or missing declaration name"
	MessageEmptyArchive  = "Zip file does not contain a valid XML file"
)

var errEmptyArchive = errors.New(MessageEmptyArchive)

// Logger records request outcomes.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option customises the service.
type Option func(*Service)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGate injects the serialization gate.
func WithGate(g *gate.Gate) Option {
	return func(s *Service) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithCache injects the artifact cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithWorkspace injects the workspace manager.
func WithWorkspace(m *workspace.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.workspace = m
		}
	}
}

// WithObserver forwards pipeline phase transitions.
func WithObserver(fn pipeline.Observer) Option {
	return func(s *Service) {
		s.observer = fn
	}
}

// Service is the process-wide context shared by every transport: one
// registry, one gate, one cache and one workspace root.
type Service struct {
	registry  *plugin.Registry
	gate      *gate.Gate
	cache     *cache.Cache
	workspace *workspace.Manager
	pipeline  *pipeline.Orchestrator
	logger    Logger
	observer  pipeline.Observer
	newID     func() string
}

// New wires a service around registry.
func New(registry *plugin.Registry, options ...Option) *Service {
	s := &Service{
		registry: registry,
		logger:   nopLogger{},
		newID:    uuid.NewString,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.registry == nil {
		s.registry = plugin.NewRegistry()
		s.registry.Seal()
	}
	if s.gate == nil {
		s.gate = gate.New(gate.DefaultTimeout)
	}
	if s.cache == nil {
		s.cache = cache.New(cache.WithLogger(s.logger))
	}
	if s.workspace == nil {
		s.workspace = workspace.NewManager("")
	}
	s.pipeline = pipeline.New(s.registry,
		pipeline.WithGate(s.gate),
		pipeline.WithWorkspace(s.workspace),
		pipeline.WithLogger(s.logger),
		pipeline.WithObserver(s.observer),
	)
	return s
}

// Types lists the registered declaration types.
func (s *Service) Types() []plugin.TypeID {
	return s.registry.Types()
}

// Gate exposes the serialization gate for instrumentation.
func (s *Service) Gate() *gate.Gate {
	return s.gate
}

// Submit validates content as a document of typeID. The document is stored
// as "<type>.xml" in a fresh workspace directory.
func (s *Service) Submit(ctx context.Context, typeID string, content []byte) pipeline.Result {
	return s.finish(s.newID(), s.pipeline.ProcessContent(ctx, typeID, content))
}

// SubmitJSONML converts a JSONML document to XML and validates it. The type
// comes from the root tag. Only undecodable input is returned as an error.
func (s *Service) SubmitJSONML(ctx context.Context, data []byte) (pipeline.Result, error) {
	doc, err := jsonml.Parse(data)
	if err != nil {
		return pipeline.Result{}, err
	}
	content, err := doc.XML()
	if err != nil {
		return pipeline.Result{}, err
	}
	return s.Submit(ctx, string(plugin.TypeFromTag(doc.Tag())), content), nil
}

// SubmitUpload stores an uploaded file (or the first entry of an uploaded
// zip archive) and validates it as typeID.
func (s *Service) SubmitUpload(ctx context.Context, typeID, filename string, r io.Reader) pipeline.Result {
	requestID := s.newID()
	if r == nil || strings.TrimSpace(filename) == "" || strings.TrimSpace(typeID) == "" {
		return s.finish(requestID, pipeline.Failure(pipeline.KindInvalidRequest, MessageMissingUpload))
	}
	res := s.pipeline.ProcessStored(ctx, typeID, func(dir *workspace.Dir, _ plugin.TypeID) (string, error) {
		path, err := dir.StoreUpload(filename, r)
		if errors.Is(err, workspace.ErrEmptyArchive) {
			return "", errEmptyArchive
		}
		return path, err
	})
	return s.finish(requestID, res)
}

// Lookup returns the cached artifact for a download id.
func (s *Service) Lookup(fileID string) (*artifact.Artifact, bool) {
	return s.cache.Get(strings.TrimSpace(fileID))
}

// Close evicts every cached artifact, deleting its files.
func (s *Service) Close() {
	s.cache.Close()
}

func (s *Service) finish(requestID string, res pipeline.Result) pipeline.Result {
	if res.HasArtifact() {
		if err := s.cache.Put(res.Artifact); err != nil {
			s.logger.Printf("service: %s: cache: %v", requestID, err)
		}
	}
	s.logger.Printf("service: %s type=%q kind=%s code=%d file=%s", requestID, res.TypeID, res.Kind, res.ReturnCode, res.FileID())
	return res
}
