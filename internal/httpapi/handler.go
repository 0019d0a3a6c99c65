// Package httpapi exposes the declaration service over HTTP.
package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jemish-virani/declaratii-anaf/pkg/pipeline"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
	"github.com/jemish-virani/declaratii-anaf/pkg/service"
)

//go:embed assets/index.html
var indexHTML []byte

//go:embed assets/javascript.js
var javascript []byte

// Default request limits.
const (
	DefaultMaxUploadBytes = 32 << 20
	DefaultMaxJSONBytes   = 16 << 20
)

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-Id"

// Logger records request activity.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Mux is the minimal interface required to register handlers. It is
// satisfied by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// Option customises the API.
type Option func(*API)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMaxUploadBytes bounds multipart uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxUpload = n
		}
	}
}

// WithMaxJSONBytes bounds JSONML request bodies.
func WithMaxJSONBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxJSON = n
		}
	}
}

// API serves the declaration routes.
type API struct {
	svc         *service.Service
	description *Description
	logger      Logger
	maxUpload   int64
	maxJSON     int64
}

// New loads the API description and binds it to svc.
func New(ctx context.Context, svc *service.Service, opts ...Option) (*API, error) {
	if svc == nil {
		return nil, errors.New("httpapi: service is required")
	}
	description, err := LoadDescription(ctx)
	if err != nil {
		return nil, err
	}
	a := &API{
		svc:         svc,
		description: description,
		logger:      nopLogger{},
		maxUpload:   DefaultMaxUploadBytes,
		maxJSON:     DefaultMaxJSONBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Description returns the loaded API description.
func (a *API) Description() *Description {
	return a.description
}

// RegisterRoutes mounts every documented operation plus the static assets
// on mux. A documented operation without a handler is an error.
func (a *API) RegisterRoutes(mux Mux) error {
	if mux == nil {
		return errors.New("httpapi: missing mux")
	}
	handlers := map[string]http.HandlerFunc{
		"available":         a.handleAvailable,
		"listTypes":         a.handleTypes,
		"validateJSONML":    a.handleValidate,
		"uploadDeclaration": a.handleUpload,
		"download":          a.handleDownload,
	}
	for _, op := range a.description.Operations() {
		handler, ok := handlers[op.ID]
		if !ok {
			return fmt.Errorf("httpapi: no handler for operation %s (%s)", op.ID, op.Pattern())
		}
		mux.Handle(op.Pattern(), a.withRequestLog(handler))
	}
	mux.Handle("GET /{$}", staticHandler("text/html; charset=utf-8", indexHTML))
	mux.Handle("GET /javascript.js", staticHandler("text/javascript; charset=utf-8", javascript))
	mux.Handle("GET /openapi.json", staticHandler("application/json", a.description.JSON()))
	return nil
}

// Handler returns a mux with every route registered.
func (a *API) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := a.RegisterRoutes(mux); err != nil {
		return nil, err
	}
	return mux, nil
}

func staticHandler(contentType string, body []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withRequestLog(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(RequestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		a.logger.Printf("httpapi: %s %s %s -> %d (%s)", id, r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (a *API) handleAvailable(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "yes")
}

type typesResponse struct {
	Types []plugin.TypeID `json:"types"`
}

func (a *API) handleTypes(w http.ResponseWriter, _ *http.Request) {
	types := a.svc.Types()
	if types == nil {
		types = []plugin.TypeID{}
	}
	writeJSON(w, http.StatusOK, typesResponse{Types: types})
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxJSON))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, pipeline.Failure(pipeline.KindInvalidRequest, "payload exceeds limit"))
			return
		}
		writeJSON(w, http.StatusBadRequest, pipeline.Failure(pipeline.KindInvalidRequest, "unable to read body"))
		return
	}
	res, err := a.svc.SubmitJSONML(r.Context(), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, pipeline.Failure(pipeline.KindInvalidRequest, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(a.maxUpload); err != nil {
		a.logger.Printf("httpapi: upload: %v", err)
		writeJSON(w, http.StatusOK, a.svc.SubmitUpload(r.Context(), "", "", nil))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	decName := r.FormValue("decName")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusOK, a.svc.SubmitUpload(r.Context(), decName, "", nil))
		return
	}
	defer file.Close()

	writeJSON(w, http.StatusOK, a.svc.SubmitUpload(r.Context(), decName, header.Filename, file))
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	art, ok := a.svc.Lookup(r.PathValue("id"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	f, err := os.Open(art.OutputFile)
	if err != nil {
		a.logger.Printf("httpapi: download %s: %v", art.Fingerprint(), err)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		a.logger.Printf("httpapi: download %s: %v", art.Fingerprint(), err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	contentType, ext := sniff(f)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.TypeID+ext))
	http.ServeContent(w, r, art.TypeID+ext, info.ModTime(), f)
}

// sniff detects the artifact content type. Renderers write PDF or HTML;
// anything else is served as text.
func sniff(f *os.File) (string, string) {
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	_, _ = f.Seek(0, io.SeekStart)

	detected := http.DetectContentType(head[:n])
	switch {
	case strings.HasPrefix(detected, "application/pdf"):
		return "application/pdf", ".pdf"
	case strings.HasPrefix(detected, "text/html"):
		return "text/html; charset=utf-8", ".html"
	}
	return "text/plain; charset=utf-8", ".txt"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
