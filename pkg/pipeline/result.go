package pipeline

import (
	"encoding/json"

	"github.com/jemish-virani/declaratii-anaf/pkg/artifact"
)

// Kind classifies how a request ended.
type Kind string

const (
	KindOK                 Kind = "ok"
	KindWarning            Kind = "warning"
	KindUnknownType        Kind = "unknown_type"
	KindServerBusy         Kind = "server_busy"
	KindValidationRejected Kind = "validation_rejected"
	KindRenderFailure      Kind = "render_failure"
	KindIOFailure          Kind = "io_failure"
	KindInterrupted        Kind = "interrupted"
	KindPluginFailure      Kind = "plugin_failure"
	KindInvalidRequest     Kind = "invalid_request"
)

// Messages for results that do not come from the validator.
const (
	MessageServerBusy  = "Server is busy processing other documents. Please try again in a few minutes."
	MessageInterrupted = "Validation was interrupted"
)

// Result is the terminal outcome of one request. Only ok and warning
// results carry an Artifact.
type Result struct {
	Message    string
	ReturnCode int
	Kind       Kind
	TypeID     string
	Artifact   *artifact.Artifact
}

// Failure builds a non-artifact result carrying UnknownError.
func Failure(kind Kind, message string) Result {
	return Result{Message: message, ReturnCode: UnknownError, Kind: kind}
}

// HasArtifact reports whether the result produced a fetchable output.
func (r Result) HasArtifact() bool {
	return r.Artifact != nil
}

// FileID is the fingerprint under which the artifact can be downloaded.
func (r Result) FileID() string {
	return r.Artifact.Fingerprint()
}

type resultJSON struct {
	Message    string `json:"message"`
	FileID     string `json:"fileId,omitempty"`
	DecName    string `json:"decName"`
	ResultCode int    `json:"resultCode"`
	Kind       Kind   `json:"kind"`
}

// MarshalJSON emits the wire shape clients of the service already parse:
// message, fileId (omitted without an artifact), decName and resultCode.
func (r Result) MarshalJSON() ([]byte, error) {
	payload := resultJSON{
		Message:    r.Message,
		ResultCode: r.ReturnCode,
		Kind:       r.Kind,
	}
	if r.Artifact != nil {
		payload.FileID = r.Artifact.Fingerprint()
		payload.DecName = r.Artifact.TypeID
	}
	return json.Marshal(payload)
}
