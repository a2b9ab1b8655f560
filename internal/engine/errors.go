package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes run failures.
type ErrorKind string

const (
	// KindInvalidRow marks a row that failed normalization. Such rows are
	// absorbed by the run and never surface as a RunError.
	KindInvalidRow ErrorKind = "InvalidRow"

	// KindBaselineUnavailable indicates the previous snapshot, the
	// system-of-record index or the store directory could not be read.
	KindBaselineUnavailable ErrorKind = "BaselineUnavailable"

	// KindCommitFailure indicates a chunk was rejected. Earlier chunks stay
	// applied.
	KindCommitFailure ErrorKind = "CommitFailure"

	// KindPollTimeout indicates an awaited artifact never appeared.
	KindPollTimeout ErrorKind = "PollTimeout"

	// KindSecretUnavailable indicates a credential could not be resolved.
	KindSecretUnavailable ErrorKind = "SecretUnavailable"

	// KindExportUnavailable indicates no usable export could be read.
	KindExportUnavailable ErrorKind = "ExportUnavailable"

	// KindSnapshotWriteFailure indicates the new snapshot was not persisted.
	KindSnapshotWriteFailure ErrorKind = "SnapshotWriteFailure"

	// KindTimeout indicates the run context ended first.
	KindTimeout ErrorKind = "Timeout"

	// KindInvalidInput indicates a bad put or report request.
	KindInvalidInput ErrorKind = "InvalidInput"

	// KindInternal is reported for errors that are not a RunError.
	KindInternal ErrorKind = "Internal"
)

// Stage names where in a run an error occurred.
type Stage string

const (
	StageSecrets       Stage = "secrets"
	StageSnapshotRead  Stage = "snapshot_read"
	StageIndex         Stage = "index"
	StageExport        Stage = "export"
	StageNormalize     Stage = "normalize"
	StageDiff          Stage = "diff"
	StageCommit        Stage = "commit"
	StageSnapshotWrite Stage = "snapshot_write"
	StagePortal        Stage = "portal"
	StageReport        Stage = "report"
)

// RunError is a failed run.
type RunError struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// newRunError builds a RunError. A cause that is a context deadline or
// cancellation turns into KindTimeout.
func newRunError(kind ErrorKind, stage Stage, msg string, err error) *RunError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}
	return &RunError{Kind: kind, Stage: stage, Message: msg, Err: err}
}

// KindOf returns the kind of a RunError in err's chain, KindInternal for
// any other error and "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// IsTimeout returns true if err is a run that ran out of time.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// IsCommitFailure returns true if err is a rejected chunk.
func IsCommitFailure(err error) bool {
	return KindOf(err) == KindCommitFailure
}

// IsInvalidInput returns true if err is a rejected request.
func IsInvalidInput(err error) bool {
	return KindOf(err) == KindInvalidInput
}

// Operation names the entry point an envelope reports on.
type Operation string

const (
	OpSync   Operation = "sync"
	OpPut    Operation = "put"
	OpReport Operation = "report"
)

// Envelope is the failure response of an entry point.
type Envelope struct {
	StatusCode int          `json:"statusCode"`
	Body       EnvelopeBody `json:"body"`
}

// EnvelopeBody carries the error description.
type EnvelopeBody struct {
	Error        ErrorKind `json:"error"`
	ErrorDetails string    `json:"errorDetails"`
	Stage        Stage     `json:"stage,omitempty"`
}

// NewEnvelope describes err for op. Sync failures are 502; put and report
// failures are 500, or 400 for invalid input.
func NewEnvelope(op Operation, err error) Envelope {
	body := EnvelopeBody{Error: KindOf(err)}
	var re *RunError
	if errors.As(err, &re) {
		body.Stage = re.Stage
		body.ErrorDetails = re.Message
		if re.Err != nil {
			body.ErrorDetails += ": " + re.Err.Error()
		}
	} else if err != nil {
		body.ErrorDetails = err.Error()
	}

	status := http.StatusInternalServerError
	switch {
	case body.Error == KindInvalidInput:
		status = http.StatusBadRequest
	case op == OpSync:
		status = http.StatusBadGateway
	}
	return Envelope{StatusCode: status, Body: body}
}
