package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rostersync/internal/commit"
)

func TestNewRunError_ContextCausesAreTimeouts(t *testing.T) {
	err := newRunError(KindBaselineUnavailable, StageIndex, "load", fmt.Errorf("get: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, err.Kind)
	assert.Equal(t, StageIndex, err.Stage)

	err = newRunError(KindBaselineUnavailable, StageIndex, "load", errors.New("boom"))
	assert.Equal(t, KindBaselineUnavailable, err.Kind)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("x")))
	wrapped := fmt.Errorf("outer: %w", &RunError{Kind: KindCommitFailure, Stage: StageCommit})
	assert.Equal(t, KindCommitFailure, KindOf(wrapped))
	assert.True(t, IsCommitFailure(wrapped))
}

func TestRunError_Message(t *testing.T) {
	err := &RunError{Kind: KindExportUnavailable, Stage: StageExport, Message: "read", Err: errors.New("corrupt")}
	assert.Equal(t, "ExportUnavailable at export: read: corrupt", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "corrupt")
}

func TestCommitRunError(t *testing.T) {
	chunk := &commit.ChunkError{List: commit.ListUpdate, Chunk: 1, Start: 10, End: 20, Err: errors.New("422")}
	snap := &commit.SnapshotError{Key: "employees/k", Err: errors.New("denied")}
	interrupted := fmt.Errorf("%w before update chunk 2: %w", commit.ErrCommitInterrupted, context.Canceled)

	tests := []struct {
		name  string
		err   error
		kind  ErrorKind
		stage Stage
	}{
		{"chunk", chunk, KindCommitFailure, StageCommit},
		{"chunk and snapshot", errors.Join(chunk, snap), KindCommitFailure, StageCommit},
		{"snapshot only", snap, KindSnapshotWriteFailure, StageSnapshotWrite},
		{"interrupted", interrupted, KindTimeout, StageCommit},
		{"interrupted and snapshot", errors.Join(interrupted, snap), KindTimeout, StageCommit},
		{"chunk timeout", &commit.ChunkError{Err: context.DeadlineExceeded}, KindTimeout, StageCommit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := commitRunError(tt.err)
			assert.Equal(t, tt.kind, re.Kind)
			assert.Equal(t, tt.stage, re.Stage)
		})
	}
}

func TestNewEnvelope(t *testing.T) {
	syncErr := &RunError{Kind: KindBaselineUnavailable, Stage: StageIndex, Message: "load employee index", Err: errors.New("401")}
	env := NewEnvelope(OpSync, syncErr)
	assert.Equal(t, Envelope{
		StatusCode: http.StatusBadGateway,
		Body: EnvelopeBody{
			Error:        KindBaselineUnavailable,
			ErrorDetails: "load employee index: 401",
			Stage:        StageIndex,
		},
	}, env)

	assert.Equal(t, http.StatusInternalServerError, NewEnvelope(OpPut, syncErr).StatusCode)
	assert.Equal(t, http.StatusInternalServerError, NewEnvelope(OpReport, syncErr).StatusCode)

	bad := &RunError{Kind: KindInvalidInput, Stage: StageReport, Message: "dates required"}
	assert.Equal(t, http.StatusBadRequest, NewEnvelope(OpReport, bad).StatusCode)
	assert.Equal(t, http.StatusBadRequest, NewEnvelope(OpSync, bad).StatusCode)

	plain := NewEnvelope(OpSync, errors.New("panic recovered"))
	assert.Equal(t, KindInternal, plain.Body.Error)
	assert.Equal(t, "panic recovered", plain.Body.ErrorDetails)
	assert.Empty(t, plain.Body.Stage)
}
