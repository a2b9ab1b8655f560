package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rostersync/internal/diff"
	"github.com/roach88/rostersync/internal/engine"
	"github.com/roach88/rostersync/internal/record"
)

type fakeRunner struct {
	cs        *diff.ChangeSet
	syncErr   error
	put       []record.Record
	putErr    error
	reportErr error
	start     time.Time
	end       time.Time
	deadline  bool
}

func (f *fakeRunner) Sync(ctx context.Context) (*diff.ChangeSet, error) {
	_, f.deadline = ctx.Deadline()
	return f.cs, f.syncErr
}

func (f *fakeRunner) PutEmployee(_ context.Context, rec record.Record) (string, error) {
	f.put = append(f.put, rec)
	if f.putErr != nil {
		return "", f.putErr
	}
	return engine.PutResult, nil
}

func (f *fakeRunner) Report(_ context.Context, start, end time.Time) (*engine.ReportResult, error) {
	f.start, f.end = start, end
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return &engine.ReportResult{Rows: []map[string]string{{"Store": "S1"}}, Length: 1}, nil
}

func serve(t *testing.T, r Runner, method, target, body string, opts ...Option) *httptest.ResponseRecorder {
	t.Helper()
	e := New(NewHandler(r, opts...))
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGetEmployees(t *testing.T) {
	cs := &diff.ChangeSet{
		ToUpdate:  []diff.Update{},
		ToCreate:  []diff.Create{{Fields: record.Record{record.KeyField: record.String("456")}}},
		Unchanged: []string{"123"},
	}
	runner := &fakeRunner{cs: cs}
	rec := serve(t, runner, http.MethodGet, "/employees", "", WithRunTimeout(time.Minute))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"to_update":[],"to_create":[{"fields":{"LiQ - Payroll Number":"456"}}],"unchanged":["123"],"skipped":0}`, rec.Body.String())
	assert.True(t, runner.deadline)
}

func TestGetEmployees_Failure(t *testing.T) {
	runner := &fakeRunner{syncErr: &engine.RunError{
		Kind:    engine.KindBaselineUnavailable,
		Stage:   engine.StageIndex,
		Message: "load employee index",
		Err:     errors.New("401"),
	}}
	rec := serve(t, runner, http.MethodGet, "/employees", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, map[string]any{
		"error":        "BaselineUnavailable",
		"errorDetails": "load employee index: 401",
		"stage":        "index",
	}, decode(t, rec))
}

func TestPostEmployee(t *testing.T) {
	runner := &fakeRunner{}
	rec := serve(t, runner, http.MethodPost, "/employees", `{"LiQ - Payroll Number":"789","LiQ - Standard Rate":15.25}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"result": "success"}, decode(t, rec))
	require.Len(t, runner.put, 1)
	assert.Equal(t, "789", runner.put[0].Key())
}

func TestPostEmployee_BadBody(t *testing.T) {
	runner := &fakeRunner{}
	rec := serve(t, runner, http.MethodPost, "/employees", `{"nested":{"a":1}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidInput", decode(t, rec)["error"])
	assert.Empty(t, runner.put)
}

func TestPostEmployee_Failure(t *testing.T) {
	runner := &fakeRunner{putErr: &engine.RunError{Kind: engine.KindCommitFailure, Stage: engine.StagePortal, Message: "portal import"}}
	rec := serve(t, runner, http.MethodPost, "/employees", `{"LiQ - Payroll Number":"789"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetReporting(t *testing.T) {
	runner := &fakeRunner{}
	rec := serve(t, runner, http.MethodGet, "/reporting?start_date=2024-03-01&end_date=2024-03-31", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":[{"Store":"S1"}],"length":1}`, rec.Body.String())
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), runner.start)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), runner.end)
}

func TestGetReporting_BadDates(t *testing.T) {
	for _, target := range []string{
		"/reporting",
		"/reporting?start_date=2024-03-01",
		"/reporting?start_date=03/01/2024&end_date=2024-03-31",
	} {
		rec := serve(t, &fakeRunner{}, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetReporting_Timeout(t *testing.T) {
	runner := &fakeRunner{reportErr: &engine.RunError{Kind: engine.KindPollTimeout, Stage: engine.StageReport, Message: "no report"}}
	rec := serve(t, runner, http.MethodGet, "/reporting?start_date=2024-03-01&end_date=2024-03-01", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "PollTimeout", decode(t, rec)["error"])
}

func TestHealthz(t *testing.T) {
	rec := serve(t, &fakeRunner{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
