package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// FakeRecord is one row of a FakeAirtable table.
type FakeRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// FakeRequest records one request served by FakeAirtable.
type FakeRequest struct {
	Method  string
	Table   string
	Records int
	Offset  string
}

// FakeAirtable is an in-memory stand-in for the Airtable REST API.
// Mount it on an httptest.Server. It serves
//
//	GET   /v0/{base}/{table}?offset=&pageSize=
//	PATCH /v0/{base}/{table}   {"records":[{"id","fields"}]}
//	POST  /v0/{base}/{table}   {"records":[{"fields"}]}
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeAirtable struct {
	mu       sync.Mutex
	apiKey   string
	tables   map[string][]FakeRecord
	requests []FakeRequest
	failures []fakeFailure
	nextID   int
	pageSize int
}

type fakeFailure struct {
	method string
	status int
}

// NewFakeAirtable creates an empty fake that requires the given bearer key.
func NewFakeAirtable(apiKey string) *FakeAirtable {
	return &FakeAirtable{apiKey: apiKey, tables: map[string][]FakeRecord{}, pageSize: 100}
}

// SetPageSize caps list pages so tests can exercise offsets.
func (f *FakeAirtable) SetPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

// Seed appends records to a table.
func (f *FakeAirtable) Seed(table string, records ...FakeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = append(f.tables[table], records...)
}

// FailNext makes the next request with method fail with status.
// Calls queue up in order.
func (f *FakeAirtable) FailNext(method string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, fakeFailure{method: method, status: status})
}

// Records returns a copy of a table.
func (f *FakeAirtable) Records(table string) []FakeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeRecord, len(f.tables[table]))
	copy(out, f.tables[table])
	return out
}

// Requests returns every request served, including failed ones.
func (f *FakeAirtable) Requests() []FakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Writes returns the PATCH and POST requests.
func (f *FakeAirtable) Writes() []FakeRequest {
	var out []FakeRequest
	for _, r := range f.Requests() {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeAirtable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+f.apiKey {
		writeFakeError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "bad key")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/"), "/")
	if len(parts) != 3 || parts[0] != "v0" {
		writeFakeError(w, http.StatusNotFound, "NOT_FOUND", "unknown path")
		return
	}
	table, err := url.PathUnescape(parts[2])
	if err != nil {
		writeFakeError(w, http.StatusNotFound, "NOT_FOUND", "bad table")
		return
	}

	var body struct {
		Records []FakeRecord `json:"records"`
	}
	if r.Method != http.MethodGet {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeFakeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_BODY", err.Error())
			return
		}
	}
	f.requests = append(f.requests, FakeRequest{
		Method:  r.Method,
		Table:   table,
		Records: len(body.Records),
		Offset:  r.URL.Query().Get("offset"),
	})

	for i, fail := range f.failures {
		if fail.method == r.Method {
			f.failures = append(f.failures[:i], f.failures[i+1:]...)
			writeFakeError(w, fail.status, "INJECTED", "injected failure")
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		f.list(w, r, table)
	case http.MethodPatch:
		f.update(w, table, body.Records)
	case http.MethodPost:
		f.create(w, table, body.Records)
	default:
		writeFakeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method)
	}
}

func (f *FakeAirtable) list(w http.ResponseWriter, r *http.Request, table string) {
	records, ok := f.tables[table]
	if !ok {
		writeFakeError(w, http.StatusNotFound, "TABLE_NOT_FOUND", table)
		return
	}
	size := f.pageSize
	if ps, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && ps > 0 && ps < size {
		size = ps
	}
	start := 0
	if off := r.URL.Query().Get("offset"); off != "" {
		n, err := strconv.Atoi(off)
		if err != nil {
			writeFakeError(w, http.StatusUnprocessableEntity, "LIST_RECORDS_ITERATOR_NOT_AVAILABLE", off)
			return
		}
		start = n
	}
	end := min(start+size, len(records))
	resp := map[string]any{"records": records[start:end]}
	if end < len(records) {
		resp["offset"] = strconv.Itoa(end)
	}
	writeFakeJSON(w, http.StatusOK, resp)
}

func (f *FakeAirtable) update(w http.ResponseWriter, table string, in []FakeRecord) {
	if len(in) > 10 {
		writeFakeError(w, http.StatusUnprocessableEntity, "INVALID_RECORDS", "too many records")
		return
	}
	records := f.tables[table]
	out := make([]FakeRecord, 0, len(in))
	for _, upd := range in {
		i := -1
		for j := range records {
			if records[j].ID == upd.ID {
				i = j
				break
			}
		}
		if i < 0 {
			writeFakeError(w, http.StatusNotFound, "ROW_DOES_NOT_EXIST", upd.ID)
			return
		}
		if records[i].Fields == nil {
			records[i].Fields = map[string]any{}
		}
		for k, v := range upd.Fields {
			records[i].Fields[k] = v
		}
		out = append(out, records[i])
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (f *FakeAirtable) create(w http.ResponseWriter, table string, in []FakeRecord) {
	if len(in) > 10 {
		writeFakeError(w, http.StatusUnprocessableEntity, "INVALID_RECORDS", "too many records")
		return
	}
	out := make([]FakeRecord, 0, len(in))
	for _, c := range in {
		f.nextID++
		rec := FakeRecord{ID: fmt.Sprintf("recNew%03d", f.nextID), Fields: c.Fields}
		if rec.Fields == nil {
			rec.Fields = map[string]any{}
		}
		f.tables[table] = append(f.tables[table], rec)
		out = append(out, rec)
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func writeFakeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFakeError(w http.ResponseWriter, status int, typ, msg string) {
	writeFakeJSON(w, status, map[string]any{"error": map[string]string{"type": typ, "message": msg}})
}
