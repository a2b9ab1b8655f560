package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/rostersync/internal/airtable"
	"github.com/roach88/rostersync/internal/engine"
	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/normalize"
	"github.com/roach88/rostersync/internal/poller"
	"github.com/roach88/rostersync/internal/record"
	"github.com/roach88/rostersync/internal/secrets"
	"github.com/roach88/rostersync/internal/snapshot"
	"github.com/roach88/rostersync/internal/testutil"
)

const (
	apiKey      = "keyHARNESS"
	baselineKey = "employees/baseline"
)

// epoch anchors the fake clock so snapshot times are stable.
var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Run executes a scenario in dir and evaluates its expectations. dir must be
// an empty scratch directory.
//
// Execution flow:
//  1. Seed the fake Airtable and the baseline snapshot
//  2. Write the export workbooks
//  3. Run one sync through the engine
//  4. Collect the change set, writes and stored snapshot
//  5. Check the expectations
func Run(ctx context.Context, s *Scenario, dir string) (*Result, error) {
	fake := testutil.NewFakeAirtable(apiKey)
	fake.Seed(airtable.DefaultEmployeesTable)
	for _, a := range s.Airtable {
		fake.Seed(airtable.DefaultEmployeesTable, testutil.FakeRecord{ID: a.ID, Fields: map[string]any{record.KeyField: a.Payroll}})
	}
	fake.Seed(airtable.DefaultStoresTable, storeRecords(s.Stores)...)
	for _, f := range s.Fail {
		fake.FailNext(f.Method, f.Status)
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	clock := testutil.NewFakeClock(epoch)
	snapshots := snapshot.NewMemoryStore("", clock.Now)
	if len(s.Baseline) > 0 {
		baseline, err := normalizeRows(s.Stores, s.Baseline)
		if err != nil {
			return nil, fmt.Errorf("baseline: %w", err)
		}
		if err := snapshots.Seed(baselineKey, epoch.Add(-24*time.Hour), baseline); err != nil {
			return nil, fmt.Errorf("seed baseline: %w", err)
		}
	}

	exports := filepath.Join(dir, "exports")
	if err := os.MkdirAll(exports, 0o755); err != nil {
		return nil, err
	}
	for _, f := range s.Exports {
		rows := make([]export.RawRow, len(f.Rows))
		for i, r := range f.Rows {
			cells, err := r.cells()
			if err != nil {
				return nil, fmt.Errorf("export %s row %d: %w", f.Name, i, err)
			}
			rows[i] = cells
		}
		if err := export.WriteWorkbook(filepath.Join(exports, f.Name), "", export.DefaultHeaderRows, rows); err != nil {
			return nil, fmt.Errorf("write export %s: %w", f.Name, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := engine.Deps{
		Secrets: secrets.NewMemoryProvider(map[string]string{
			secrets.DefaultNames.Portal: `{"username":"harness","password":"harness"}`,
			secrets.DefaultNames.APIKey: fmt.Sprintf(`{"apiKey":%q}`, apiKey),
		}),
		Snapshots: snapshots,
		Records: engine.AirtableRecords(airtable.Config{
			BaseURL:       srv.URL + "/v0",
			BaseID:        "appHARNESS",
			RatePerSecond: 1000,
			MaxRetries:    1,
		},
			airtable.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
			airtable.WithLogger(logger),
		),
		Exports: export.NewReader(exports, export.WithLogger(logger)),
		Poller:  poller.New(clock, logger),
		Keys:    testutil.NewSequenceKeys(""),
	}
	eng := engine.New(deps, engine.Config{}, engine.WithLogger(logger))

	result := NewResult()
	cs, err := eng.Sync(ctx)
	result.Err = err
	if cs != nil {
		for _, u := range cs.ToUpdate {
			result.Updates = append(result.Updates, Update{ID: u.ID, Payroll: u.Fields.Key()})
		}
		for _, c := range cs.ToCreate {
			result.Creates = append(result.Creates, c.Fields.Key())
		}
		result.Unchanged = append(result.Unchanged, cs.Unchanged...)
		result.Skipped = cs.Skipped
	}
	for _, w := range fake.Writes() {
		result.Writes = append(result.Writes, Write{Method: w.Method, Records: w.Records})
	}

	latest, lerr := snapshots.Latest(ctx)
	switch {
	case lerr == nil && latest.Key != baselineKey:
		result.SnapshotKey = latest.Key
		result.Snapshot = len(latest.Records)
	case lerr != nil && !errors.Is(lerr, snapshot.ErrNotFound):
		return nil, fmt.Errorf("read snapshot: %w", lerr)
	}

	checkExpect(s.Expect, result)
	return result, nil
}

func storeRecords(stores map[string]string) []testutil.FakeRecord {
	codes := make([]string, 0, len(stores))
	for code := range stores {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]testutil.FakeRecord, len(codes))
	for i, code := range codes {
		out[i] = testutil.FakeRecord{ID: stores[code], Fields: map[string]any{airtable.DefaultStoreField: code}}
	}
	return out
}

func normalizeRows(stores map[string]string, rows []Row) ([]record.Record, error) {
	n := normalize.New(stores)
	out := make([]record.Record, 0, len(rows))
	for i, r := range rows {
		cells, err := r.cells()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rec, err := n.Normalize(cells)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
