package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/normalize"
	"github.com/roach88/rostersync/internal/poller"
	"github.com/roach88/rostersync/internal/portal"
	"github.com/roach88/rostersync/internal/record"
)

func newHire() record.Record {
	return record.Record{
		record.KeyField:               record.String("789"),
		normalize.FieldFirstName:      record.String("Grace"),
		normalize.FieldHiredDate:      record.MustTime("2024-02-01T13:00:00.000Z"),
		normalize.FieldStandardRate:   record.MustDecimal("15.25"),
		normalize.FieldAllocatedStore: record.Refs("recS1"),
		normalize.FieldSalaried:       record.Bool(true),
		"Not In The Import Layout":    record.String("ignored"),
	}
}

func TestPutEmployee_WritesImportWorkbook(t *testing.T) {
	f := newFixture(t)
	rec := portal.NewRecorder(f.exports)
	deps := f.deps()
	deps.Portal = rec

	got, err := f.engine(deps).PutEmployee(context.Background(), newHire())
	require.NoError(t, err)
	assert.Equal(t, PutResult, got)

	work := filepath.Join(f.exports, "imports")
	path := filepath.Join(work, DefaultImportName)
	require.Equal(t, []portal.Call{{Subcommand: portal.SubImport, Username: "ops", Args: []string{path}}}, rec.Calls())

	rows, err := export.NewReader(work).ReadFile(DefaultImportName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "789", row[1])
	assert.Equal(t, "Grace", row[3])
	assert.Equal(t, "2024-02-01", row[16])
	assert.Equal(t, "TRUE", row[20])
	assert.Equal(t, "15.25", row[32])
	assert.Equal(t, "S1", row[41])
}

func TestPutEmployee_InvalidPayroll(t *testing.T) {
	f := newFixture(t)
	rec := portal.NewRecorder(f.exports)
	deps := f.deps()
	deps.Portal = rec

	bad := newHire()
	bad[record.KeyField] = record.String("12-3a")
	_, err := f.engine(deps).PutEmployee(context.Background(), bad)
	assert.True(t, IsInvalidInput(err))
	assert.Empty(t, rec.Calls())
	assert.Equal(t, 0, f.secrets.Calls())
}

func TestPutEmployee_NoPortal(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine(f.deps()).PutEmployee(context.Background(), newHire())
	assert.True(t, IsInvalidInput(err))
}

func TestPutEmployee_WaitsForReceipt(t *testing.T) {
	f := newFixture(t)
	acks := t.TempDir()
	rec := portal.NewRecorder(acks)
	rec.OnCall(portal.SubImport, "import-receipt-789.txt", []byte("ok"))
	deps := f.deps()
	deps.Portal = rec
	deps.Acks = poller.DirLocation(acks)

	e := New(deps, Config{ReceiptName: "import-receipt"})
	_, err := e.PutEmployee(context.Background(), newHire())
	require.NoError(t, err)
	assert.Empty(t, f.clock.Sleeps())
}

func TestPutEmployee_ReceiptNeverArrives(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Portal = portal.NewRecorder(f.exports)
	deps.Acks = poller.DirLocation(t.TempDir())

	e := New(deps, Config{ReceiptName: "import-receipt", PollRetries: 3, PollInterval: time.Second})
	_, err := e.PutEmployee(context.Background(), newHire())
	assert.Equal(t, KindPollTimeout, KindOf(err))
	assert.Len(t, f.clock.Sleeps(), 3)
}

func TestReport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.exports, export.ReportFile), []byte("stale"), 0o644))
	rec := portal.NewRecorder(f.exports)
	rec.OnCall(portal.SubExportReport, export.ReportFile, []byte("Store,Hours\nS1,40\nS2,12.5\n"))
	deps := f.deps()
	deps.Portal = rec

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	got, err := f.engine(deps).Report(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, &ReportResult{
		Rows: []map[string]string{
			{"Store": "S1", "Hours": "40"},
			{"Store": "S2", "Hours": "12.5"},
		},
		Length: 2,
	}, got)
	assert.Equal(t, []string{"2024-03-01", "2024-03-31"}, rec.Calls()[0].Args)
}

func TestReport_InvalidRange(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := f.engine(f.deps()).Report(context.Background(), start, start.AddDate(0, 0, -1))
	assert.True(t, IsInvalidInput(err))

	_, err = f.engine(f.deps()).Report(context.Background(), time.Time{}, start)
	assert.True(t, IsInvalidInput(err))
}

func TestReport_NeverAppears(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	deps.Portal = portal.NewRecorder(f.exports)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.engine(deps).Report(context.Background(), day, day)
	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindPollTimeout, re.Kind)
	assert.Equal(t, StageReport, re.Stage)
	assert.Len(t, f.clock.Sleeps(), DefaultPollRetries)
}

func TestReport_WithoutPortalReadsDroppedFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.exports, export.ReportFile), []byte("a\n1\n"), 0o644))

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := f.engine(f.deps()).Report(context.Background(), day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Length)
	assert.Equal(t, 0, f.secrets.Calls())
}
