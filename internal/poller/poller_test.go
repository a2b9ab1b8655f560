package poller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rostersync/internal/testutil"
)

// countingLocation returns the scripted listings in order and counts calls.
type countingLocation struct {
	listings [][]string
	calls    int
	err      error
}

func (l *countingLocation) List(context.Context) ([]string, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if l.calls <= len(l.listings) {
		return l.listings[l.calls-1], nil
	}
	return nil, nil
}

func (l *countingLocation) String() string { return "scripted" }

func TestPoll_ExhaustedAfterExactlyNChecks(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	loc := &countingLocation{}

	status, err := New(clock, nil).Poll(context.Background(), loc, "export.xlsx", 5, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, status)
	assert.Equal(t, 5, loc.calls)
	assert.Len(t, clock.Sleeps(), 5)
	assert.Equal(t, 10*time.Second, clock.Elapsed())
}

func TestPoll_FoundOnThirdAttempt(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	loc := &countingLocation{listings: [][]string{
		{},
		{"LiveIQ_Employee_Export.xlsx.crdownload"},
		{"LiveIQ_Employee_Export.xlsx"},
	}}

	status, err := New(clock, nil).Poll(context.Background(), loc, "LiveIQ_Employee_Export.xlsx", 5, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Found, status)
	assert.Equal(t, 3, loc.calls)
	assert.Len(t, clock.Sleeps(), 2)
}

func TestPoll_SubstringMatch(t *testing.T) {
	loc := &countingLocation{listings: [][]string{{"2024-01-01 AccountingReport_Simple.csv"}}}
	status, err := New(testutil.NewFakeClock(time.Time{}), nil).Poll(context.Background(), loc, "AccountingReport_Simple", 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Found, status)
}

func TestPoll_ZeroRetries(t *testing.T) {
	loc := &countingLocation{}
	status, err := New(testutil.NewFakeClock(time.Time{}), nil).Poll(context.Background(), loc, "x", 0, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, status)
	assert.Zero(t, loc.calls)
}

func TestPoll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loc := &countingLocation{}

	_, err := New(testutil.NewFakeClock(time.Time{}), nil).Poll(ctx, loc, "x", 3, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, loc.calls)
}

func TestPoll_RealSleeperCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	loc := &countingLocation{}

	start := time.Now()
	_, err := New(nil, nil).Poll(ctx, loc, "x", 3, time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, loc.calls)
}

func TestPoll_ListError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(testutil.NewFakeClock(time.Time{}), nil).Poll(context.Background(), &countingLocation{err: boom}, "x", 3, time.Second)
	assert.ErrorIs(t, err, boom)
}

func TestDirLocation(t *testing.T) {
	dir := t.TempDir()
	loc := DirLocation(dir)

	names, err := loc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xlsx"), nil, 0o644))
	names, err = loc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xlsx"}, names)

	missing := DirLocation(filepath.Join(dir, "missing"))
	names, err = missing.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

type fakeLister map[string][]string

func (f fakeLister) ListKeys(_ context.Context, prefix string) ([]string, error) {
	return f[prefix], nil
}

func TestPrefixLocation(t *testing.T) {
	loc := PrefixLocation{Lister: fakeLister{"imports/": {"imports/receipt-1.json"}}, Prefix: "imports/"}
	status, err := New(testutil.NewFakeClock(time.Time{}), nil).Poll(context.Background(), loc, "receipt-1", 2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Found, status)
	assert.Equal(t, "prefix:imports/", loc.String())
}

func TestMatch(t *testing.T) {
	assert.True(t, Match([]string{"a", "target.xlsx"}, "target"))
	assert.False(t, Match([]string{"target.xlsx.crdownload"}, "target"))
	assert.False(t, Match(nil, "target"))
}
