package commit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rostersync/internal/diff"
	"github.com/roach88/rostersync/internal/record"
	"github.com/roach88/rostersync/internal/testutil"
)

const rate = "LiQ - Standard Rate"

func emp(payroll, r string) record.Record {
	return record.Record{record.KeyField: record.String(payroll), rate: record.MustDecimal(r)}
}

type call struct {
	list List
	keys []string
}

// fakeWriter records every submitted chunk. failOn selects a call (1-based)
// that fails; afterCall runs after each call.
type fakeWriter struct {
	mu        sync.Mutex
	calls     []call
	failOn    int
	afterCall func(n int)
	ctxErrs   []error
}

func (w *fakeWriter) record(ctx context.Context, list List, keys []string) error {
	w.mu.Lock()
	w.calls = append(w.calls, call{list, keys})
	w.ctxErrs = append(w.ctxErrs, ctx.Err())
	n := len(w.calls)
	w.mu.Unlock()
	if w.afterCall != nil {
		w.afterCall(n)
	}
	if n == w.failOn {
		return errors.New("api down")
	}
	return nil
}

func (w *fakeWriter) UpdateRecords(ctx context.Context, updates []diff.Update) error {
	keys := make([]string, len(updates))
	for i, u := range updates {
		keys[i] = u.Fields.Key()
	}
	return w.record(ctx, ListUpdate, keys)
}

func (w *fakeWriter) CreateRecords(ctx context.Context, creates []diff.Create) error {
	keys := make([]string, len(creates))
	for i, c := range creates {
		keys[i] = c.Fields.Key()
	}
	return w.record(ctx, ListCreate, keys)
}

type fakeSnapshots struct {
	puts map[string][]record.Record
	err  error
}

func (s *fakeSnapshots) Put(_ context.Context, key string, records []record.Record) error {
	if s.err != nil {
		return s.err
	}
	if s.puts == nil {
		s.puts = map[string][]record.Record{}
	}
	s.puts[key] = records
	return nil
}

func updates(n int, prefix string) []diff.Update {
	out := make([]diff.Update, n)
	for i := range out {
		out[i] = diff.Update{ID: fmt.Sprintf("rec%d", i), Fields: emp(fmt.Sprintf("%s%d", prefix, i), "2")}
	}
	return out
}

func creates(n int, prefix string) []diff.Create {
	out := make([]diff.Create, n)
	for i := range out {
		out[i] = diff.Create{Fields: emp(fmt.Sprintf("%s%d", prefix, i), "2")}
	}
	return out
}

func candidatesOf(cs diff.ChangeSet) []record.Record {
	var out []record.Record
	for _, u := range cs.ToUpdate {
		out = append(out, u.Fields)
	}
	for _, c := range cs.ToCreate {
		out = append(out, c.Fields)
	}
	return out
}

func TestCommit_UpdatesBeforeCreatesInBoundedChunks(t *testing.T) {
	w := &fakeWriter{}
	snaps := &fakeSnapshots{}
	cs := diff.ChangeSet{ToUpdate: updates(12, "1"), ToCreate: creates(21, "2")}

	res, err := New(w, snaps, testutil.NewSequenceKeys("")).Commit(context.Background(), cs, candidatesOf(cs), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.UpdatedChunks)
	assert.Equal(t, 3, res.CreatedChunks)
	assert.Equal(t, "employees/00000001", res.SnapshotKey)

	var lists []List
	for _, c := range w.calls {
		lists = append(lists, c.list)
		assert.LessOrEqual(t, len(c.keys), 10)
	}
	assert.Equal(t, []List{ListUpdate, ListUpdate, ListCreate, ListCreate, ListCreate}, lists)
	assert.Len(t, snaps.puts[res.SnapshotKey], 33)
}

func TestCommit_EmptyChangeSetStillWritesSnapshot(t *testing.T) {
	w := &fakeWriter{}
	snaps := &fakeSnapshots{}
	unchanged := []record.Record{emp("1", "1")}

	res, err := New(w, snaps, testutil.NewSequenceKeys("")).Commit(context.Background(), diff.ChangeSet{}, unchanged, unchanged)
	require.NoError(t, err)
	assert.Empty(t, w.calls)
	assert.Equal(t, unchanged, snaps.puts[res.SnapshotKey])
}

func TestCommit_PartialFailureStopsAndKeepsPreviousVersion(t *testing.T) {
	w := &fakeWriter{failOn: 2}
	snaps := &fakeSnapshots{}

	ups := updates(15, "u")
	var previous []record.Record
	for _, u := range ups {
		previous = append(previous, emp(u.Fields.Key(), "1"))
	}
	cs := diff.ChangeSet{ToUpdate: ups, ToCreate: creates(3, "c")}

	res, err := New(w, snaps, testutil.NewSequenceKeys("")).Commit(context.Background(), cs, candidatesOf(cs), previous)
	require.Error(t, err)

	var ce *ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ListUpdate, ce.List)
	assert.Equal(t, 1, ce.Chunk)
	assert.Equal(t, 10, ce.Start)
	assert.Equal(t, 15, ce.End)
	assert.Len(t, w.calls, 2, "creates must not start after a failure")
	assert.Equal(t, 1, res.UpdatedChunks)
	assert.Zero(t, res.CreatedChunks)

	body := snaps.puts[res.SnapshotKey]
	require.NotEmpty(t, res.SnapshotKey)
	require.Len(t, body, 15)
	byKey := diff.ByKey(body)
	// First chunk applied: new value.
	assert.True(t, record.EqualValues(record.MustDecimal("2"), byKey["u0"][rate]))
	assert.True(t, record.EqualValues(record.MustDecimal("2"), byKey["u9"][rate]))
	// Failed chunk: previous value.
	assert.True(t, record.EqualValues(record.MustDecimal("1"), byKey["u10"][rate]))
	assert.True(t, record.EqualValues(record.MustDecimal("1"), byKey["u14"][rate]))
	// Creates never ran and have no previous version.
	assert.NotContains(t, byKey, "c0")
}

func TestCommit_FailedCreateChunkKeepsPreviousVersion(t *testing.T) {
	snaps := &fakeSnapshots{}
	cs := diff.ChangeSet{ToCreate: creates(15, "c")}
	// c12 was seen before but is missing from the index.
	previous := []record.Record{emp("c12", "1")}
	w := &fakeWriter{failOn: 2}

	res, err := New(w, snaps, testutil.NewSequenceKeys("")).Commit(context.Background(), cs, candidatesOf(cs), previous)
	require.Error(t, err)
	var ce *ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ListCreate, ce.List)
	assert.Equal(t, 1, res.CreatedChunks)

	body := snaps.puts[res.SnapshotKey]
	require.Len(t, body, 11)
	byKey := diff.ByKey(body)
	assert.True(t, record.EqualValues(record.MustDecimal("2"), byKey["c0"][rate]))
	assert.True(t, record.EqualValues(record.MustDecimal("2"), byKey["c9"][rate]))
	assert.True(t, record.EqualValues(record.MustDecimal("1"), byKey["c12"][rate]))
	assert.NotContains(t, byKey, "c10")
	assert.NotContains(t, byKey, "c14")
}

func TestCommit_InterruptedCreateChunksLeftOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &fakeWriter{afterCall: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	snaps := &fakeSnapshots{}
	cs := diff.ChangeSet{ToCreate: creates(25, "c")}

	res, err := New(w, snaps, testutil.NewSequenceKeys("")).Commit(ctx, cs, candidatesOf(cs), nil)
	require.ErrorIs(t, err, ErrCommitInterrupted)
	assert.Equal(t, 1, res.CreatedChunks)

	body := snaps.puts[res.SnapshotKey]
	require.Len(t, body, 10)
	byKey := diff.ByKey(body)
	assert.Contains(t, byKey, "c9")
	assert.NotContains(t, byKey, "c10")
	assert.NotContains(t, byKey, "c24")
}

func TestCommit_FailedConservativeCreateIsRetriedNextRun(t *testing.T) {
	// 100 is in the index and changed; 200 is in the index but has no
	// baseline, so it is created. The update chunk fails.
	previous := []record.Record{emp("100", "1")}
	cs := diff.ChangeSet{
		ToUpdate: []diff.Update{{ID: "rec100", Fields: emp("100", "2")}},
		ToCreate: []diff.Create{{Fields: emp("200", "9")}},
	}
	snaps := &fakeSnapshots{}
	w := &fakeWriter{failOn: 1}

	res, err := New(w, snaps, testutil.NewSequenceKeys("")).Commit(context.Background(), cs, candidatesOf(cs), previous)
	require.Error(t, err)
	assert.Len(t, w.calls, 1)

	body := snaps.puts[res.SnapshotKey]
	require.Len(t, body, 1)
	assert.Equal(t, "100", body[0].Key())
	assert.True(t, record.EqualValues(record.MustDecimal("1"), body[0][rate]))

	// Both keys are still pending when the next run diffs against this snapshot.
	index := map[string]string{"100": "rec100", "200": "rec200"}
	next := diff.Compute([]record.Record{emp("100", "2"), emp("200", "9")}, diff.ByKey(body), index)
	require.Len(t, next.ToUpdate, 1)
	assert.Equal(t, "100", next.ToUpdate[0].Fields.Key())
	require.Len(t, next.ToCreate, 1)
	assert.Equal(t, "200", next.ToCreate[0].Fields.Key())
}

func TestCommit_CancelledBeforeChunkStopsFurtherChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &fakeWriter{afterCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	snaps := &fakeSnapshots{}
	cs := diff.ChangeSet{ToUpdate: updates(25, "u")}

	res, err := New(w, snaps, testutil.NewSequenceKeys("")).Commit(ctx, cs, candidatesOf(cs), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, w.calls, 2)
	assert.Equal(t, 2, res.UpdatedChunks)
	assert.NotEmpty(t, res.SnapshotKey, "snapshot is written after an interruption")
}

func TestCommit_InFlightChunkIgnoresRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var seen error
	cs := diff.ChangeSet{ToCreate: creates(1, "c")}

	wrapped := writerFunc{create: func(cctx context.Context, _ []diff.Create) error {
		cancel()
		seen = cctx.Err()
		_, hasDeadline := cctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}}
	res, err := New(wrapped, &fakeSnapshots{}, testutil.NewSequenceKeys(""), WithRequestTimeout(time.Minute)).
		Commit(ctx, cs, candidatesOf(cs), nil)
	require.NoError(t, err)
	assert.NoError(t, seen)
	assert.Equal(t, 1, res.CreatedChunks)
}

type writerFunc struct {
	update func(context.Context, []diff.Update) error
	create func(context.Context, []diff.Create) error
}

func (w writerFunc) UpdateRecords(ctx context.Context, u []diff.Update) error {
	if w.update == nil {
		return nil
	}
	return w.update(ctx, u)
}

func (w writerFunc) CreateRecords(ctx context.Context, c []diff.Create) error {
	if w.create == nil {
		return nil
	}
	return w.create(ctx, c)
}

func TestCommit_SnapshotFailure(t *testing.T) {
	snaps := &fakeSnapshots{err: errors.New("bucket gone")}
	cs := diff.ChangeSet{ToCreate: creates(1, "c")}

	res, err := New(&fakeWriter{}, snaps, testutil.NewSequenceKeys("")).Commit(context.Background(), cs, candidatesOf(cs), nil)
	require.Error(t, err)
	assert.True(t, IsSnapshotError(err))
	assert.False(t, IsChunkError(err))
	assert.Empty(t, res.SnapshotKey)
	assert.Equal(t, 1, res.CreatedChunks)
}

func TestCommit_CarriesForwardRecordsNoLongerExported(t *testing.T) {
	snaps := &fakeSnapshots{}
	previous := []record.Record{emp("1", "1"), emp("2", "1")}
	current := []record.Record{emp("1", "1")}

	res, err := New(&fakeWriter{}, snaps, testutil.NewSequenceKeys("")).Commit(context.Background(), diff.ChangeSet{}, current, previous)
	require.NoError(t, err)
	body := snaps.puts[res.SnapshotKey]
	require.Len(t, body, 2)
	assert.Equal(t, "1", body[0].Key())
	assert.Equal(t, "2", body[1].Key())
}

func TestWithBatchSize_Clamped(t *testing.T) {
	w := &fakeWriter{}
	cs := diff.ChangeSet{ToCreate: creates(25, "c")}
	_, err := New(w, &fakeSnapshots{}, testutil.NewSequenceKeys(""), WithBatchSize(50)).Commit(context.Background(), cs, nil, nil)
	require.NoError(t, err)
	for _, c := range w.calls {
		assert.LessOrEqual(t, len(c.keys), 10)
	}

	w = &fakeWriter{}
	_, err = New(w, &fakeSnapshots{}, testutil.NewSequenceKeys(""), WithBatchSize(5)).Commit(context.Background(), cs, nil, nil)
	require.NoError(t, err)
	assert.Len(t, w.calls, 5)
}
