package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rostersync/internal/engine"
)

func boolPtr(b bool) *bool { return &b }

func TestAssertExpect_Pass(t *testing.T) {
	r := &Result{
		Updates:     []Update{{ID: "recA", Payroll: "1"}},
		Creates:     []string{"2"},
		Unchanged:   []string{},
		Skipped:     1,
		SnapshotKey: "employees/00000001",
	}
	exp := Expect{
		ToUpdate:  []string{"1"},
		ToCreate:  []string{"2"},
		Unchanged: []string{},
		Skipped:   1,
		Snapshot:  boolPtr(true),
	}
	assert.Empty(t, assertExpect(exp, r))
}

func TestAssertExpect_NilListsAreUnchecked(t *testing.T) {
	r := &Result{Creates: []string{"9"}}
	assert.Empty(t, assertExpect(Expect{}, r))
}

func TestAssertExpect_EmptyMatchesNil(t *testing.T) {
	r := &Result{}
	assert.Empty(t, assertExpect(Expect{ToCreate: []string{}}, r))
}

func TestAssertExpect_Mismatches(t *testing.T) {
	r := &Result{
		Creates: []string{"2", "1"},
		Err:     &engine.RunError{Kind: engine.KindCommitFailure, Stage: engine.StageCommit, Message: "chunk 0", Err: errors.New("422")},
	}
	exp := Expect{
		ToCreate: []string{"1", "2"},
		Snapshot: boolPtr(true),
	}

	errs := assertExpect(exp, r)
	require.Len(t, errs, 3)

	var ae *AssertionError
	require.ErrorAs(t, errs[0], &ae)
	assert.Equal(t, "error", ae.Field)
	assert.Equal(t, "success", ae.Expected)
	assert.Contains(t, ae.Actual, "CommitFailure")

	require.ErrorAs(t, errs[1], &ae)
	assert.Equal(t, "to_create", ae.Field)
	assert.Equal(t, "[1, 2]", ae.Expected)
	assert.Equal(t, "[2, 1]", ae.Actual)

	require.ErrorAs(t, errs[2], &ae)
	assert.Equal(t, "snapshot", ae.Field)
}

func TestAssertExpect_SkippedIgnoredOnFailure(t *testing.T) {
	r := &Result{Err: &engine.RunError{Kind: engine.KindExportUnavailable, Stage: engine.StageExport, Message: "no export"}}
	assert.Empty(t, assertExpect(Expect{Skipped: 3, Error: engine.KindExportUnavailable}, r))
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{Field: "skipped", Expected: "1", Actual: "0"}
	assert.Equal(t, "Assertion failed: skipped\n  Expected: 1\n  Actual: 0", err.Error())
}
