package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rostersync/internal/engine"
)

// AssertionError describes one unmet expectation.
type AssertionError struct {
	Field    string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Field, e.Expected, e.Actual)
}

// checkExpect compares the run against exp and records every mismatch.
func checkExpect(exp Expect, r *Result) {
	for _, err := range assertExpect(exp, r) {
		r.AddError(err.Error())
	}
}

func assertExpect(exp Expect, r *Result) []error {
	var errs []error

	if kind := engine.KindOf(r.Err); kind != exp.Error {
		actual := "success"
		if r.Err != nil {
			actual = r.Err.Error()
		}
		want := string(exp.Error)
		if want == "" {
			want = "success"
		}
		errs = append(errs, &AssertionError{Field: "error", Expected: want, Actual: actual})
	}

	updated := make([]string, len(r.Updates))
	for i, u := range r.Updates {
		updated[i] = u.Payroll
	}
	errs = appendListError(errs, "to_update", exp.ToUpdate, updated)
	errs = appendListError(errs, "to_create", exp.ToCreate, r.Creates)
	errs = appendListError(errs, "unchanged", exp.Unchanged, r.Unchanged)

	if r.Err == nil && exp.Skipped != r.Skipped {
		errs = append(errs, &AssertionError{
			Field:    "skipped",
			Expected: fmt.Sprint(exp.Skipped),
			Actual:   fmt.Sprint(r.Skipped),
		})
	}

	if exp.Snapshot != nil && *exp.Snapshot != (r.SnapshotKey != "") {
		errs = append(errs, &AssertionError{
			Field:    "snapshot",
			Expected: fmt.Sprintf("stored=%t", *exp.Snapshot),
			Actual:   fmt.Sprintf("stored=%t", r.SnapshotKey != ""),
		})
	}
	return errs
}

// appendListError compares payroll lists in order. A nil expectation is
// not checked.
func appendListError(errs []error, field string, want, got []string) []error {
	if want == nil {
		return errs
	}
	if slices.Equal(want, got) || (len(want) == 0 && len(got) == 0) {
		return errs
	}
	return append(errs, &AssertionError{
		Field:    field,
		Expected: "[" + strings.Join(want, ", ") + "]",
		Actual:   "[" + strings.Join(got, ", ") + "]",
	})
}
