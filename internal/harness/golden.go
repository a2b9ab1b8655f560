package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rostersync/internal/engine"
	"github.com/roach88/rostersync/internal/record"
)

// Summary renders a result as canonical JSON. It holds payroll numbers and
// record ids only, so golden files stay readable.
func (r *Result) Summary(name string) ([]byte, error) {
	updates := make([]any, len(r.Updates))
	for i, u := range r.Updates {
		updates[i] = map[string]any{"id": u.ID, "payroll": u.Payroll}
	}
	creates := make([]any, len(r.Creates))
	for i, c := range r.Creates {
		creates[i] = c
	}
	unchanged := make([]any, len(r.Unchanged))
	for i, k := range r.Unchanged {
		unchanged[i] = k
	}
	writes := make([]any, len(r.Writes))
	for i, w := range r.Writes {
		writes[i] = map[string]any{"method": w.Method, "records": w.Records}
	}

	m := map[string]any{
		"scenario":  name,
		"to_update": updates,
		"to_create": creates,
		"unchanged": unchanged,
		"skipped":   r.Skipped,
		"writes":    writes,
		"snapshot":  nil,
	}
	if r.SnapshotKey != "" {
		m["snapshot"] = map[string]any{"key": r.SnapshotKey, "records": r.Snapshot}
	}
	if r.Err != nil {
		env := engine.NewEnvelope(engine.OpSync, r.Err)
		m["error"] = map[string]any{"kind": string(env.Body.Error), "stage": string(env.Body.Stage)}
	}
	return record.MarshalCanonical(m)
}

// RunWithGolden runs a scenario in a temporary directory, fails the test on
// unmet expectations and compares the summary against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), scenario, t.TempDir())
	if err != nil {
		t.Fatalf("run %s: %v", scenario.Name, err)
	}
	for _, e := range result.Errors {
		t.Error(e)
	}

	summary, err := result.Summary(scenario.Name)
	if err != nil {
		t.Fatalf("summary %s: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, summary)
	return result
}
