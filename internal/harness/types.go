package harness

import "github.com/roach88/rostersync/internal/engine"

// Row is one export row keyed by field name or alias.
type Row map[string]string

// AirtableRow is an existing employee in the system of record.
type AirtableRow struct {
	ID      string `yaml:"id"`
	Payroll string `yaml:"payroll"`
}

// ExportFile is one workbook dropped into the export directory. The
// engine reads files in name order.
type ExportFile struct {
	Name string `yaml:"name"`
	Rows []Row  `yaml:"rows"`
}

// Failure injects an HTTP failure into the next request with Method.
type Failure struct {
	Method string `yaml:"method"`
	Status int    `yaml:"status"`
}

// Expect is the expected outcome. A nil list is not checked.
type Expect struct {
	ToUpdate  []string `yaml:"to_update,omitempty"`
	ToCreate  []string `yaml:"to_create,omitempty"`
	Unchanged []string `yaml:"unchanged,omitempty"`
	Skipped   int      `yaml:"skipped"`

	// Error is the expected engine error kind; empty means success.
	Error engine.ErrorKind `yaml:"error,omitempty"`

	// Snapshot reports whether a new snapshot must be stored.
	Snapshot *bool `yaml:"snapshot,omitempty"`
}

// Write is one non-GET request the fake Airtable served.
type Write struct {
	Method  string
	Records int
}

// Result is the outcome of running a scenario.
type Result struct {
	Pass   bool
	Errors []string

	// Updates lists the update list in commit order.
	Updates   []Update
	Creates   []string
	Unchanged []string
	Skipped   int

	Err         error
	Writes      []Write
	SnapshotKey string
	Snapshot    int
}

// Update is one record of the update list.
type Update struct {
	ID      string
	Payroll string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError records a failed expectation.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
