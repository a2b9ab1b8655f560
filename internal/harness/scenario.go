package harness

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/normalize"
	"github.com/roach88/rostersync/internal/record"
)

// Scenario is one reconciliation run and its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Stores maps store codes to Airtable record ids.
	Stores map[string]string `yaml:"stores"`

	// Airtable seeds the employee table.
	Airtable []AirtableRow `yaml:"airtable,omitempty"`

	// Baseline rows are normalized and stored as the previous snapshot.
	// No baseline means a first run.
	Baseline []Row `yaml:"baseline,omitempty"`

	// Exports are written to the export directory before the run.
	Exports []ExportFile `yaml:"exports"`

	// Fail queues injected Airtable failures.
	Fail []Failure `yaml:"fail,omitempty"`

	Expect Expect `yaml:"expect"`
}

// FieldAliases maps short row keys to employee field names.
var FieldAliases = map[string]string{
	"payroll":    record.KeyField,
	"first_name": normalize.FieldFirstName,
	"last_name":  normalize.FieldLastName,
	"birth_date": normalize.FieldDateOfBirth,
	"email":      normalize.FieldEmail,
	"hired":      normalize.FieldHiredDate,
	"position":   normalize.FieldPosition,
	"salaried":   normalize.FieldSalaried,
	"rate":       normalize.FieldStandardRate,
	"store":      normalize.FieldAllocatedStore,
	"clerk":      normalize.FieldClerkID,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	seen := map[string]string{}
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate scenario name %q (also in %s)", filepath.Base(p), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(p)
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Exports) == 0 {
		return fmt.Errorf("exports list is required and must be non-empty")
	}

	for i, row := range s.Baseline {
		if _, err := row.cells(); err != nil {
			return fmt.Errorf("baseline[%d]: %w", i, err)
		}
	}
	for i, f := range s.Exports {
		if f.Name == "" {
			return fmt.Errorf("exports[%d]: name is required", i)
		}
		if filepath.Base(f.Name) != f.Name {
			return fmt.Errorf("exports[%d]: name %q must be a bare file name", i, f.Name)
		}
		for j, row := range f.Rows {
			if _, err := row.cells(); err != nil {
				return fmt.Errorf("exports[%d].rows[%d]: %w", i, j, err)
			}
		}
	}
	for i, a := range s.Airtable {
		if a.ID == "" {
			return fmt.Errorf("airtable[%d]: id is required", i)
		}
	}
	methods := []string{http.MethodGet, http.MethodPatch, http.MethodPost}
	for i, f := range s.Fail {
		if !slices.Contains(methods, f.Method) {
			return fmt.Errorf("fail[%d]: method must be one of %v, got %q", i, methods, f.Method)
		}
		if f.Status < 400 || f.Status > 599 {
			return fmt.Errorf("fail[%d]: status %d is not an error status", i, f.Status)
		}
	}
	return nil
}

// cells lays the row out in export column order.
func (r Row) cells() (export.RawRow, error) {
	cols := make(map[string]int, len(normalize.EmployeeSchema))
	for _, c := range normalize.EmployeeSchema {
		cols[c.Field] = c.Index
	}

	row := make(export.RawRow, normalize.EmployeeSchema.Width())
	for key, v := range r {
		field := key
		if alias, ok := FieldAliases[key]; ok {
			field = alias
		}
		idx, ok := cols[field]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", key)
		}
		row[idx] = v
	}
	return row, nil
}
