// Package normalize turns positional export rows into canonical records.
//
// The column layout is declarative (Schema). Each cell is coerced by its
// column Kind; a row whose payroll number does not match
// ^([0-9]+-)*([0-9]+)$ is rejected with ErrInvalidRow and the caller skips it.
// The same row and store directory always produce an equal record.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/rostersync/internal/record"
)

// ErrInvalidRow marks a row that cannot produce a record.
var ErrInvalidRow = errors.New("invalid row")

var payrollPattern = regexp.MustCompile(`^([0-9]+-)*([0-9]+)$`)

// ValidPayroll reports whether s is a well-formed payroll number.
func ValidPayroll(s string) bool {
	return payrollPattern.MatchString(s)
}

// DefaultTimeOfDay is the clock time dates are pinned to.
const DefaultTimeOfDay = 13 * time.Hour

// DefaultDateLayouts are the date renderings accepted from the export.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"1-2-06",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006-01-02T15:04:05Z07:00",
}

// Normalizer converts raw rows into records.
type Normalizer struct {
	schema    Schema
	stores    map[string]string
	reverse   map[string]string
	location  *time.Location
	timeOfDay time.Duration
	layouts   []string
	logger    *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSchema replaces EmployeeSchema.
func WithSchema(s Schema) Option {
	return func(n *Normalizer) {
		n.schema = s
	}
}

// WithLocation sets the zone dates are interpreted in. Default: UTC.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

// WithTimeOfDay sets the reference time of day for dates.
func WithTimeOfDay(d time.Duration) Option {
	return func(n *Normalizer) {
		n.timeOfDay = d
	}
}

// WithDateLayouts replaces DefaultDateLayouts.
func WithDateLayouts(layouts ...string) Option {
	return func(n *Normalizer) {
		n.layouts = layouts
	}
}

// WithLogger sets the logger used for per-row diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// New creates a Normalizer over a store directory (store code -> record id).
// The directory is copied.
func New(stores map[string]string, opts ...Option) *Normalizer {
	n := &Normalizer{
		schema:    EmployeeSchema,
		stores:    make(map[string]string, len(stores)),
		reverse:   make(map[string]string, len(stores)),
		location:  time.UTC,
		timeOfDay: DefaultTimeOfDay,
		layouts:   DefaultDateLayouts,
		logger:    slog.Default(),
	}
	for code, id := range stores {
		n.stores[code] = id
		n.reverse[id] = code
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one row. Missing trailing cells are blank.
func (n *Normalizer) Normalize(row []string) (record.Record, error) {
	payroll := clean(cell(row, n.keyIndex()))
	if !ValidPayroll(payroll) {
		return nil, fmt.Errorf("%w: payroll number %q", ErrInvalidRow, payroll)
	}

	rec := make(record.Record, len(n.schema))
	for _, col := range n.schema {
		rec[col.Field] = n.coerce(col, clean(cell(row, col.Index)))
	}
	rec[record.KeyField] = record.String(payroll)
	return rec, nil
}

func (n *Normalizer) keyIndex() int {
	for _, col := range n.schema {
		if col.Field == record.KeyField {
			return col.Index
		}
	}
	return -1
}

func (n *Normalizer) coerce(col Column, s string) record.Value {
	switch col.Kind {
	case Text:
		if s == "" {
			return record.Null{}
		}
		return record.String(s)
	case Date:
		if s == "" {
			return record.Null{}
		}
		t, ok := n.parseDate(s)
		if !ok {
			n.logger.Debug("unparseable date", "field", col.Field, "value", s)
			return record.Null{}
		}
		return record.NewTime(t)
	case Number:
		if s == "" {
			return record.Null{}
		}
		d, err := record.NewDecimal(s)
		if err != nil {
			n.logger.Debug("non-numeric value", "field", col.Field, "value", s)
			return record.Null{}
		}
		return d
	case Flag:
		switch strings.ToLower(s) {
		case "", "false", "0":
			return record.Bool(false)
		default:
			return record.Bool(true)
		}
	case Category:
		return record.Refs(s)
	case Store:
		if s == "" {
			return record.RefList{}
		}
		id, ok := n.stores[s]
		if !ok {
			n.logger.Debug("unresolved store", "field", col.Field, "store_code", s)
			return record.RefList{}
		}
		return record.Refs(id)
	default:
		return record.Null{}
	}
}

// parseDate reads the calendar date in s and pins it to the reference time
// of day in the configured location. Bare numbers are Excel date serials.
func (n *Normalizer) parseDate(s string) (time.Time, bool) {
	var day time.Time
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, false
		}
		day = t
	} else {
		parsed := false
		for _, layout := range n.layouts {
			if t, err := time.Parse(layout, s); err == nil {
				day, parsed = t, true
				break
			}
		}
		if !parsed {
			return time.Time{}, false
		}
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, n.location).Add(n.timeOfDay), true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
