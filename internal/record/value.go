package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// TimeLayout is the ISO-8601 rendering used for Time values.
// It matches the millisecond UTC form expected by the system of record.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Value is a sealed interface over the field types a record may hold.
// Only Null, String, Decimal, Bool, Time and RefList implement it.
type Value interface {
	value() // Sealed
}

// Null is an absent or blank field.
type Null struct{}

func (Null) value() {}

// String is a free-text field.
type String string

func (String) value() {}

// Bool is a flag field.
type Bool bool

func (Bool) value() {}

// Decimal is an arbitrary-precision number.
// The zero Decimal is not valid; use NewDecimal or MustDecimal.
type Decimal struct {
	d *apd.Decimal
}

func (Decimal) value() {}

// NewDecimal parses s as a finite decimal number.
func NewDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Decimal{}, fmt.Errorf("parse decimal %q: not a finite number", s)
	}
	return Decimal{d: d}, nil
}

// MustDecimal is NewDecimal that panics on error. Intended for tests and constants.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders the decimal in plain (non-exponent) notation.
func (d Decimal) String() string {
	if d.d == nil {
		return "0"
	}
	return d.d.Text('f')
}

// Cmp compares two decimals numerically.
func (d Decimal) Cmp(o Decimal) int {
	a, b := d.d, o.d
	if a == nil {
		a = apd.New(0, 0)
	}
	if b == nil {
		b = apd.New(0, 0)
	}
	return a.Cmp(b)
}

// Time is a UTC instant truncated to milliseconds.
type Time struct {
	t time.Time
}

func (Time) value() {}

// NewTime converts t to a Time value.
func NewTime(t time.Time) Time {
	return Time{t: t.UTC().Truncate(time.Millisecond)}
}

// ParseTime parses a string rendered with TimeLayout.
func ParseTime(s string) (Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return Time{}, err
	}
	return NewTime(t), nil
}

// Time returns the underlying instant.
func (t Time) Time() time.Time {
	return t.t
}

// String renders the instant with TimeLayout.
func (t Time) String() string {
	return t.t.Format(TimeLayout)
}

// RefList is a list of foreign record ids. The export only ever produces
// zero or one element.
type RefList []string

func (RefList) value() {}

// Refs builds a RefList, dropping empty ids.
func Refs(ids ...string) RefList {
	out := make(RefList, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// EqualValues reports whether two values are structurally equal.
// A nil Value is treated as Null. Decimals compare numerically, so 12 and
// 12.0 are equal. A String matches a Time holding the same rendering, since
// snapshots do not carry field kinds.
func EqualValues(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		switch bv := b.(type) {
		case String:
			return av == bv
		case Time:
			return string(av) == bv.String()
		}
		return false
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Decimal:
		bv, ok := b.(Decimal)
		return ok && av.Cmp(bv) == 0
	case Time:
		switch bv := b.(type) {
		case Time:
			return av.t.Equal(bv.t)
		case String:
			return av.String() == string(bv)
		}
		return false
	case RefList:
		bv, ok := b.(RefList)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Describe renders a value for logs and diagnostics.
func Describe(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return fmt.Sprintf("%q", string(val))
	case Bool:
		return fmt.Sprintf("%t", bool(val))
	case Decimal:
		return val.String()
	case Time:
		return val.String()
	case RefList:
		return fmt.Sprintf("%v", []string(val))
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

// MustTime is ParseTime that panics on error. Intended for tests and constants.
func MustTime(s string) Time {
	t, err := ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}
