package record

import (
	"slices"
	"unicode/utf16"
)

// KeyField is the field holding the payroll number, the stable business key.
const KeyField = "LiQ - Payroll Number"

// Record is one canonical employee: a mapping from field name to typed value.
// Use SortedKeys() for deterministic iteration.
type Record map[string]Value

// Key returns the payroll number, or "" if the record has none.
func (r Record) Key() string {
	if s, ok := r[KeyField].(String); ok {
		return string(s)
	}
	return ""
}

// Get returns the value of field, Null if absent.
func (r Record) Get(field string) Value {
	if v, ok := r[field]; ok && v != nil {
		return v
	}
	return Null{}
}

// Clone returns a shallow copy. Values are immutable so sharing them is safe;
// RefLists are copied because they are slices.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if refs, ok := v.(RefList); ok {
			v = append(RefList(nil), refs...)
		}
		out[k] = v
	}
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Equal reports whether two records are structurally equal field by field.
// A field missing on one side equals an explicit Null on the other.
func Equal(a, b Record) bool {
	for k, av := range a {
		if !EqualValues(av, b.Get(k)) {
			return false
		}
	}
	for k, bv := range b {
		if _, ok := a[k]; !ok && !EqualValues(Null{}, bv) {
			return false
		}
	}
	return true
}

// Diff returns the sorted names of fields whose values differ.
func Diff(a, b Record) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var fields []string
	for _, r := range []Record{a, b} {
		for k := range r {
			if seen[k] {
				continue
			}
			seen[k] = true
			if !EqualValues(a.Get(k), b.Get(k)) {
				fields = append(fields, k)
			}
		}
	}
	slices.SortFunc(fields, compareUTF16)
	return fields
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}
