// Package diff reconciles candidate records against the two baselines.
//
// A candidate is compared with the previous snapshot and with the
// system-of-record index. A key missing from either baseline is a create.
// A key present in both is an update when the record differs structurally
// from the snapshot copy, and unchanged otherwise. Live system-of-record
// field values are never consulted: the export is authoritative.
package diff

import (
	"github.com/roach88/rostersync/internal/record"
)

// Update replaces the fields of an existing system-of-record record.
type Update struct {
	ID     string
	Fields record.Record
}

// Create adds a new system-of-record record.
type Create struct {
	Fields record.Record
}

// ChangeSet partitions the candidate keys.
// ToUpdate, ToCreate and Unchanged are disjoint and follow candidate order.
type ChangeSet struct {
	ToUpdate  []Update
	ToCreate  []Create
	Unchanged []string

	// Skipped counts rows rejected by the normalizer.
	Skipped int
}

// Empty reports whether nothing needs to be written.
func (c *ChangeSet) Empty() bool {
	return len(c.ToUpdate) == 0 && len(c.ToCreate) == 0
}

// Merge flattens per-file batches into one candidate list.
// A key seen again in a later batch replaces the earlier record but keeps
// the position of its first occurrence.
func Merge(batches ...[]record.Record) []record.Record {
	var out []record.Record
	pos := make(map[string]int)
	for _, batch := range batches {
		for _, rec := range batch {
			key := rec.Key()
			if i, ok := pos[key]; ok {
				out[i] = rec
				continue
			}
			pos[key] = len(out)
			out = append(out, rec)
		}
	}
	return out
}

// ByKey indexes records by payroll number. The first occurrence wins.
func ByKey(records []record.Record) map[string]record.Record {
	m := make(map[string]record.Record, len(records))
	for _, r := range records {
		if _, ok := m[r.Key()]; !ok {
			m[r.Key()] = r
		}
	}
	return m
}

// Compute partitions current against the previous snapshot records and the
// system-of-record index (payroll number -> record id).
func Compute(current []record.Record, previous map[string]record.Record, index map[string]string) ChangeSet {
	cs := ChangeSet{
		ToUpdate:  []Update{},
		ToCreate:  []Create{},
		Unchanged: []string{},
	}
	for _, rec := range current {
		key := rec.Key()
		prev, inSnapshot := previous[key]
		id, inIndex := index[key]
		switch {
		case !inSnapshot || !inIndex:
			cs.ToCreate = append(cs.ToCreate, Create{Fields: rec.Clone()})
		case !record.Equal(rec, prev):
			cs.ToUpdate = append(cs.ToUpdate, Update{ID: id, Fields: rec.Clone()})
		default:
			cs.Unchanged = append(cs.Unchanged, key)
		}
	}
	return cs
}
