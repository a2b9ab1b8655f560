package diff

import (
	"github.com/roach88/rostersync/internal/record"
)

// Canonical renders the change set as canonical JSON. Identical change sets
// render byte-identically.
func (c *ChangeSet) Canonical() ([]byte, error) {
	return record.MarshalCanonical(c.canonicalMap())
}

// MarshalJSON implements json.Marshaler.
func (c ChangeSet) MarshalJSON() ([]byte, error) {
	return c.Canonical()
}

func (c *ChangeSet) canonicalMap() map[string]any {
	updates := make([]any, len(c.ToUpdate))
	for i, u := range c.ToUpdate {
		updates[i] = map[string]any{"id": u.ID, "fields": u.Fields}
	}
	creates := make([]any, len(c.ToCreate))
	for i, cr := range c.ToCreate {
		creates[i] = map[string]any{"fields": cr.Fields}
	}
	unchanged := make([]any, len(c.Unchanged))
	for i, k := range c.Unchanged {
		unchanged[i] = k
	}
	return map[string]any{
		"to_update": updates,
		"to_create": creates,
		"unchanged": unchanged,
		"skipped":   c.Skipped,
	}
}
