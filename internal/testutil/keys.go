package testutil

import "fmt"

// SequenceKeys generates predictable snapshot keys.
//
// Keys are "<prefix>00000001", "<prefix>00000002", ... so that golden output
// and assertions do not depend on UUIDv7 timestamps.
//
// Not safe for concurrent use; runs are serial.
type SequenceKeys struct {
	prefix string
	n      int
}

// NewSequenceKeys creates a generator. An empty prefix uses "employees/".
func NewSequenceKeys(prefix string) *SequenceKeys {
	if prefix == "" {
		prefix = "employees/"
	}
	return &SequenceKeys{prefix: prefix}
}

// Generate returns the next key.
func (g *SequenceKeys) Generate() string {
	g.n++
	return fmt.Sprintf("%s%08d", g.prefix, g.n)
}
