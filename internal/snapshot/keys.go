package snapshot

import (
	"sync"

	"github.com/google/uuid"
)

// UUIDv7Keys generates time-sortable snapshot keys "<prefix><uuidv7>".
//
// Thread-safety: UUIDv7Keys is stateless and safe for concurrent use.
type UUIDv7Keys struct {
	Prefix string
}

// Generate creates a new key. An empty Prefix uses DefaultPrefix.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Keys) Generate() string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + uuid.Must(uuid.NewV7()).String()
}

// FixedKeys returns predetermined keys for testing.
//
// Thread-safety: FixedKeys is safe for concurrent use via internal mutex.
type FixedKeys struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

// NewFixedKeys creates a generator that returns keys in order.
func NewFixedKeys(keys ...string) *FixedKeys {
	return &FixedKeys{keys: keys}
}

// Generate returns the next predetermined key.
//
// Panics if all keys have been consumed.
func (g *FixedKeys) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.keys) {
		panic("FixedKeys: all keys exhausted")
	}
	key := g.keys[g.idx]
	g.idx++
	return key
}
