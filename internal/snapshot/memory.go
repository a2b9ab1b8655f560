package snapshot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/rostersync/internal/record"
)

// MemoryStore keeps snapshots in process. Bodies are stored encoded so a
// round trip behaves like a real backend.
type MemoryStore struct {
	mu      sync.Mutex
	prefix  string
	now     func() time.Time
	objects map[string]memoryObject
	puts    int
}

type memoryObject struct {
	body     []byte
	modified time.Time
}

// NewMemoryStore creates an empty store. A nil now uses time.Now.
func NewMemoryStore(prefix string, now func() time.Time) *MemoryStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{prefix: prefix, now: now, objects: map[string]memoryObject{}}
}

// Seed stores records under key with the given modification time.
func (m *MemoryStore) Seed(key string, modified time.Time, records []record.Record) error {
	body, err := encodeBody(key, records)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: body, modified: modified}
	return nil
}

// Puts returns how many times Put succeeded.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Body returns the raw stored body of key.
func (m *MemoryStore) Body(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj.body, ok
}

func (m *MemoryStore) Latest(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	var infos []ObjectInfo
	for k, obj := range m.objects {
		if strings.HasPrefix(k, m.prefix) {
			infos = append(infos, ObjectInfo{Key: k, LastModified: obj.modified})
		}
	}
	m.mu.Unlock()

	latest, ok := pickLatest(infos)
	if !ok {
		return nil, ErrNotFound
	}
	return m.Get(ctx, latest.Key)
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Snapshot, error) {
	m.mu.Lock()
	obj, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return decodeBody(key, obj.modified, obj.body)
}

func (m *MemoryStore) Put(ctx context.Context, key string, records []record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := encodeBody(key, records)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; exists {
		return fmt.Errorf("snapshot %s already exists", key)
	}
	m.objects[key] = memoryObject{body: body, modified: m.now()}
	m.puts++
	return nil
}

func (m *MemoryStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
