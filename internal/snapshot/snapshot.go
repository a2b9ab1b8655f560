package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/rostersync/internal/record"
)

// DefaultPrefix is the key prefix snapshots are written under.
const DefaultPrefix = "employees/"

// ContentType is the media type of a snapshot body.
const ContentType = "application/json; charset=utf-8"

// ErrNotFound is returned when a snapshot key does not exist or the store
// holds no snapshot at all.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one stored record set.
type Snapshot struct {
	Key          string
	LastModified time.Time
	Records      []record.Record
}

// Store is a versioned snapshot store.
type Store interface {
	// Latest returns the most recently modified snapshot under the store's
	// prefix, or ErrNotFound.
	Latest(ctx context.Context) (*Snapshot, error)

	// Get returns the snapshot stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Snapshot, error)

	// Put writes records under key.
	Put(ctx context.Context, key string, records []record.Record) error

	// ListKeys returns every key starting with prefix, sorted.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// LatestOrEmpty returns the latest snapshot, or an empty one when the store
// holds none. Other errors are returned unchanged.
func LatestOrEmpty(ctx context.Context, s Store) (*Snapshot, error) {
	snap, err := s.Latest(ctx)
	if errors.Is(err, ErrNotFound) {
		return &Snapshot{Records: []record.Record{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// pickLatest returns the object with the newest LastModified.
func pickLatest(objects []ObjectInfo) (ObjectInfo, bool) {
	if len(objects) == 0 {
		return ObjectInfo{}, false
	}
	sorted := append([]ObjectInfo(nil), objects...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Key > b.Key
	})
	return sorted[0], true
}

func decodeBody(key string, modified time.Time, body []byte) (*Snapshot, error) {
	records, err := record.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return &Snapshot{Key: key, LastModified: modified, Records: records}, nil
}

func encodeBody(key string, records []record.Record) ([]byte, error) {
	body, err := record.EncodeRecords(records)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return body, nil
}
