package commit

import (
	"errors"
	"fmt"
)

// ErrCommitInterrupted is returned when the run context ends between chunks.
var ErrCommitInterrupted = errors.New("commit interrupted")

// List names the change list a chunk belongs to.
type List string

const (
	ListUpdate List = "update"
	ListCreate List = "create"
)

// ChunkError reports the chunk that failed and stopped the commit.
// Chunks before it stay applied.
type ChunkError struct {
	List  List
	Chunk int
	// Start and End bound the records of the chunk within its list, End exclusive.
	Start int
	End   int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s chunk %d (records %d-%d): %v", e.List, e.Chunk, e.Start, e.End-1, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// SnapshotError reports that the new snapshot could not be persisted.
type SnapshotError struct {
	Key string
	Err error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("write snapshot %s: %v", e.Key, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// IsChunkError returns true if err carries a *ChunkError.
func IsChunkError(err error) bool {
	var ce *ChunkError
	return errors.As(err, &ce)
}

// IsSnapshotError returns true if err carries a *SnapshotError.
func IsSnapshotError(err error) bool {
	var se *SnapshotError
	return errors.As(err, &se)
}
