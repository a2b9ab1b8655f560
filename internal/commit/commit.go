// Package commit applies a change set to the system of record in bounded
// batches and persists the resulting snapshot.
//
// Updates are submitted before creates, one chunk at a time. The run
// context is checked before each chunk; once it is done no further chunk
// starts. A chunk that has started runs on a context detached from run
// cancellation and bounded by the request timeout, so it is never dropped
// half-sent. The first failing chunk stops the commit; nothing is rolled
// back.
//
// After the commit attempts the full candidate set is written as a new
// snapshot. Records whose chunk was not applied keep their previous
// snapshot version, or are left out when they have none, so the next run
// detects them again.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/rostersync/internal/diff"
	"github.com/roach88/rostersync/internal/record"
)

// Writer submits batches to the system of record.
type Writer interface {
	UpdateRecords(ctx context.Context, updates []diff.Update) error
	CreateRecords(ctx context.Context, creates []diff.Create) error
}

// SnapshotWriter persists a snapshot body under key.
type SnapshotWriter interface {
	Put(ctx context.Context, key string, records []record.Record) error
}

// KeyGenerator produces fresh snapshot keys.
type KeyGenerator interface {
	Generate() string
}

// DefaultRequestTimeout bounds one chunk submission or the snapshot write.
const DefaultRequestTimeout = 30 * time.Second

// Result summarizes a commit.
type Result struct {
	UpdatedChunks int
	CreatedChunks int
	SnapshotKey   string
}

// Committer applies change sets.
type Committer struct {
	writer         Writer
	snapshots      SnapshotWriter
	keys           KeyGenerator
	batchSize      int
	requestTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Committer.
type Option func(*Committer)

// WithBatchSize sets the chunk size. Values outside 1..10 are clamped to 10.
func WithBatchSize(n int) Option {
	return func(c *Committer) {
		if n < 1 || n > DefaultBatchSize {
			n = DefaultBatchSize
		}
		c.batchSize = n
	}
}

// WithRequestTimeout bounds each detached submission.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Committer) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Committer) {
		c.logger = l
	}
}

// New creates a Committer.
func New(w Writer, snapshots SnapshotWriter, keys KeyGenerator, opts ...Option) *Committer {
	c := &Committer{
		writer:         w,
		snapshots:      snapshots,
		keys:           keys,
		batchSize:      DefaultBatchSize,
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit applies cs and writes the next snapshot.
//
// candidates is the full merged candidate list cs was computed from and
// previous is the baseline snapshot. Previous records absent from the
// candidates are carried into the new snapshot unchanged.
//
// The returned error is a *ChunkError, ErrCommitInterrupted (wrapping the
// context error) or a *SnapshotError, possibly joined. Result is valid in all
// cases.
func (c *Committer) Commit(ctx context.Context, cs diff.ChangeSet, candidates, previous []record.Record) (Result, error) {
	var res Result
	updateChunks := Chunk(cs.ToUpdate, c.batchSize)
	createChunks := Chunk(cs.ToCreate, c.batchSize)

	commitErr := func() error {
		for i, chunk := range updateChunks {
			if err := c.checkRun(ctx, ListUpdate, i); err != nil {
				return err
			}
			if err := c.submit(ctx, func(cctx context.Context) error {
				return c.writer.UpdateRecords(cctx, chunk)
			}); err != nil {
				return c.chunkError(ListUpdate, i, len(chunk), err)
			}
			res.UpdatedChunks++
			c.logger.Info("committed chunk", "list", ListUpdate, "chunk", i, "records", len(chunk))
		}
		for i, chunk := range createChunks {
			if err := c.checkRun(ctx, ListCreate, i); err != nil {
				return err
			}
			if err := c.submit(ctx, func(cctx context.Context) error {
				return c.writer.CreateRecords(cctx, chunk)
			}); err != nil {
				return c.chunkError(ListCreate, i, len(chunk), err)
			}
			res.CreatedChunks++
			c.logger.Info("committed chunk", "list", ListCreate, "chunk", i, "records", len(chunk))
		}
		return nil
	}()
	if commitErr != nil {
		c.logger.Error("commit stopped", "error", commitErr, "updated_chunks", res.UpdatedChunks, "created_chunks", res.CreatedChunks)
	}

	body := c.nextSnapshot(cs, res, candidates, previous)
	key := c.keys.Generate()
	if err := c.submit(ctx, func(cctx context.Context) error {
		return c.snapshots.Put(cctx, key, body)
	}); err != nil {
		return res, errors.Join(commitErr, &SnapshotError{Key: key, Err: err})
	}
	res.SnapshotKey = key
	c.logger.Info("snapshot written", "snapshot_key", key, "records", len(body))
	return res, commitErr
}

func (c *Committer) checkRun(ctx context.Context, list List, chunk int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before %s chunk %d: %w", ErrCommitInterrupted, list, chunk, err)
	}
	return nil
}

// submit runs fn on a context that ignores run cancellation but carries its
// own deadline.
func (c *Committer) submit(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.requestTimeout)
	defer cancel()
	return fn(cctx)
}

func (c *Committer) chunkError(list List, chunk, size int, err error) *ChunkError {
	start := chunk * c.batchSize
	return &ChunkError{List: list, Chunk: chunk, Start: start, End: start + size, Err: err}
}

// nextSnapshot builds the snapshot body: candidates in order, with records
// of unapplied update and create chunks reverted to their previous version
// (or left out when they have none), followed by previous records that are
// no longer exported.
func (c *Committer) nextSnapshot(cs diff.ChangeSet, res Result, candidates, previous []record.Record) []record.Record {
	prevByKey := diff.ByKey(previous)
	reverted := make(map[string]bool)
	appliedUpdates := min(res.UpdatedChunks*c.batchSize, len(cs.ToUpdate))
	for _, u := range cs.ToUpdate[appliedUpdates:] {
		reverted[u.Fields.Key()] = true
	}
	appliedCreates := min(res.CreatedChunks*c.batchSize, len(cs.ToCreate))
	for _, cr := range cs.ToCreate[appliedCreates:] {
		reverted[cr.Fields.Key()] = true
	}

	body := make([]record.Record, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, rec := range candidates {
		key := rec.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		if reverted[key] {
			if prev, ok := prevByKey[key]; ok {
				body = append(body, prev)
			}
			continue
		}
		body = append(body, rec)
	}
	for _, rec := range previous {
		key := rec.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		body = append(body, rec)
	}
	return body
}
