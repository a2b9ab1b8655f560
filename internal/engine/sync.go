package engine

import (
	"context"
	"errors"

	"github.com/roach88/rostersync/internal/commit"
	"github.com/roach88/rostersync/internal/diff"
	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/poller"
	"github.com/roach88/rostersync/internal/record"
	"github.com/roach88/rostersync/internal/secrets"
	"github.com/roach88/rostersync/internal/snapshot"
)

// Sync reconciles the current export against the system of record and
// returns the change set that was committed.
func (e *Engine) Sync(ctx context.Context) (*diff.ChangeSet, error) {
	bundle, err := secrets.Resolve(ctx, e.deps.Secrets, e.cfg.SecretNames)
	if err != nil {
		return nil, newRunError(KindSecretUnavailable, StageSecrets, "resolve credentials", err)
	}

	prev, err := snapshot.LatestOrEmpty(ctx, e.deps.Snapshots)
	if err != nil {
		return nil, newRunError(KindBaselineUnavailable, StageSnapshotRead, "load previous snapshot", err)
	}
	e.logger.Info("loaded baseline", "snapshot_key", prev.Key, "records", len(prev.Records))

	records := e.deps.Records(bundle.APIKey)
	index, err := records.EmployeeIndex(ctx)
	if err != nil {
		return nil, newRunError(KindBaselineUnavailable, StageIndex, "load employee index", err)
	}
	stores, err := records.StoreDirectory(ctx)
	if err != nil {
		return nil, newRunError(KindBaselineUnavailable, StageIndex, "load store directory", err)
	}
	e.logger.Info("loaded index", "employees", len(index), "stores", len(stores))

	if err := e.triggerExport(ctx, bundle.Portal); err != nil {
		return nil, err
	}

	batches, err := e.deps.Exports.ReadAll(ctx)
	if err != nil {
		msg := "read export files"
		if errors.Is(err, export.ErrNoExport) {
			msg = "no export file present"
		}
		return nil, newRunError(KindExportUnavailable, StageExport, msg, err)
	}

	current, skipped, err := e.normalizeBatches(ctx, batches, stores)
	if err != nil {
		return nil, err
	}

	cs := diff.Compute(current, diff.ByKey(prev.Records), index)
	cs.Skipped = skipped
	e.logger.Info("computed change set",
		"to_update", len(cs.ToUpdate),
		"to_create", len(cs.ToCreate),
		"unchanged", len(cs.Unchanged),
		"skipped", cs.Skipped,
	)

	committer := commit.New(records, e.deps.Snapshots, e.deps.Keys,
		commit.WithBatchSize(e.cfg.BatchSize),
		commit.WithRequestTimeout(e.cfg.RequestTimeout),
		commit.WithLogger(e.logger),
	)
	res, err := committer.Commit(ctx, cs, current, prev.Records)
	if err != nil {
		return nil, commitRunError(err)
	}
	e.logger.Info("sync complete",
		"updated_chunks", res.UpdatedChunks,
		"created_chunks", res.CreatedChunks,
		"snapshot_key", res.SnapshotKey,
	)
	return &cs, nil
}

// triggerExport asks the portal for a fresh export and waits for it. Stale
// export files are removed first so the poll cannot match them. An export
// that never appears is not fatal here; reading finds out whether any file
// is present.
func (e *Engine) triggerExport(ctx context.Context, login secrets.PortalLogin) error {
	if e.deps.Portal == nil {
		return nil
	}
	removed, err := e.deps.Exports.Clear()
	if err != nil {
		return newRunError(KindExportUnavailable, StageExport, "clear stale exports", err)
	}
	if removed > 0 {
		e.logger.Debug("removed stale exports", "files", removed)
	}
	if err := e.deps.Portal.ExportEmployees(ctx, login); err != nil {
		return newRunError(KindExportUnavailable, StagePortal, "trigger employee export", err)
	}
	status, err := e.poll(ctx, poller.DirLocation(e.deps.Exports.Dir()), e.cfg.ExportName)
	if err != nil {
		return newRunError(KindExportUnavailable, StagePortal, "wait for employee export", err)
	}
	if status == poller.Exhausted {
		e.logger.Warn("export did not appear", "file", e.cfg.ExportName, "retries", e.cfg.PollRetries)
	}
	return nil
}

func (e *Engine) normalizeBatches(ctx context.Context, batches []export.Batch, stores map[string]string) ([]record.Record, int, error) {
	n := e.normalizer(stores)
	skipped := 0
	perFile := make([][]record.Record, 0, len(batches))
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, 0, newRunError(KindTimeout, StageNormalize, "normalize "+b.Name, err)
		}
		recs := make([]record.Record, 0, len(b.Rows))
		for i, row := range b.Rows {
			rec, err := n.Normalize(row)
			if err != nil {
				skipped++
				e.logger.Debug("skipped row", "kind", KindInvalidRow, "file", b.Name, "row", i, "error", err)
				continue
			}
			recs = append(recs, rec)
		}
		perFile = append(perFile, recs)
	}
	return diff.Merge(perFile...), skipped, nil
}

// commitRunError classifies a commit failure. Chunk and interruption
// errors take precedence over a failed snapshot write joined to them.
func commitRunError(err error) *RunError {
	var ce *commit.ChunkError
	switch {
	case errors.Is(err, commit.ErrCommitInterrupted):
		return &RunError{Kind: KindTimeout, Stage: StageCommit, Message: "run ended before commit finished", Err: err}
	case errors.As(err, &ce):
		return newRunError(KindCommitFailure, StageCommit, "chunk rejected", err)
	case commit.IsSnapshotError(err):
		return newRunError(KindSnapshotWriteFailure, StageSnapshotWrite, "persist snapshot", err)
	default:
		return newRunError(KindCommitFailure, StageCommit, "commit", err)
	}
}
