package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/poller"
	"github.com/roach88/rostersync/internal/secrets"
)

// ReportResult is the parsed accounting report.
type ReportResult struct {
	Rows   []map[string]string `json:"rows"`
	Length int                 `json:"length"`
}

// Report exports the accounting report for [start, end] and parses it.
// Without a portal the report is expected to be dropped into the export
// directory by other means.
func (e *Engine) Report(ctx context.Context, start, end time.Time) (*ReportResult, error) {
	if start.IsZero() || end.IsZero() {
		return nil, &RunError{Kind: KindInvalidInput, Stage: StageReport, Message: "start and end dates are required"}
	}
	if end.Before(start) {
		return nil, &RunError{Kind: KindInvalidInput, Stage: StageReport, Message: fmt.Sprintf("end %s is before start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))}
	}

	dir := e.deps.Exports.Dir()
	path := filepath.Join(dir, export.ReportFile)
	if e.deps.Portal != nil {
		login, err := secrets.LoadPortalLogin(ctx, e.deps.Secrets, e.cfg.SecretNames.Portal)
		if err != nil {
			return nil, newRunError(KindSecretUnavailable, StageSecrets, "resolve portal login", err)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, newRunError(KindExportUnavailable, StageReport, "remove stale report", err)
		}
		if err := e.deps.Portal.ExportReport(ctx, login, start, end); err != nil {
			return nil, newRunError(KindExportUnavailable, StagePortal, "trigger report export", err)
		}
	}

	status, err := e.poll(ctx, poller.DirLocation(dir), export.ReportFile)
	if err != nil {
		return nil, newRunError(KindPollTimeout, StageReport, "wait for report", err)
	}
	if status == poller.Exhausted {
		return nil, &RunError{
			Kind:    KindPollTimeout,
			Stage:   StageReport,
			Message: fmt.Sprintf("%s did not appear in %s", export.ReportFile, dir),
			Err:     errors.New("poll exhausted"),
		}
	}

	rows, err := export.ReadCSV(path)
	if err != nil {
		return nil, newRunError(KindExportUnavailable, StageReport, "parse report", err)
	}
	e.logger.Info("report ready", "rows", len(rows))
	return &ReportResult{Rows: rows, Length: len(rows)}, nil
}
