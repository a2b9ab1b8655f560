package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/rostersync/internal/export"
	"github.com/roach88/rostersync/internal/normalize"
	"github.com/roach88/rostersync/internal/poller"
	"github.com/roach88/rostersync/internal/record"
	"github.com/roach88/rostersync/internal/secrets"
)

// PutResult is returned by a successful PutEmployee.
const PutResult = "success"

// PutEmployee writes rec into an import workbook and asks the portal to
// import it. When an acknowledgement location and receipt name are
// configured the call waits for the receipt.
func (e *Engine) PutEmployee(ctx context.Context, rec record.Record) (string, error) {
	if rec == nil || !normalize.ValidPayroll(rec.Key()) {
		return "", &RunError{Kind: KindInvalidInput, Stage: StageNormalize, Message: fmt.Sprintf("invalid payroll number %q", rec.Key())}
	}
	if e.deps.Portal == nil {
		return "", &RunError{Kind: KindInvalidInput, Stage: StagePortal, Message: "no portal configured"}
	}

	bundle, err := secrets.Resolve(ctx, e.deps.Secrets, e.cfg.SecretNames)
	if err != nil {
		return "", newRunError(KindSecretUnavailable, StageSecrets, "resolve credentials", err)
	}
	stores, err := e.deps.Records(bundle.APIKey).StoreDirectory(ctx)
	if err != nil {
		return "", newRunError(KindBaselineUnavailable, StageIndex, "load store directory", err)
	}

	row, err := e.normalizer(stores).Denormalize(rec)
	if err != nil {
		return "", &RunError{Kind: KindInvalidInput, Stage: StageNormalize, Message: "record does not fit the import layout", Err: err}
	}
	if err := os.MkdirAll(e.cfg.WorkDir, 0o755); err != nil {
		return "", newRunError(KindCommitFailure, StagePortal, "create work directory", err)
	}
	path := filepath.Join(e.cfg.WorkDir, e.cfg.ImportName)
	if err := export.WriteWorkbook(path, export.DefaultSheet, export.DefaultHeaderRows, []export.RawRow{row}); err != nil {
		return "", newRunError(KindCommitFailure, StagePortal, "write import workbook", err)
	}

	if err := e.deps.Portal.Import(ctx, bundle.Portal, path); err != nil {
		return "", newRunError(KindCommitFailure, StagePortal, "portal import", err)
	}
	e.logger.Info("import submitted", "payroll", rec.Key(), "file", path)

	if e.deps.Acks != nil && e.cfg.ReceiptName != "" {
		status, err := e.poll(ctx, e.deps.Acks, e.cfg.ReceiptName)
		if err != nil {
			return "", newRunError(KindPollTimeout, StagePortal, "wait for import receipt", err)
		}
		if status == poller.Exhausted {
			return "", &RunError{
				Kind:    KindPollTimeout,
				Stage:   StagePortal,
				Message: fmt.Sprintf("no receipt %q in %s", e.cfg.ReceiptName, e.deps.Acks),
				Err:     errors.New("poll exhausted"),
			}
		}
	}
	return PutResult, nil
}
