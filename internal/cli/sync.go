package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rostersync/internal/engine"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the export with Airtable",
		Long: `Run one sync: read the export files, compute the change set against
the latest snapshot and the Airtable index, commit it and store a new
snapshot.

Example:
  rostersync sync --config rostersync.yaml
  rostersync sync --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	r, _, closeFn, err := opts.runner(cmd, f)
	if err != nil {
		return err
	}
	defer opts.closeQuietly(closeFn)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	cs, err := r.Sync(ctx)
	if err != nil {
		return f.RunFailure(engine.OpSync, err)
	}
	text := fmt.Sprintf("sync complete: %d updated, %d created, %d unchanged, %d skipped",
		len(cs.ToUpdate), len(cs.ToCreate), len(cs.Unchanged), cs.Skipped)
	return f.Success(cs, text)
}
