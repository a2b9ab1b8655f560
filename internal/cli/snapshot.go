package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rostersync/internal/snapshot"
)

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect stored snapshots",
	}
	cmd.AddCommand(newSnapshotLatestCommand(rootOpts))
	return cmd
}

// SnapshotSummary describes one stored snapshot.
type SnapshotSummary struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
	Records      int       `json:"records"`
}

func newSnapshotLatestCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the latest snapshot",
		Long: `Show the key, modification time and size of the snapshot the next sync
will use as its baseline.

Example:
  rostersync snapshot latest --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			cfg, err := opts.loadConfig(cmd, f)
			if err != nil {
				return err
			}
			store, closeFn, err := snapshot.Open(cmd.Context(), cfg.SnapshotSettings())
			if err != nil {
				_ = f.Error(CodeSetup, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to open snapshot store", err)
			}
			defer opts.closeQuietly(closeFn)

			snap, err := store.Latest(cmd.Context())
			if errors.Is(err, snapshot.ErrNotFound) {
				return f.Success(nil, "no snapshot stored")
			}
			if err != nil {
				_ = f.Error("BaselineUnavailable", err.Error(), nil)
				return WrapExitError(ExitFailure, "failed to read snapshot", err)
			}
			s := SnapshotSummary{Key: snap.Key, LastModified: snap.LastModified.UTC(), Records: len(snap.Records)}
			return f.Success(s, fmt.Sprintf("%s  %s  %d records", s.Key, s.LastModified.Format(time.RFC3339), s.Records))
		},
	}
}
