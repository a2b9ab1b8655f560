package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rostersync/internal/engine"
	"github.com/roach88/rostersync/internal/server"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Start string
	End   string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export and parse the accounting report",
		Long: `Ask the portal for the accounting report over a date range, wait for
AccountingReport_Simple.csv and print its rows.

Example:
  rostersync report --start 2024-03-01 --end 2024-03-31 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "first day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "last day, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	start, err := time.Parse(server.DateLayout, opts.Start)
	if err != nil {
		_ = f.Error(CodeInput, "--start must be YYYY-MM-DD", nil)
		return WrapExitError(ExitCommandError, "invalid --start", err)
	}
	end, err := time.Parse(server.DateLayout, opts.End)
	if err != nil {
		_ = f.Error(CodeInput, "--end must be YYYY-MM-DD", nil)
		return WrapExitError(ExitCommandError, "invalid --end", err)
	}

	r, _, closeFn, err := opts.runner(cmd, f)
	if err != nil {
		return err
	}
	defer opts.closeQuietly(closeFn)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	res, err := r.Report(ctx, start, end)
	if err != nil {
		return f.RunFailure(engine.OpReport, err)
	}
	return f.Success(res, fmt.Sprintf("report: %d rows", res.Length))
}
