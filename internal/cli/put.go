package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rostersync/internal/engine"
	"github.com/roach88/rostersync/internal/record"
)

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <record.json>",
		Short: "Import one employee into the portal",
		Long: `Write the employee record in the given JSON file into an import
workbook and ask the portal to import it. The file holds one flat object
keyed by Airtable field name.

Example:
  rostersync put new-hire.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(rootOpts, args[0], cmd)
		},
	}
}

func runPut(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	data, err := os.ReadFile(path)
	if err != nil {
		_ = f.Error(CodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read record", err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = f.Error(CodeInput, err.Error(), map[string]string{"file": path})
		return WrapExitError(ExitCommandError, "failed to decode record", err)
	}

	r, _, closeFn, err := opts.runner(cmd, f)
	if err != nil {
		return err
	}
	defer opts.closeQuietly(closeFn)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	result, err := r.PutEmployee(ctx, rec)
	if err != nil {
		return f.RunFailure(engine.OpPut, err)
	}
	return f.Success(map[string]string{"result": result, "payroll": rec.Key()}, "imported "+rec.Key()+": "+result)
}
