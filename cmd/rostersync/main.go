// Command rostersync reconciles the portal employee export with Airtable.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rostersync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
