// Command docquery compiles document conditions to Postgres JSONB SQL or
// MongoDB queries.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/docquery/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own failures. Usage and configuration
		// errors reach here unprinted.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || !exitErr.Reported {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}
