package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docquery/internal/querydoc"
	"github.com/roach88/docquery/internal/querysql"
)

// AggregateOptions holds flags for the aggregate command.
type AggregateOptions struct {
	*RootOptions
	Output string // output file path
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AggregateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "aggregate <query-file>",
		Short: "Compile an aggregate query",
		Long: `Compile the aggregate section of a query file:

  aggregate:
    function: "COUNT(1) AS n, AVG(age)"
    groupBy: [city]
    condition: {filter: {active: true}}
    after: {filter: {"n >": 2}, sort: ["-n"]}

The condition filters documents before grouping; after filters, sorts and
pages the grouped rows by output alias.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the JSON result to a file")

	return cmd
}

func runAggregate(opts *AggregateOptions, path string, cmd *cobra.Command) error {
	if err := opts.resolve(cmd); err != nil {
		return err
	}
	formatter := opts.newFormatter(cmd)

	qf, err := LoadQueryFile(path)
	if err != nil {
		return outputCompileFailure(formatter, err)
	}
	if qf.Aggregate == nil {
		return outputCompileError(formatter, ErrCodeShape, "query file has no aggregate section", nil)
	}
	dest, err := opts.destination(cmd, qf)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Aggregating %s for %s (%s): %s", path, dest.Target, dest.table(), qf.Aggregate.Function)

	spec := *qf.Aggregate
	result, err := opts.compileTo(dest,
		func(c *querysql.Compiler) (*querysql.Query, error) {
			return c.Aggregate(dest.Collection, dest.Partition, spec)
		},
		func(c *querydoc.Compiler) (*querydoc.Query, error) {
			return c.Aggregate(dest.Collection, dest.Partition, spec)
		})
	if err != nil {
		return outputCompileFailure(formatter, err)
	}

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}
	return outputCompileSuccess(formatter, result, opts.Output)
}
