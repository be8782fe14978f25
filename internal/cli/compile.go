package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/docquery/internal/aggregate"
	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/querydoc"
	"github.com/roach88/docquery/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Count  bool   // compile a count query instead of a select
	Output string // output file path
}

// CompileResult is the compiled query as printed by compile and aggregate.
// SQL and Params are set for postgres, Query for mongo.
type CompileResult struct {
	Target         string            `json:"target"`
	SQL            string            `json:"sql,omitempty"`
	Params         []ParamResult     `json:"params,omitempty"`
	Query          json.RawMessage   `json:"query,omitempty"`
	Renames        map[string]string `json:"renames,omitempty"`
	CrossPartition bool              `json:"crossPartition,omitempty"`
	Fingerprint    string            `json:"fingerprint"`
}

// ParamResult is one named SQL parameter.
type ParamResult struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Compile a condition file to a target query",
		Long: `Compile a condition from a YAML, JSON or CUE query file.

The postgres target prints a parameterized SELECT over the jsonb document
column; the mongo target prints a find filter or, when the condition
declares joins, an aggregation pipeline, as extended JSON.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Count, "count", false, "compile a count query")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the JSON result to a file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	if err := opts.resolve(cmd); err != nil {
		return err
	}
	formatter := opts.newFormatter(cmd)

	qf, err := LoadQueryFile(path)
	if err != nil {
		return outputCompileFailure(formatter, err)
	}
	if qf.Condition == nil {
		return outputCompileError(formatter, ErrCodeShape, "query file has no condition; use the aggregate command", nil)
	}
	dest, err := opts.destination(cmd, qf)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Compiling %s for %s (%s)", path, dest.Target, dest.table())

	result, err := opts.compileTo(dest,
		func(c *querysql.Compiler) (*querysql.Query, error) {
			if opts.Count {
				return c.Count(dest.Collection, dest.Partition, qf.Condition)
			}
			return c.Compile(dest.Collection, dest.Partition, qf.Condition)
		},
		func(c *querydoc.Compiler) (*querydoc.Query, error) {
			if opts.Count {
				return c.Count(dest.Collection, dest.Partition, qf.Condition)
			}
			return c.Compile(dest.Collection, dest.Partition, qf.Condition)
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

// destination is where a query file compiles to.
type destination struct {
	Target     condition.Target
	Collection string
	Partition  string
}

func (d destination) table() string {
	if d.Partition == "" {
		return d.Collection
	}
	return d.Collection + "." + d.Partition
}

// destination resolves the target, collection and partition for qf. An
// explicitly set flag wins over the query file, which wins over config.
func (o *RootOptions) destination(cmd *cobra.Command, qf *QueryFile) (destination, error) {
	target := pick(cmd, "target", qf.Target, o.Config.Target)
	t, ok := condition.ParseTarget(target)
	if !ok {
		return destination{}, fmt.Errorf("invalid target %q: must be postgres or mongo", target)
	}
	d := destination{
		Target:     t,
		Collection: pick(cmd, "collection", qf.Collection, o.Config.Collection),
		Partition:  pick(cmd, "partition", qf.Partition, o.Config.Partition),
	}
	if d.Collection == "" {
		return d, errors.New("collection is required: set it in the query file, with --collection or DOCQUERY_COLLECTION")
	}
	return d, nil
}

func pick(cmd *cobra.Command, flag, fromFile, fromConfig string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return fromConfig
	}
	if fromFile != "" {
		return fromFile
	}
	return fromConfig
}

// compileTo runs the compiler for d.Target and converts its output.
func (o *RootOptions) compileTo(
	d destination,
	sqlFn func(*querysql.Compiler) (*querysql.Query, error),
	docFn func(*querydoc.Compiler) (*querydoc.Query, error),
) (*CompileResult, error) {
	switch d.Target {
	case condition.TargetDocument:
		q, err := docFn(querydoc.NewCompiler(o.Config.DocOptions(o.Logger)))
		if err != nil {
			return nil, err
		}
		return documentResult(q)
	default:
		q, err := sqlFn(querysql.NewCompiler(o.Config.SQLOptions(o.Logger)))
		if err != nil {
			return nil, err
		}
		return relationalResult(q)
	}
}

func relationalResult(q *querysql.Query) (*CompileResult, error) {
	fp, err := q.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	result := &CompileResult{
		Target:         string(condition.TargetRelational),
		SQL:            q.Text,
		CrossPartition: q.CrossPartition,
		Fingerprint:    fp,
	}
	for _, p := range q.Params {
		result.Params = append(result.Params, ParamResult{Name: p.Placeholder(), Value: p.Value})
	}
	return result, nil
}

func documentResult(q *querydoc.Query) (*CompileResult, error) {
	ext, err := q.MarshalExtJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	fp, err := q.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	return &CompileResult{
		Target:         string(condition.TargetDocument),
		Query:          json.RawMessage(ext),
		Renames:        q.Renames,
		CrossPartition: q.CrossPartition,
		Fingerprint:    fp,
	}, nil
}

// outputCompileSuccess outputs a compiled query.
func outputCompileSuccess(formatter *OutputFormatter, result *CompileResult, outputFile string) error {
	if formatter.isJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.SQL != "" {
		fmt.Fprintln(w, result.SQL)
	} else {
		fmt.Fprintln(w, string(result.Query))
	}
	if len(result.Params) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Params:")
		for _, p := range result.Params {
			fmt.Fprintf(w, "  %s = %v\n", p.Name, p.Value)
		}
	}
	if len(result.Renames) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Renames:")
		for _, safe := range slices.Sorted(maps.Keys(result.Renames)) {
			fmt.Fprintf(w, "  %s → %s\n", safe, result.Renames[safe])
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled query to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return reported(ExitUsage, "%s: %s", code, message)
}

// outputCompileFailure reports err under its CLI error code.
func outputCompileFailure(formatter *OutputFormatter, err error) error {
	code, message := parseCompileError(err)
	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
		return outputCompileError(formatter, code, message, map[string]any{
			"file":   loadErr.Pos.Filename(),
			"line":   loadErr.Pos.Line(),
			"column": loadErr.Pos.Column(),
		})
	}
	return outputCompileError(formatter, code, message, nil)
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var parseErr *aggregate.ParseError
	if errors.As(err, &parseErr) {
		return ErrCodeInvalidAggregate, parseErr.Error()
	}
	if condition.IsValidationError(err) {
		return ErrCodeInvalidCondition, err.Error()
	}
	return ErrCodeCompileFailed, err.Error()
}

// writeResultToFile writes the compiled query as indented JSON.
func writeResultToFile(result *CompileResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
