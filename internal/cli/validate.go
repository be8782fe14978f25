package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docquery/internal/aggregate"
	"github.com/roach88/docquery/internal/condition"
	"github.com/roach88/docquery/internal/querydoc"
	"github.com/roach88/docquery/internal/queryir"
	"github.com/roach88/docquery/internal/querysql"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool       `json:"valid"`
	Target      string     `json:"target,omitempty"`
	Joins       []string   `json:"joins,omitempty"`
	ElemMatches int        `json:"elemMatches,omitempty"`
	UnknownOps  []string   `json:"unknownOps,omitempty"`
	FieldRefs   int        `json:"fieldRefs,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	Errors      []CLIError `json:"errors,omitempty"`

	// Sample counts, set with --documents.
	Documents int `json:"documents,omitempty"`
	Matched   int `json:"matched,omitempty"`
}

// placeholderCollection names the table of dry-run compiles when no
// collection is configured.
const placeholderCollection = "collection"

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Documents string // sample documents file
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <query-file>",
		Short: "Validate a query file without printing the query",
		Long: `Validate the condition and aggregate sections of a query file.

Decodes and lowers the condition, reports its joins, pass-through operators
and target-dependent behavior, then dry-runs the compiler for the selected
target. Faster feedback than reading compiled output.

With --documents, the condition is also evaluated in memory against a YAML
or JSON list of sample documents and the match count is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Documents, "documents", "d", "", "sample documents to evaluate the condition against")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	if err := opts.resolve(cmd); err != nil {
		return err
	}
	formatter := opts.newFormatter(cmd)

	qf, err := LoadQueryFile(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Code == ErrCodeInvalidCondition {
			return outputValidationErrors(formatter, []CLIError{{Code: loadErr.Code, Message: loadErr.Message}})
		}
		code, message := parseCompileError(err)
		return outputValidateError(formatter, code, message, nil)
	}

	target := pick(cmd, "target", qf.Target, opts.Config.Target)
	t, ok := condition.ParseTarget(target)
	if !ok {
		return outputValidateError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid target %q: must be postgres or mongo", target), nil)
	}
	dest := destination{
		Target:     t,
		Collection: pick(cmd, "collection", qf.Collection, opts.Config.Collection),
		Partition:  pick(cmd, "partition", qf.Partition, opts.Config.Partition),
	}
	if dest.Collection == "" {
		dest.Collection = placeholderCollection
	}

	result := ValidationResult{Target: string(t)}
	var errs []CLIError
	addErr := func(err error) {
		code, message := parseCompileError(err)
		errs = append(errs, CLIError{Code: code, Message: message})
	}

	if qf.Condition != nil {
		formatter.VerboseLog("Validating condition in %s", path)
		if pred, err := queryir.Lower(qf.Condition); err != nil {
			addErr(err)
		} else {
			a := queryir.Analyze(pred)
			result.Joins = a.Joins
			result.ElemMatches = a.ElemMatches
			result.UnknownOps = a.UnknownOps
			result.FieldRefs = a.FieldRefs
			result.Warnings = a.Warnings

			_, err := opts.compileTo(dest,
				func(c *querysql.Compiler) (*querysql.Query, error) {
					return c.Compile(dest.Collection, dest.Partition, qf.Condition)
				},
				func(c *querydoc.Compiler) (*querydoc.Query, error) {
					return c.Compile(dest.Collection, dest.Partition, qf.Condition)
				})
			if err != nil {
				addErr(err)
			}

			if opts.Documents != "" {
				docs, err := LoadDocuments(opts.Documents)
				if err != nil {
					code, message := parseCompileError(err)
					return outputValidateError(formatter, code, message, nil)
				}
				result.Documents = len(docs)
				for _, doc := range docs {
					if queryir.Match(pred, doc) {
						result.Matched++
					}
				}
			}
		}
	}

	if qf.Aggregate != nil {
		formatter.VerboseLog("Validating aggregate in %s", path)
		spec := *qf.Aggregate
		if plan, err := aggregate.Parse(spec); err != nil {
			addErr(err)
		} else {
			formatter.VerboseLog("Aggregate: %d function(s), %d group(s)", len(plan.Functions), len(plan.Groups))
			_, err := opts.compileTo(dest,
				func(c *querysql.Compiler) (*querysql.Query, error) {
					return c.Aggregate(dest.Collection, dest.Partition, spec)
				},
				func(c *querydoc.Compiler) (*querydoc.Query, error) {
					return c.Aggregate(dest.Collection, dest.Partition, spec)
				})
			if err != nil {
				addErr(err)
			}
		}
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.isJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Query valid for %s\n", result.Target)
	if len(result.Joins) > 0 {
		fmt.Fprintf(w, "  joins: %s\n", strings.Join(result.Joins, ", "))
	}
	if result.ElemMatches > 0 {
		fmt.Fprintf(w, "  element matches: %d\n", result.ElemMatches)
	}
	if len(result.UnknownOps) > 0 {
		fmt.Fprintf(w, "  pass-through operators: %s\n", strings.Join(result.UnknownOps, ", "))
	}
	if result.FieldRefs > 0 {
		fmt.Fprintf(w, "  field references: %d\n", result.FieldRefs)
	}
	if result.Documents > 0 {
		fmt.Fprintf(w, "  matched %d of %d sample document(s)\n", result.Matched, result.Documents)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return reported(ExitUsage, "%s: %s", code, message)
}

// outputValidationErrors outputs every validation error and fails with
// ExitInvalid.
func outputValidationErrors(formatter *OutputFormatter, errs []CLIError) error {
	failed := reported(ExitInvalid, "validation failed with %d error(s)", len(errs))
	if formatter.isJSON() {
		if err := formatter.respond(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &errs[0],
		}); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	return failed
}
