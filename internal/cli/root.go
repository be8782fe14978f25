package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/docquery/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	ConfigFile string
	Format     string // "json" | "text"

	// Flag storage. Effective values come from Config, which layers these
	// over DOCQUERY_* variables and docquery.yaml.
	Target       string
	Collection   string
	Partition    string
	DataColumn   string
	JoinStrategy string

	// Config is resolved before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docquery CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docquery",
		Short: "docquery - document condition compiler",
		Long: `Compile backend-agnostic document conditions to Postgres JSONB SQL
or MongoDB find filters and aggregation pipelines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./docquery.yaml)")
	flags.StringVarP(&opts.Target, "target", "t", "", "query target (postgres|mongo)")
	flags.StringVar(&opts.Collection, "collection", "", "collection name")
	flags.StringVar(&opts.Partition, "partition", "", "partition name")
	flags.StringVar(&opts.DataColumn, "data-column", "", "jsonb document column (postgres)")
	flags.StringVar(&opts.JoinStrategy, "join-strategy", "", "join compilation (subquery|jsonpath)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewAggregateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// resolve loads configuration and installs the logger. Subcommands built
// outside NewRootCommand call it lazily.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if o.Config != nil {
		return nil
	}
	cfg, err := config.Load(o.ConfigFile, cmd.Flags())
	if err != nil {
		return usageError("invalid configuration", err)
	}
	o.Config = cfg

	o.Logger = newLogger(cmd.ErrOrStderr(), o.Verbose)
	slog.SetDefault(o.Logger)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// newFormatter builds the formatter for one command invocation.
func (o *RootOptions) newFormatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Config.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
		TraceID:   newTraceID(),
	}
}
