package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file path; empty means defaults plus environment
	Journal string // request journal path; empty disables journaling

	getenv func(string) string
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the loginsight CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{getenv: os.Getenv})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loginsight",
		Short: "Query and feed a log analytics server",
		Long: `loginsight compiles structured queries into REST URLs, runs them
against a log analytics server, and ingests messages through its
ingestion API.

Connection settings come from --config and LOGINSIGHT_* environment
variables, with the environment taking precedence.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file path")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "record requests to this SQLite journal")

	cmd.AddCommand(NewURLCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewAggregateCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// newLogger builds the CLI's text logger. Debug records appear only with --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Logger returns the logger configured for this invocation.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

// Getenv looks up an environment variable through the injectable lookup.
func (o *RootOptions) Getenv(key string) string {
	if o.getenv == nil {
		return os.Getenv(key)
	}
	return o.getenv(key)
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
