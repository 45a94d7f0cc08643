package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/loginsight/internal/config"
	"github.com/roach88/loginsight/internal/query"
)

// URLOptions holds flags for the url command.
type URLOptions struct {
	*RootOptions
	Absolute bool // prefix the configured base URL
}

// urlResult is the output of the url command.
type urlResult struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

func (r urlResult) renderText(w io.Writer) {
	fmt.Fprintln(w, r.URL)
}

// NewURLCommand creates the url command.
func NewURLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &URLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "url <query-file>",
		Short: "Compile a query definition to its REST URL",
		Long: `Compile a query definition (.yaml, .yml or .cue) to the relative URL
the server expects. No connection is made.

Values are percent-encoded in the configured charset.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runURL(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Absolute, "absolute", "a", false, "print an absolute URL using the configured host")

	return cmd
}

func runURL(opts *URLOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q, err := LoadQuery(path)
	if err != nil {
		return formatter.Fail("load query", err)
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail("load config", err)
	}
	compiler, err := newCompiler(cfg)
	if err != nil {
		return formatter.Fail("load config", err)
	}

	rel, err := compiler.Compile(q)
	if err != nil {
		return formatter.Fail("compile query", err)
	}
	formatter.VerboseLog("Compiled %s with charset %s", path, cfg.Charset)

	if opts.Absolute {
		if cfg.Host == "" {
			return formatter.Fail("absolute url", &config.InvalidError{Field: "host", Reason: "required for --absolute"})
		}
		rel = cfg.BaseURL() + rel
	}

	return formatter.Success(urlResult{Kind: kindOf(q), URL: rel})
}

func kindOf(q query.Query) string {
	switch q.(type) {
	case query.AggregateQuery, *query.AggregateQuery:
		return KindAggregate
	default:
		return KindEvents
	}
}
