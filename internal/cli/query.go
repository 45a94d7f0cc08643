package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/loginsight/internal/api"
	"github.com/roach88/loginsight/internal/query"
)

// QueryOptions holds flags for the events and aggregate commands.
type QueryOptions struct {
	*RootOptions
	Limit int // overrides the definition's limit when > 0
}

// eventsResult is the output of the events command.
type eventsResult struct {
	URL string `json:"url"`
	*api.EventsResponse
}

func (r eventsResult) renderText(w io.Writer) {
	for _, e := range r.Events {
		fmt.Fprintf(w, "%s  %s\n", formatMillis(e.Timestamp), e.Text)
		for _, f := range e.Fields {
			if f.Positional() {
				fmt.Fprintf(w, "    %s @%d+%d\n", f.Name, f.StartPosition, f.Length)
				continue
			}
			fmt.Fprintf(w, "    %s=%s\n", f.Name, f.Content)
		}
	}
	fmt.Fprintf(w, "%d event(s) in %dms%s\n", len(r.Events), r.Duration, partial(r.Complete))
}

// aggregateResult is the output of the aggregate command.
type aggregateResult struct {
	URL string `json:"url"`
	*api.AggregateResponse
}

func (r aggregateResult) renderText(w io.Writer) {
	for _, b := range r.Bins {
		fmt.Fprintf(w, "%s  %s  %g\n", formatMillis(&b.MinTimestamp), formatMillis(&b.MaxTimestamp), b.Value)
	}
	fmt.Fprintf(w, "%d bin(s) in %dms%s\n", len(r.Bins), r.Duration, partial(r.Complete))
}

func formatMillis(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).UTC().Format(time.RFC3339Nano)
}

func partial(complete bool) string {
	if complete {
		return ""
	}
	return " (partial)"
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events <query-file>",
		Short: "Run an event query",
		Long: `Log in with the configured credentials, run the event query in
the definition file, and print the matching events.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], KindEvents, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "override the definition's result limit")

	return cmd
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "aggregate <query-file>",
		Short: "Run an aggregate query",
		Long: `Log in with the configured credentials, run the aggregate query in
the definition file, and print one line per bin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], KindAggregate, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "override the definition's result limit")

	return cmd
}

func runQuery(opts *QueryOptions, path, kind string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.Logger()

	q, err := LoadQuery(path)
	if err != nil {
		return formatter.Fail("load query", err)
	}
	if got := kindOf(q); got != kind {
		return formatter.Fail("load query", &LoadError{
			Code:    ErrCodeDefinition,
			Message: fmt.Sprintf("%s has kind %s; use the %s command", path, got, got),
		})
	}
	q = withLimit(q, opts.Limit)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail("load config", err)
	}
	client, closeClient, err := newClient(opts.RootOptions, cfg)
	if err != nil {
		return formatter.Fail("connect", err)
	}
	defer closeClient()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	auth, err := client.Connect(ctx)
	if err != nil {
		return formatter.Fail("login", err)
	}
	logger.Debug("logged in", "user_id", auth.UserID, "ttl", auth.TTL)

	rel, err := client.Compiler().Compile(q)
	if err != nil {
		return formatter.Fail("compile query", err)
	}
	formatter.VerboseLog("GET %s%s", client.BaseURL(), rel)

	switch kind {
	case KindAggregate:
		resp, err := client.AggregatedEventsURL(ctx, rel)
		if err != nil {
			return formatter.Fail("aggregate query", err)
		}
		return formatter.Success(aggregateResult{URL: rel, AggregateResponse: resp})
	default:
		resp, err := client.EventsURL(ctx, rel)
		if err != nil {
			return formatter.Fail("events query", err)
		}
		return formatter.Success(eventsResult{URL: rel, EventsResponse: resp})
	}
}

// withLimit applies a --limit override.
func withLimit(q query.Query, limit int) query.Query {
	if limit <= 0 {
		return q
	}
	switch qry := q.(type) {
	case query.EventQuery:
		return qry.WithLimit(limit)
	case query.AggregateQuery:
		return qry.WithLimit(limit)
	default:
		return q
	}
}
