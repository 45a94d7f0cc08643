package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/loginsight/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Count int
}

// historyEntry is the JSON form of a journal entry.
type historyEntry struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	Operation  string    `json:"operation"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int       `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

type historyResult []historyEntry

func (r historyResult) renderText(w io.Writer) {
	if len(r) == 0 {
		fmt.Fprintln(w, "No requests recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tOP\tSTATUS\tDURATION\tURL")
	for _, e := range r {
		status := fmt.Sprint(e.Status)
		if e.Error != "" {
			status = "error"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%dms\t%s %s\n",
			e.ID, e.StartedAt.Format(time.RFC3339), e.Operation, status, e.DurationMS, e.Method, e.URL)
	}
	tw.Flush()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show requests recorded in the journal",
		Long: `Show the most recent requests recorded by --journal, newest first.
Pass -n 0 to show every entry.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 20, "number of entries to show (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Journal == "" {
		return formatter.Fail("history", &LoadError{Code: ErrCodeJournal, Message: "--journal is required"})
	}
	// Opening would create an empty journal; a missing file is a typo.
	if _, err := os.Stat(opts.Journal); err != nil {
		return formatter.Fail("open journal", err)
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return formatter.Fail("open journal", &LoadError{Code: ErrCodeJournal, Message: err.Error()})
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			opts.Logger().Error("error closing journal", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	entries, err := j.Recent(ctx, opts.Count)
	if err != nil {
		return formatter.Fail("read journal", &LoadError{Code: ErrCodeJournal, Message: err.Error()})
	}

	result := make(historyResult, 0, len(entries))
	for _, e := range entries {
		result = append(result, toHistoryEntry(e))
	}
	return formatter.Success(result)
}

func toHistoryEntry(e journal.Entry) historyEntry {
	return historyEntry{
		ID:         e.ID,
		StartedAt:  e.StartedAt,
		Operation:  e.Operation,
		Method:     e.Method,
		URL:        e.URL,
		Status:     e.Status,
		DurationMS: e.Duration.Milliseconds(),
		Error:      e.Error,
	}
}
