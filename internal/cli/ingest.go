package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/loginsight/internal/api"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Gzip bool
}

// ingestResult is the output of the ingest command.
type ingestResult struct {
	Sent int `json:"sent"`
	*api.IngestionResponse
}

func (r ingestResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Ingested %d of %d message(s)\n", r.Ingested, r.Sent)
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <messages-file>",
		Short: "Send messages to the ingestion API",
		Long: `Send the messages in a YAML file to the ingestion API under the
configured agent id. The file holds a list of messages, or a mapping
with a "messages" list:

  messages:
    - text: "disk full on /var"
      timestamp: 1700000000000
      fields:
        - name: hostname
          content: web-1
        - name: mount
          start_position: 13
          length: 4

Ingestion needs no login.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Gzip, "gzip", "z", false, "gzip the request body")

	return cmd
}

func runIngest(opts *IngestOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	msgs, err := LoadMessages(path)
	if err != nil {
		return formatter.Fail("load messages", err)
	}
	formatter.VerboseLog("Loaded %d message(s) from %s", len(msgs), path)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail("load config", err)
	}
	client, closeClient, err := newClient(opts.RootOptions, cfg, api.WithGzip(opts.Gzip))
	if err != nil {
		return formatter.Fail("connect", err)
	}
	defer closeClient()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req := api.NewIngestionRequest(msgs...)
	resp, err := client.Ingest(ctx, req)
	if err != nil {
		return formatter.Fail("ingest", err)
	}
	return formatter.Success(ingestResult{Sent: req.Count(), IngestionResponse: resp})
}
