package cli

import (
	"fmt"

	"github.com/roach88/loginsight/internal/api"
	"github.com/roach88/loginsight/internal/config"
	"github.com/roach88/loginsight/internal/journal"
	"github.com/roach88/loginsight/internal/queryurl"
)

// loadConfig resolves the connection settings for this invocation.
func loadConfig(opts *RootOptions) (config.Config, error) {
	return config.LoadWithEnv(opts.Config, opts.Getenv)
}

// newCompiler returns a compiler using the configured charset.
func newCompiler(cfg config.Config) (*queryurl.Compiler, error) {
	enc, err := cfg.TextEncoding()
	if err != nil {
		return nil, err
	}
	return queryurl.NewCompiler(queryurl.WithCharset(enc)), nil
}

// newClient builds an API client, opening the journal when --journal is set.
// The returned close func releases the journal and is never nil.
func newClient(opts *RootOptions, cfg config.Config, extra ...api.Option) (*api.Client, func(), error) {
	closeFn := func() {}
	clientOpts := []api.Option{api.WithLogger(opts.Logger())}

	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			return nil, closeFn, &LoadError{Code: ErrCodeJournal, Message: err.Error()}
		}
		closeFn = func() {
			if err := j.Close(); err != nil {
				opts.Logger().Error("error closing journal", "error", err)
			}
		}
		clientOpts = append(clientOpts, api.WithJournal(j))
	}

	client, err := api.New(cfg, append(clientOpts, extra...)...)
	if err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("create client: %w", err)
	}
	return client, closeFn, nil
}
