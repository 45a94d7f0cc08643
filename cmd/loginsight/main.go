// Command loginsight queries and feeds a log analytics server.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/loginsight/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// Flag and argument errors from cobra bypass the output formatter.
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
