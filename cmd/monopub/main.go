// Command monopub publishes, snapshots, versions and upgrades the packages
// of an npm monorepo.
//
// Every command reads the workspace under the given path (default ".") and
// exits non-zero on any error. Interrupting a run cancels in-flight registry
// requests and child processes and exits with 130.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matzehuels/monopub/internal/cli"
	"github.com/matzehuels/monopub/pkg/errors"
)

const exitInterrupted = 128 + int(syscall.SIGINT)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()

	if code := exitCode(err); code != 0 {
		if code != exitInterrupted {
			fmt.Fprintf(os.Stderr, "monopub: %s\n", errors.UserMessage(err))
		}
		os.Exit(code)
	}
}

// exitCode maps the result of a run to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case stderrors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

func run(ctx context.Context) error {
	c := cli.New(os.Stderr, cli.LogInfo)
	root := c.RootCommand()

	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log registry traffic, cache hits and subprocesses")

	// Runs ahead of the CLI's own pre-run, which installs debug hooks based
	// on the logger level.
	attach := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if verbose {
			c.SetLogLevel(cli.LogDebug)
		}
		if attach == nil {
			return nil
		}
		return attach(cmd, args)
	}

	return root.ExecuteContext(ctx)
}
