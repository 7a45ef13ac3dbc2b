package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/monopub/pkg/publish"
	"github.com/matzehuels/monopub/pkg/workspace"
)

// snapshotCommand creates the snapshot command.
func (c *CLI) snapshotCommand() *cobra.Command {
	var flags publishFlags

	cmd := &cobra.Command{
		Use:   "snapshot [path]",
		Short: "Publish a commit-stamped pre-release of every package",
		Long: `Publish a commit-stamped pre-release of every package.

Each child package is versioned as <version>-<commit>, using the short hash
of the current git HEAD, and internal dependency requests are pointed at
those versions. The packages are then published under the "next" dist-tag
and every package.json is restored afterwards.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSnapshot(cmd.Context(), targetPath(args), flags)
		},
	}
	flags.register(cmd, publish.SnapshotTag)
	return cmd
}

func (c *CLI) runSnapshot(ctx context.Context, path string, flags publishFlags) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	env, err := c.loadEnvironment(ctx, path, flags.registry)
	if err != nil {
		return err
	}
	wctx, err := loadWorkspace(ctx, path)
	if err != nil {
		return err
	}

	client := env.client()
	defer client.Close()

	p := publish.New(logger, client, c.runner(logger), publish.Options{
		RegistryURL:  env.RegistryURL,
		Tag:          flags.tag,
		Contents:     pick(flags.contents, env.Config.Contents),
		DryRun:       flags.dryRun,
		GlobalConfig: env.GlobalConfig,
		UserConfig:   env.UserConfig,
	})
	results, err := p.Snapshot(ctx, wctx.Root.Dir, workspace.Children(wctx))
	printResults(results, err)
	if err == nil {
		prog.done("Snapshot finished")
	}
	return err
}
