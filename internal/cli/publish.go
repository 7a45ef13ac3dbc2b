package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/monopub/pkg/publish"
	"github.com/matzehuels/monopub/pkg/workspace"
)

// publishFlags are shared by publish and snapshot.
type publishFlags struct {
	dryRun   bool
	contents string
	registry string
	tag      string
}

func (f *publishFlags) register(cmd *cobra.Command, defaultTag string) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "pass --dry-run to npm publish")
	cmd.Flags().StringVar(&f.contents, "contents", "", `subdirectory to publish, relative to each package (default ".")`)
	cmd.Flags().StringVar(&f.registry, "registry", "", "registry URL (default from monopub.toml, .npmrc or the public registry)")
	cmd.Flags().StringVar(&f.tag, "tag", "", "dist-tag to publish under (default "+defaultTag+")")
}

// publishCommand creates the publish command.
func (c *CLI) publishCommand() *cobra.Command {
	var flags publishFlags

	cmd := &cobra.Command{
		Use:   "publish [path]",
		Short: "Publish unpublished workspace packages in dependency order",
		Long: `Publish unpublished workspace packages in dependency order.

Every child package of the workspace at path is checked against the
registry. Private packages and versions that are already published are
skipped; the rest are published with npm, one at a time, dependencies
first. A failure is reported and the remaining packages are still
attempted.

With --contents, each package publishes a build subdirectory instead. Its
prepare, prepublishOnly and prepack scripts run in the package root first,
and are stripped from the subdirectory manifest for the duration of the
publish.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPublish(cmd.Context(), targetPath(args), flags)
		},
	}
	flags.register(cmd, publish.DefaultTag)
	return cmd
}

func (c *CLI) runPublish(ctx context.Context, path string, flags publishFlags) error {
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
		Tag:          pick(flags.tag, env.Config.Tag),
		Contents:     pick(flags.contents, env.Config.Contents),
		DryRun:       flags.dryRun,
		GlobalConfig: env.GlobalConfig,
		UserConfig:   env.UserConfig,
	})
	results, err := p.Publish(ctx, workspace.Children(wctx))
	printResults(results, err)
	if err == nil {
		prog.done("Publish finished")
	}
	return err
}

// printResults prints the per-state summary of a publish run.
func printResults(results []publish.Result, err error) {
	if len(results) == 0 && err != nil {
		return
	}
	summary := publish.FormatSummary(results)
	if err != nil {
		printError("%s", summary)
		return
	}
	printSuccess("%s", summary)
	for _, r := range results {
		if r.State == publish.Published {
			printDetail("%s@%s", r.Package.Name(), r.Package.Version())
		}
	}
}
