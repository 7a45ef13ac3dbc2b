package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/monopub/pkg/cache"
	"github.com/matzehuels/monopub/pkg/registry"
	"github.com/matzehuels/monopub/pkg/upgrade"
	"github.com/matzehuels/monopub/pkg/workspace"
)

// redisPrefix namespaces dist-tag entries in a shared Redis.
const redisPrefix = appName + ":"

type upgradeFlags struct {
	dryRun   bool
	registry string
	tag      string
	prefix   string
	cacheTTL time.Duration
	cacheURL string
}

// upgradeCommand creates the upgrade command.
func (c *CLI) upgradeCommand() *cobra.Command {
	var flags upgradeFlags

	cmd := &cobra.Command{
		Use:   "upgrade [path]",
		Short: "Upgrade external dependencies to their latest versions",
		Long: `Upgrade external dependencies to their latest versions.

The dist-tag of every external dependency of the workspace is looked up in
the registry and matching requests in dependencies and devDependencies are
rewritten, keeping a "~" prefix and using "^" otherwise. Requests on
internal packages are synchronized to the packages' current versions.

Local requests (file:, link:, workspace:), numeric pins such as
"@types/node": "18", and names pinned in monopub.toml are left alone.

Dist-tag lookups can be cached with --cache-ttl, on disk or in Redis with
--cache-url.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUpgrade(cmd.Context(), targetPath(args), flags, cmd.Flags().Changed("cache-ttl"))
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the changes without writing package.json files")
	cmd.Flags().StringVar(&flags.registry, "registry", "", "registry URL (default from monopub.toml, .npmrc or the public registry)")
	cmd.Flags().StringVar(&flags.tag, "tag", upgrade.DefaultTag, "dist-tag to upgrade to")
	cmd.Flags().StringVar(&flags.prefix, "prefix", "", "only upgrade dependencies whose name starts with prefix")
	cmd.Flags().DurationVar(&flags.cacheTTL, "cache-ttl", 0, "cache dist-tag lookups for this long (0 disables)")
	cmd.Flags().StringVar(&flags.cacheURL, "cache-url", "", "redis URL for a shared dist-tag cache (default: on disk)")

	return cmd
}

func (c *CLI) runUpgrade(ctx context.Context, path string, flags upgradeFlags, ttlSet bool) error {
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

	ttl := flags.cacheTTL
	if !ttlSet {
		if ttl, err = env.Config.CacheTTL(); err != nil {
			return err
		}
	}
	tags, closeCache, err := c.distTags(ctx, client, ttl, pick(flags.cacheURL, env.Config.Cache.URL))
	if err != nil {
		return err
	}
	defer closeCache()

	u := upgrade.New(logger, tags, upgrade.Options{
		Tag:         flags.tag,
		DryRun:      flags.dryRun,
		Prefix:      flags.prefix,
		NumericPins: env.Config.NumericPins,
		Pinned:      env.Config.PinnedPackages(),
	})
	report, err := u.Upgrade(ctx, workspace.All(wctx))
	if err != nil {
		return err
	}

	printReport(report, wctx.Root.Dir, flags.dryRun)
	prog.done(fmt.Sprintf("Upgrade finished, %d change(s)", len(report.Changes)))
	return nil
}

// distTags returns the dist-tag source for upgrade: the client itself, or
// the client behind a file or Redis cache when ttl is positive.
func (c *CLI) distTags(ctx context.Context, client *registry.Client, ttl time.Duration, url string) (registry.DistTagFetcher, func(), error) {
	if ttl <= 0 {
		return client, func() {}, nil
	}

	var (
		store cache.Cache
		err   error
	)
	if url != "" {
		store, err = cache.NewRedisCache(ctx, url, redisPrefix)
	} else {
		var dir string
		if dir, err = c.cacheDir(); err == nil {
			store, err = cache.NewFileCache(dir)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open dist-tag cache: %w", err)
	}
	loggerFromContext(ctx).Debug("dist-tag cache", "ttl", ttl, "redis", url != "")
	return registry.NewCachedTags(client, store, ttl), func() { store.Close() }, nil
}

// printReport prints the upgrade report followed by the written files.
func printReport(report *upgrade.Report, root string, dryRun bool) {
	for _, line := range report.Format(styleReplacement) {
		printLine(line)
	}
	if dryRun {
		if !report.Empty() {
			printWarning("Dry run, no files written")
		}
		return
	}
	printWritten(root, report.Written)
}

// changeStyle colours a report line by how far the version moves.
func changeStyle(ct upgrade.ChangeType) (lipgloss.Style, bool) {
	switch ct {
	case upgrade.ChangeMajor:
		return styleChangeMajor, true
	case upgrade.ChangeMinor:
		return styleChangeMinor, true
	case upgrade.ChangePatch:
		return styleChangePatch, true
	case upgrade.ChangePrerelease:
		return styleChangePrerelease, true
	}
	return lipgloss.Style{}, false
}

func styleReplacement(rep upgrade.Replacement, line string) string {
	if style, ok := changeStyle(rep.ChangeType); ok {
		return style.Render(line)
	}
	return line
}
