package cli

import (
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/monopub/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// The persistent pre-run attaches the logger to the command context. At
// debug level the logger carries a short run id and the observability
// hooks are routed to it, so registry requests and cache lookups show up
// in the log.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "monopub publishes and upgrades npm monorepos",
		Long:         `monopub is a release tool for npm monorepos. It discovers the packages of a workspace, publishes the unpublished ones in dependency order, and upgrades external dependency requests to their latest versions.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := c.Logger
			if logger.GetLevel() <= log.DebugLevel {
				logger = logger.With("run", uuid.NewString()[:8])
				installDebugHooks(logger)
				logger.Debug("starting", "command", cmd.CommandPath(), "version", buildinfo.Version)
			}
			cmd.SetContext(withLogger(cmd.Context(), logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.publishCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.upgradeCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.linkCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
