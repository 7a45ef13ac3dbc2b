package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/monopub/pkg/release"
)

// versionCommand creates the version command.
func (c *CLI) versionCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "version [path]",
		Short: "Bump the workspace version and align every package with it",
		Long: `Bump the workspace version and align every package with it.

"npm version <target> --no-git-tag-version" runs in the root package. Every
member that has a version then takes the new root version, and requests
between members in dependencies, devDependencies and peerDependencies become
"^<version>". No git commit or tag is created.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := release.ParseTarget(target)
			if err != nil {
				return err
			}
			return c.runVersion(cmd.Context(), targetPath(args), t)
		},
	}
	cmd.Flags().StringVar(&target, "target", string(release.Patch), "version component to bump: patch, minor or major")
	cmd.RegisterFlagCompletionFunc("target", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(release.Targets))
		for i, t := range release.Targets {
			names[i] = string(t)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func (c *CLI) runVersion(ctx context.Context, path string, target release.Target) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	wctx, err := loadWorkspace(ctx, path)
	if err != nil {
		return err
	}
	result, err := release.NewVersioner(logger, c.runner(logger)).Bump(ctx, wctx, target)
	if result != nil {
		printWritten(wctx.Root.Dir, result.Written)
	}
	if err != nil {
		return err
	}
	printSuccess("%s is now at %s", wctx.Root.DisplayName, result.Version)
	prog.done("Version bumped")
	return nil
}

// linkCommand creates the link command.
func (c *CLI) linkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "link [path]",
		Short: "Join the repositories in a directory into one workspace",
		Long: `Join the repositories in a directory into one workspace.

Every subdirectory with a package.json becomes part of a generated root
package.json; members of nested workspaces are included through their
workspace patterns. Their yarn.lock files are concatenated, and requests
for local packages are rewritten to "^<local version>" so that installing
from the root links them together.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLink(cmd.Context(), targetPath(args))
		},
	}
}

func (c *CLI) runLink(ctx context.Context, path string) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	result, err := release.Link(logger, path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(result.Root)
	for _, ws := range result.Workspaces {
		printDetail("%s", ws)
	}
	printFile(relTo(dir, result.Root))
	if result.LockFile != "" {
		printFile(relTo(dir, result.LockFile))
	}
	printWritten(dir, result.Written)
	prog.done(fmt.Sprintf("Linked %d locations", len(result.Workspaces)))
	return nil
}

func printWritten(root string, paths []string) {
	for _, p := range paths {
		printFile(relTo(root, p))
	}
}

// relTo returns p relative to root when possible.
func relTo(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil {
		return rel
	}
	return p
}
