package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/monopub/pkg/dag"
	"github.com/matzehuels/monopub/pkg/workspace"
)

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		format   string
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph [path]",
		Short: "Export the internal dependency graph",
		Long: `Export the internal dependency graph.

Edges point from a package to the workspace packages it depends on.
Private packages are drawn dashed. The graph is written as Graphviz DOT,
or rendered to SVG with --format svg.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "dot" && format != "svg" {
				return fmt.Errorf("unsupported format %q: use dot or svg", format)
			}
			return c.runGraph(cmd.Context(), targetPath(args), format, output, detailed)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include versions in node labels")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, path, format, output string, detailed bool) error {
	wctx, err := loadWorkspace(ctx, path)
	if err != nil {
		return err
	}
	g := workspace.Graph(workspace.Children(wctx))
	loggerFromContext(ctx).Debug("graph", "nodes", g.NodeCount(), "edges", g.EdgeCount())

	data := []byte(dag.ToDOT(g, dag.DOTOptions{Detailed: detailed}))
	if format == "svg" {
		if data, err = dag.RenderSVG(ctx, string(data)); err != nil {
			return err
		}
	}

	if output == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Wrote %d packages, %d edges", g.NodeCount(), g.EdgeCount())
	printFile(output)
	return nil
}
