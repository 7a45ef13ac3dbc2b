package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/monopub/pkg/workspace"
)

// listEntry is one row of the list command.
type listEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Private bool   `json:"private"`
	Path    string `json:"path"`
}

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List workspace packages in publish order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList(cmd.Context(), targetPath(args), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON array instead of a table")
	return cmd
}

func (c *CLI) runList(ctx context.Context, path string, asJSON bool) error {
	wctx, err := loadWorkspace(ctx, path)
	if err != nil {
		return err
	}
	entries := listEntries(wctx)

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	printKeyValue("root", wctx.Root.Dir)
	if wctx.Kind == workspace.Multi {
		printKeyValue("source", string(wctx.Source))
	}
	printLine(listTable(entries))
	return nil
}

// listEntries returns the child packages of wctx with paths relative to
// the root directory.
func listEntries(wctx *workspace.Context) []listEntry {
	pkgs := workspace.Children(wctx)
	entries := make([]listEntry, 0, len(pkgs))
	for _, p := range pkgs {
		rel, err := filepath.Rel(wctx.Root.Dir, p.Dir)
		if err != nil {
			rel = p.Dir
		}
		entries = append(entries, listEntry{
			Name:    p.Name(),
			Version: p.Version(),
			Private: p.Manifest.Private(),
			Path:    filepath.ToSlash(rel),
		})
	}
	return entries
}

func listTable(entries []listEntry) string {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		private := ""
		if e.Private {
			private = "yes"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), e.Name, e.Version, private, e.Path})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Package", "Version", "Private", "Path").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader.Padding(0, 1)
			}
			if col == 3 {
				return StyleWarning.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.String()
}
