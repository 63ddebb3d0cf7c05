package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/inference-sim/hostsim/sim/level"
)

var (
	levelsCatalog string // Catalog to list or export; built-in when empty
	exportPath    string // Destination for levels export; stdout when empty
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Inspect level catalogs",
}

var levelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the levels of a catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalogFor(levelsCatalog)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderCatalog(c))
		return nil
	},
}

var levelsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a catalog as YAML, a starting point for custom levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalogFor(levelsCatalog)
		if err != nil {
			return err
		}
		var w io.Writer = cmd.OutOrStdout()
		if exportPath != "" {
			f, err := os.Create(exportPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", exportPath, err)
			}
			defer f.Close()
			w = f
		}
		return c.Encode(w)
	},
}

func catalogFor(path string) (*level.Catalog, error) {
	if path == "" {
		return level.Builtin(), nil
	}
	return level.LoadCatalog(path)
}

func renderCatalog(c *level.Catalog) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Title", "Servers", "Points", "Duration", "Requests", "Handled", "Avg resp").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for i, l := range c.Levels {
		t.Row(
			fmt.Sprintf("%d", i+1),
			l.Title,
			fmt.Sprintf("%d", l.AvailableServers),
			fmt.Sprintf("%d", l.UpgradePoints),
			l.Duration().String(),
			fmt.Sprintf("~%.0f", l.ExpectedRequests()),
			fmt.Sprintf(">= %.0f%%", l.RequiredHandledRequests*100),
			fmt.Sprintf("<= %.1fs", l.RequiredAvgResponseTime),
		)
	}
	return t.Render()
}

func init() {
	levelsCmd.PersistentFlags().StringVar(&levelsCatalog, "catalog", "", "YAML level catalog (built-in campaign when empty)")
	levelsExportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "Output file (stdout when empty)")
	levelsCmd.AddCommand(levelsListCmd, levelsExportCmd)
	rootCmd.AddCommand(levelsCmd)
}
