package cmd

import (
	"fmt"
	"strconv"

	"github.com/BioHazard786/Warpdrop/meet/internal/layout"
	"github.com/BioHazard786/Warpdrop/meet/internal/ui"
	"github.com/spf13/cobra"
)

var flagPortrait bool

var gridCmd = &cobra.Command{
	Use:   "grid <tiles>",
	Short: "Print the grid layout for a number of tiles",
	Long: `Print the column count and per-tile spans the call screen uses.

Examples:
  meet grid 5
  meet grid 5 --portrait`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("tile count must be a non-negative integer, got %q", args[0])
		}

		g := layout.Compute(n, !flagPortrait)
		fmt.Println(ui.GridView(g))

		tile := g.TileMax(layout.DefaultContainer)
		ui.PrintInfof("Largest tile: %.1f%% x %.1f%% of the viewport", tile.Width, tile.Height)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gridCmd)

	gridCmd.Flags().BoolVarP(&flagPortrait, "portrait", "P", false, "Lay out for a portrait container")
}
