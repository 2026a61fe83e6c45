package cmd

import (
	"fmt"

	"github.com/BioHazard786/Warpdrop/meet/internal/journal"
	"github.com/BioHazard786/Warpdrop/meet/internal/ui"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal <file>",
	Short: "Print a recorded call journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := journal.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		fmt.Println(ui.JournalView(entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
}
