package cmd

import (
	"os"
	"os/signal"

	"github.com/BioHazard786/Warpdrop/meet/internal/ui"
	"github.com/BioHazard786/Warpdrop/meet/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "meet",
	Short:   "Multi-party video calls in the terminal over WebRTC",
	Long:    `Meet joins a room on a signaling relay and sets up a full mesh of WebRTC peer connections with everyone in it. Lost connections are restarted automatically and remote peers are laid out on a responsive grid.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
