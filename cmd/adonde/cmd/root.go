package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "adonde",
	Short: "Adonde roommate matching server",
	Long: `Adonde is the roommate matching service: profiles, connection
requests, and real-time chat between matched users.

Use "adonde [command] --help" for more information about a command.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
