package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Concierge finds events, books them in your calendar and registers you",
	Long: `Concierge is an agent orchestration engine. A primary agent delegates to
specialized agents that search events, manage your calendar and fill web
registration forms, pausing for your approval before sensitive actions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (YAML)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

func configFlags(cmd *cobra.Command) (string, bool) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	return path, debug
}
