package main

import (
	"github.com/aretw0/concierge/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted runs",
	Long:  `List, inspect, and remove the runs kept in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all runs with their outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListRuns(cmd.Context(), sessionOptions(cmd))
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Inspect the state of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := sessionOptions(cmd)
		opts.Transcript, _ = cmd.Flags().GetBool("transcript")
		return cli.InspectRun(cmd.Context(), opts, args[0])
	},
}

// inspectCmd is a shortcut for 'session inspect'.
var inspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Inspect the state of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  sessionInspectCmd.RunE,
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Remove one or more runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RemoveRuns(cmd.Context(), sessionOptions(cmd), args)
	},
}

func sessionOptions(cmd *cobra.Command) cli.SessionOptions {
	path, _ := configFlags(cmd)
	return cli.SessionOptions{ConfigPath: path, Out: cmd.OutOrStdout()}
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	rootCmd.AddCommand(inspectCmd)

	for _, cmd := range []*cobra.Command{sessionInspectCmd, inspectCmd} {
		cmd.Flags().Bool("transcript", false, "Print the visible conversation instead of the raw state")
	}
}
