package main

import (
	"errors"
	"strings"

	"github.com/aretw0/concierge/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [request...]",
	Short: "Start a new run for a request",
	Long: `Starts a run with the given request and drives it until it completes or fails.
The request is read from standard input when no arguments are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.RunID, _ = cmd.Flags().GetString("run-id")
		opts.Request = strings.Join(args, " ")
		return cli.Execute(opts)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Answer the approval gate of a pending run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.RunID = args[0]
		opts.Approve, _ = cmd.Flags().GetBool("approve")
		opts.Deny, _ = cmd.Flags().GetString("deny")
		if cmd.Flags().Changed("deny") && opts.Deny == "" {
			return errors.New("--deny needs a reason")
		}
		return cli.Resume(opts)
	},
}

var continueCmd = &cobra.Command{
	Use:   "continue <run-id> [message...]",
	Short: "Send a follow-up message to a completed run",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.RunID = args[0]
		opts.Request = strings.Join(args[1:], " ")
		return cli.Continue(opts)
	},
}

func runOptions(cmd *cobra.Command) cli.RunOptions {
	path, debug := configFlags(cmd)
	opts := cli.RunOptions{ConfigPath: path, Debug: debug}
	opts.JSON, _ = cmd.Flags().GetBool("json")
	opts.Headless, _ = cmd.Flags().GetBool("headless")
	opts.AutoApprove, _ = cmd.Flags().GetBool("yes")
	opts.Conversation, _ = cmd.Flags().GetBool("chat")
	return opts
}

func addDriveFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	cmd.Flags().Bool("headless", false, "Run in headless mode (no prompts, gates are denied)")
	cmd.Flags().BoolP("yes", "y", false, "Approve every gate without asking")
	cmd.Flags().Bool("chat", false, "Keep reading follow-up messages after each answer")
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(continueCmd)

	addDriveFlags(runCmd)
	addDriveFlags(resumeCmd)
	addDriveFlags(continueCmd)

	runCmd.Flags().String("run-id", "", "Name the run instead of generating an id")
	resumeCmd.Flags().Bool("approve", false, "Approve the pending action")
	resumeCmd.Flags().String("deny", "", "Deny the pending action with a reason")
	runCmd.MarkFlagsMutuallyExclusive("yes", "headless")
}
