package main

import (
	"fmt"

	"github.com/aretw0/concierge/internal/agents"
	"github.com/aretw0/concierge/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the agent graph for consistency",
	Long:  `Crawls the graph starting from the primary assistant and reports broken edges or unreachable nodes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := agents.Graph()
		if err != nil {
			return err
		}
		if err := validator.ValidateGraph(g); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
