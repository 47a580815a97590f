package main

import (
	"github.com/aretw0/concierge/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the agent graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the agents, their capabilities and
the approval gates. With --run, the node where that run is parked is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		return cli.PrintGraph(cmd.Context(), sessionOptions(cmd), runID)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Highlight the position of this run")
}
