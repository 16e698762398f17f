package main

import (
	"os"

	"github.com/aretw0/detailtree/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [class]",
	Short: "Export the layout visualization",
	Long: `Resolves the layout of a class (default: the class of the root entity) and
outputs a Mermaid diagram (graph TD) of its template nodes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		class := ""
		if len(args) > 0 {
			class = args[0]
		}
		overlay, _ := cmd.Flags().GetBool("overlay")
		return cli.RenderLayout(os.Stdout, options(cmd), class, overlay)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("overlay", false, "Highlight the nodes that produce rows for the root entity")
}
