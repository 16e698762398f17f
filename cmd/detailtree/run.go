package main

import (
	"github.com/aretw0/detailtree/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Browse and edit the detail view interactively",
	Long: `Opens the detail view of the root entity and reads commands from stdin:

  expand N | collapse N | toggle N | real N | select N
  set N <text> | insert <field> <class> | refresh | quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd)
		opts.Headless, _ = cmd.Flags().GetBool("headless")
		opts.Markdown, _ = cmd.Flags().GetBool("markdown")
		watch, _ := cmd.Flags().GetBool("watch")
		return cli.Execute(opts, watch)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "Plain output without prompts or colors")
	runCmd.Flags().Bool("markdown", false, "Render rows as markdown")
	runCmd.Flags().BoolP("watch", "w", false, "Print row diffs when the template documents change")
}
