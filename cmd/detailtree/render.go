package main

import (
	"os"

	"github.com/aretw0/detailtree/internal/cli"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the rows of the detail view once",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd)
		opts.Markdown, _ = cmd.Flags().GetBool("markdown")
		opts.Headless, _ = cmd.Flags().GetBool("plain")
		return cli.RenderOnce(os.Stdout, opts)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().Bool("markdown", false, "Render rows as markdown")
	renderCmd.Flags().Bool("plain", false, "Plain numbered rows without colors")
}
