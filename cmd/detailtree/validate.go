package main

import (
	"os"

	"github.com/aretw0/detailtree/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [class]",
	Short: "Check the layouts for consistency",
	Long: `Crawls the layouts reachable from a class (default: the class of the root entity)
and reports unknown fields, missing layouts and parts, bad validators and conditions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		class := ""
		if len(args) > 0 {
			class = args[0]
		}
		return cli.ValidateTemplates(os.Stdout, options(cmd), class)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
