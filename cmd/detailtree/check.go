package main

import (
	"os"

	"github.com/aretw0/detailtree/internal/cli"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the root entity against its layout",
	Long:  `Runs the validators named in the layout of the root entity and reports every failing field.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.CheckView(os.Stdout, options(cmd))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
