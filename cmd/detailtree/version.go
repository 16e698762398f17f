package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/detailtree"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of detailtree",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("detailtree version %s\n", strings.TrimSpace(detailtree.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
