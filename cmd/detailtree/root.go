package main

import (
	"fmt"
	"os"

	"github.com/aretw0/detailtree/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "detailtree",
	Short: "detailtree shows entities as editable detail trees",
	Long: `detailtree turns an entity and its owned objects into a flat list of rows
driven by layout templates, with expansion, lazy rows and ghost fields.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the template documents")
	rootCmd.PersistentFlags().String("templates", "", "YAML template file (overrides --dir)")
	rootCmd.PersistentFlags().String("data", "", "YAML fixture with the classes and entities")
	rootCmd.PersistentFlags().String("view", "", "View name used for preferences")
	rootCmd.PersistentFlags().Int64("root", 0, "Root entity id (default: first root in the data)")
	rootCmd.PersistentFlags().String("layout", "", "Layout name (default: default)")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for view preferences and locks")
	rootCmd.PersistentFlags().Bool("debug", false, "Log lifecycle events to stderr")
}

// options reads the persistent flags.
func options(cmd *cobra.Command) cli.Options {
	flags := cmd.Flags()
	var opts cli.Options
	opts.Dir, _ = flags.GetString("dir")
	opts.Templates, _ = flags.GetString("templates")
	opts.Data, _ = flags.GetString("data")
	opts.View, _ = flags.GetString("view")
	opts.Root, _ = flags.GetInt64("root")
	opts.Layout, _ = flags.GetString("layout")
	opts.RedisAddr, _ = flags.GetString("redis")
	opts.Debug, _ = flags.GetBool("debug")
	return opts
}
