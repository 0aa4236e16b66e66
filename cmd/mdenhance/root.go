package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mdenhance",
	Short: "Serve markdown images through enhanced:img",
	Long: "mdenhance turns markdown pages into Svelte components whose local images are\n" +
		"rendered with <enhanced:img> and imported with imagetools directives.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "mdenhance.yaml", "path to config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
