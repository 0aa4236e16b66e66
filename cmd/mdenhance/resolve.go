package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aellingwood/mdenhance/internal/enhance"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <reference>",
	Short: "Show what an image reference resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd, true, nil)
		if err != nil {
			return err
		}
		res, err := enhance.Resolve(args[0], &a.cfg.Enhance)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "path:       %s\n", enhance.StripQuery(args[0]))
		fmt.Fprintf(out, "relative:   %t\n", enhance.IsRelative(args[0]))
		fmt.Fprintf(out, "class:      %s\n", res.Class)
		fmt.Fprintf(out, "attributes: %s\n", res.Attributes)
		fmt.Fprintf(out, "directives: %s\n", res.Directives)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
