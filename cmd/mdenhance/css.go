package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aellingwood/mdenhance/internal/markdown"
)

var cssCmd = &cobra.Command{
	Use:   "css",
	Short: "Print the stylesheet for highlighted code",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd, true, nil)
		if err != nil {
			return err
		}
		style, _ := cmd.Flags().GetString("style")
		if style == "" {
			style = a.cfg.Markdown.HighlightStyle
		}
		css, err := markdown.HighlightCSS(style)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), css)
		return err
	},
}

func init() {
	cssCmd.Flags().String("style", "", "chroma style (default from config)")

	rootCmd.AddCommand(cssCmd)
}
