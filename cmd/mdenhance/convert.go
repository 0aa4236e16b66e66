package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aellingwood/mdenhance/internal/build"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.md>",
	Short: "Convert one markdown page",
	Long:  "Convert renders a single markdown page to a Svelte component, on stdout unless --output is given.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := loadApp(cmd, output == "", nil)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		page, err := a.renderer().Render(raw)
		if err != nil {
			return fmt.Errorf("converting %s: %w", args[0], err)
		}

		if output == "" {
			_, err = cmd.OutOrStdout().Write(page)
			return err
		}
		return build.WriteFile(filepath.Dir(output), filepath.Base(output), page)
	},
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "write the component to this file")

	rootCmd.AddCommand(convertCmd)
}
