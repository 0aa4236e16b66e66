package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aellingwood/mdenhance/internal/build"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build every page of the content directory",
	Long:  "Build renders every markdown page under the content directory and copies the other files next to them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd, false, buildOverrides(cmd))
		if err != nil {
			return err
		}
		result, err := newBuilder(a).Build(cmd.Context())
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Built %d pages, copied %d files in %s\n",
			result.PagesRendered, result.FilesCopied, result.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	addBuildFlags(buildCmd)

	rootCmd.AddCommand(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().String("content", "", "content directory (default from config)")
	cmd.Flags().StringP("destination", "d", "", "output directory (default from config)")
	cmd.Flags().Int("workers", 0, "concurrent page renders, 0 for one per CPU")
	cmd.Flags().Bool("toc", false, "export a table of contents from every page")
}

// buildOverrides collects the build flags the user actually set.
func buildOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("content") {
		overrides["content"], _ = flags.GetString("content")
	}
	if flags.Changed("destination") {
		overrides["destination"], _ = flags.GetString("destination")
	}
	if flags.Changed("workers") {
		overrides["workers"], _ = flags.GetInt("workers")
	}
	if flags.Changed("toc") {
		overrides["toc"], _ = flags.GetBool("toc")
	}
	if flags.Lookup("debounce") != nil && flags.Changed("debounce") {
		overrides["debounce"], _ = flags.GetDuration("debounce")
	}
	return overrides
}

func newBuilder(a *app) *build.Builder {
	return build.NewBuilder(a.renderer(), build.BuildOptions{
		ContentDir: a.cfg.Build.Content,
		OutputDir:  a.cfg.Build.Destination,
		Extension:  a.cfg.Markdown.Extension,
		Workers:    a.cfg.Build.Workers,
	}, a.log)
}
