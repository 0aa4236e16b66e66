package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aellingwood/mdenhance/internal/markdown"
	"github.com/aellingwood/mdenhance/internal/mdast"
)

var treeCmd = &cobra.Command{
	Use:   "tree [file]",
	Short: "Rewrite the images of a JSON markdown tree",
	Long: `Tree reads a markdown syntax tree as JSON from file or stdin, rewrites
its relative images and prints the resulting tree. With --markdown the input
is a markdown page that is parsed first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd, true, nil)
		if err != nil {
			return err
		}

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var tree *mdast.Node
		if fromMarkdown, _ := cmd.Flags().GetBool("markdown"); fromMarkdown {
			raw, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			_, body, err := markdown.ParseFrontmatter(raw)
			if err != nil {
				return err
			}
			tree = markdown.ToMDAST(body)
		} else if tree, err = mdast.Decode(in); err != nil {
			return err
		}

		if err := a.rewriter.Rewrite(tree); err != nil {
			return err
		}
		return mdast.Encode(cmd.OutOrStdout(), tree)
	},
}

func init() {
	treeCmd.Flags().Bool("markdown", false, "parse the input as a markdown page")

	rootCmd.AddCommand(treeCmd)
}
