package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aellingwood/mdenhance/internal/config"
	"github.com/aellingwood/mdenhance/internal/enhance"
	"github.com/aellingwood/mdenhance/internal/markdown"
)

// app bundles what every command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	rewriter *enhance.Rewriter
}

// loadApp reads .env, the config file named by --config and the flag
// overrides, then sets up logging and the rewriter. Commands that print
// results on stdout pass dataOnStdout so that logs go to stderr only.
func loadApp(cmd *cobra.Command, dataOnStdout bool, overrides map[string]any) (*app, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = map[string]any{}
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		overrides["verbose"] = true
	}
	if err := cfg.WithOverrides(overrides).Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}

	var stdout io.Writer = cmd.OutOrStdout()
	if dataOnStdout {
		stdout = cmd.ErrOrStderr()
	}
	log := cfg.Logging.PrepareTo(stdout, cmd.ErrOrStderr())

	naming, err := enhance.ParseNaming(cfg.Identifiers)
	if err != nil {
		return nil, err
	}
	rw, err := enhance.NewRewriter(&cfg.Enhance,
		enhance.WithLogger(log),
		enhance.WithNaming(naming),
	)
	if err != nil {
		return nil, err
	}
	log.Debug("configuration loaded", zap.String("path", path))
	return &app{cfg: cfg, log: log, rewriter: rw}, nil
}

func (a *app) renderer() *markdown.Renderer {
	return markdown.NewRenderer(a.rewriter, markdown.Options{
		TOC:            a.cfg.Markdown.TOC,
		HighlightStyle: a.cfg.Markdown.HighlightStyle,
	}, a.log)
}
