// Package build renders a tree of markdown pages into Svelte components.
// Non-markdown files are copied next to the pages so that relative image
// imports keep resolving.
package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PageRenderer renders one markdown page, frontmatter included.
type PageRenderer interface {
	Render(source []byte) ([]byte, error)
}

// BuildOptions controls the behaviour of the build pipeline.
type BuildOptions struct {
	ContentDir string
	OutputDir  string
	// Extension replaces .md on output files, e.g. ".svelte".
	Extension string
	// Workers bounds concurrent renders; 0 means one per CPU.
	Workers int
}

// BuildResult contains statistics about the completed build.
type BuildResult struct {
	PagesRendered int
	FilesCopied   int
	Duration      time.Duration
	Pages         []string // output paths relative to OutputDir
}

// Builder coordinates discovery, rendering and output.
type Builder struct {
	renderer PageRenderer
	options  BuildOptions
	log      *zap.Logger
}

// source is one file found under the content directory.
type source struct {
	path string
	rel  string
}

// NewBuilder creates a Builder rendering pages with r.
func NewBuilder(r PageRenderer, opts BuildOptions, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Extension == "" {
		opts.Extension = ".svelte"
	}
	return &Builder{renderer: r, options: opts, log: log.Named("build")}
}

// Build executes the pipeline: discover files, copy assets, render pages in
// parallel. A page that fails does not stop the others; every failure is
// reported in the returned error. The result is returned even on error.
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{}
	fail := func(err error) (*BuildResult, error) {
		result.Duration = time.Since(start)
		return result, err
	}

	var skip string
	if b.options.OutputDir != "" {
		abs, err := filepath.Abs(b.options.OutputDir)
		if err != nil {
			return fail(fmt.Errorf("resolving output directory: %w", err))
		}
		skip = abs
	}
	pages, assets, err := discover(b.options.ContentDir, skip)
	if err != nil {
		return fail(err)
	}
	b.log.Debug("discovered content",
		zap.Int("pages", len(pages)),
		zap.Int("assets", len(assets)))

	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := CopyFile(a.path, filepath.Join(b.options.OutputDir, a.rel)); err != nil {
			return fail(err)
		}
		result.FilesCopied++
	}

	var mu sync.Mutex
	err = renderParallel(ctx, pages, b.options.Workers, func(p source) error {
		out, err := b.renderFile(p)
		if err != nil {
			return err
		}
		mu.Lock()
		result.Pages = append(result.Pages, out)
		mu.Unlock()
		return nil
	})
	sort.Strings(result.Pages)
	result.PagesRendered = len(result.Pages)
	result.Duration = time.Since(start)

	if err != nil {
		return result, err
	}
	b.log.Info("build complete",
		zap.Int("pages", result.PagesRendered),
		zap.Int("copied", result.FilesCopied),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (b *Builder) renderFile(p source) (string, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return "", err
	}
	page, err := b.renderer.Render(raw)
	if err != nil {
		return "", err
	}
	out := OutputPath(p.rel, b.options.Extension)
	if err := WriteFile(b.options.OutputDir, out, page); err != nil {
		return "", err
	}
	b.log.Debug("rendered page", zap.String("source", p.rel), zap.String("output", out))
	return out, nil
}

// IsPage reports whether path names a markdown page.
func IsPage(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// discover walks dir and splits its files into markdown pages and assets.
// Hidden files and directories are skipped, and so is the directory whose
// absolute path is skip, which keeps an output tree nested in the content
// tree out of the next build.
func discover(dir, skip string) (pages, assets []source, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && skip != "" {
				if abs, err := filepath.Abs(path); err == nil && abs == skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		s := source{path: path, rel: rel}
		if IsPage(path) {
			pages = append(pages, s)
		} else {
			assets = append(assets, s)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("discovering content in %s: %w", dir, err)
	}
	return pages, assets, nil
}
