// Package markdown turns markdown pages into Svelte components whose local
// images are served through enhanced:img.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
	"go.uber.org/zap"

	"github.com/aellingwood/mdenhance/internal/enhance"
)

// DefaultHighlightStyle is the chroma style used when none is configured.
const DefaultHighlightStyle = "github"

// Options controls page rendering.
type Options struct {
	// TOC exports the heading tree as `toc` from the module script.
	TOC bool
	// HighlightStyle names the chroma style for fenced code.
	HighlightStyle string
}

// TOCEntry is one heading of the exported table of contents.
type TOCEntry struct {
	Title    string     `json:"title"`
	ID       string     `json:"id"`
	Children []TOCEntry `json:"children,omitempty"`
}

// Renderer converts markdown pages into Svelte markup. It is safe for
// concurrent use.
type Renderer struct {
	md   goldmark.Markdown
	opts Options
	log  *zap.Logger
}

// NewRenderer returns a Renderer that rewrites images with rw.
func NewRenderer(rw *enhance.Rewriter, opts Options, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.HighlightStyle == "" {
		opts.HighlightStyle = DefaultHighlightStyle
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
			NewExtension(rw, opts.HighlightStyle),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
	return &Renderer{md: md, opts: opts, log: log.Named("markdown")}
}

// Parse parses a markdown body and runs the image rewrite on it.
func (r *Renderer) Parse(body []byte) (ast.Node, error) {
	pc := parser.NewContext()
	doc := r.md.Parser().Parse(text.NewReader(body), parser.WithContext(pc))
	if err := RewriteError(pc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Render converts a page, frontmatter included, into a Svelte component:
// a module script exporting the metadata (and the table of contents when
// enabled) followed by the rendered body.
func (r *Renderer) Render(source []byte) ([]byte, error) {
	meta, body, err := ParseFrontmatter(source)
	if err != nil {
		return nil, err
	}
	doc, err := r.Parse(body)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := r.writeModule(&out, meta, doc, body); err != nil {
		return nil, err
	}
	if err := r.md.Renderer().Render(&out, body, doc); err != nil {
		return nil, fmt.Errorf("markdown render: %w", err)
	}
	r.log.Debug("rendered page", zap.Int("bytes", out.Len()))
	return out.Bytes(), nil
}

func (r *Renderer) writeModule(out *bytes.Buffer, meta map[string]any, doc ast.Node, body []byte) error {
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := sonic.ConfigStd.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	out.WriteString("<script context=\"module\">\n")
	fmt.Fprintf(out, "\texport const metadata = %s;\n", metaJSON)
	if r.opts.TOC {
		tree, err := toc.Inspect(doc, body)
		if err != nil {
			return fmt.Errorf("toc inspect: %w", err)
		}
		entries := tocEntries(tree.Items)
		if entries == nil {
			entries = []TOCEntry{}
		}
		tocJSON, err := sonic.ConfigStd.Marshal(entries)
		if err != nil {
			return fmt.Errorf("encode toc: %w", err)
		}
		fmt.Fprintf(out, "\texport const toc = %s;\n", tocJSON)
	}
	out.WriteString("</script>\n\n")
	return nil
}

func tocEntries(items toc.Items) []TOCEntry {
	var entries []TOCEntry
	for _, it := range items {
		entries = append(entries, TOCEntry{
			Title:    string(it.Title),
			ID:       string(it.ID),
			Children: tocEntries(it.Items),
		})
	}
	return entries
}
