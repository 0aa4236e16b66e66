package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/aellingwood/mdenhance/internal/enhance"
)

// KindMarkupBlock and KindMarkupInline identify raw markup produced by the
// image rewrite.
var (
	KindMarkupBlock  = ast.NewNodeKind("MarkupBlock")
	KindMarkupInline = ast.NewNodeKind("MarkupInline")
)

// MarkupBlock is block-level markup written to the output as is.
type MarkupBlock struct {
	ast.BaseBlock
	Value string
}

// NewMarkupBlock returns a MarkupBlock holding value.
func NewMarkupBlock(value string) *MarkupBlock {
	return &MarkupBlock{Value: value}
}

// Kind implements ast.Node.
func (n *MarkupBlock) Kind() ast.NodeKind { return KindMarkupBlock }

// Dump implements ast.Node.
func (n *MarkupBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Value": n.Value}, nil)
}

// MarkupInline is inline markup written to the output as is.
type MarkupInline struct {
	ast.BaseInline
	Value string
}

// NewMarkupInline returns a MarkupInline holding value.
func NewMarkupInline(value string) *MarkupInline {
	return &MarkupInline{Value: value}
}

// Kind implements ast.Node.
func (n *MarkupInline) Kind() ast.NodeKind { return KindMarkupInline }

// Dump implements ast.Node.
func (n *MarkupInline) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Value": n.Value}, nil)
}

var rewriteErrorKey = parser.NewContextKey()

// RewriteError returns the error the image rewrite stored in pc, if any.
// goldmark transformers cannot fail, so the error travels in the context.
func RewriteError(pc parser.Context) error {
	if err, ok := pc.Get(rewriteErrorKey).(error); ok {
		return err
	}
	return nil
}

// Extension implements goldmark.Extender. It runs the enhanced image rewrite
// on every parsed document and renders the resulting markup.
type Extension struct {
	rewriter *enhance.Rewriter
	style    string
}

// NewExtension returns an Extension using rw. style names the chroma style
// fenced code is highlighted with; classes are emitted either way.
func NewExtension(rw *enhance.Rewriter, style string) *Extension {
	return &Extension{rewriter: rw, style: style}
}

// Extend registers the transformer and the node renderers.
func (e *Extension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithASTTransformers(
			util.Prioritized(&rewriteTransformer{rewriter: e.rewriter}, 9000),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(&markupRenderer{}, 100),
			util.Prioritized(newCodeRenderer(e.style), 100),
		),
	)
}

type rewriteTransformer struct {
	rewriter *enhance.Rewriter
}

// Transform mirrors doc, rewrites the mirror and applies the result. When
// the rewrite fails doc is left as parsed and the error is put in pc.
func (t *rewriteTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	m := NewMirror(doc, reader.Source())
	if err := t.rewriter.Rewrite(m.Tree); err != nil {
		pc.Set(rewriteErrorKey, err)
		return
	}
	m.Apply()
}

type markupRenderer struct{}

// RegisterFuncs registers the Markup node renderers.
func (r *markupRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMarkupBlock, r.renderBlock)
	reg.Register(KindMarkupInline, r.renderInline)
}

func (r *markupRenderer) renderBlock(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	v := node.(*MarkupBlock).Value
	_, _ = w.WriteString(v)
	if !strings.HasSuffix(v, "\n") {
		_ = w.WriteByte('\n')
	}
	return ast.WalkSkipChildren, nil
}

func (r *markupRenderer) renderInline(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(node.(*MarkupInline).Value)
	}
	return ast.WalkSkipChildren, nil
}
