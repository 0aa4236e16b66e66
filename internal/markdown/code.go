package markdown

import (
	"bytes"
	"fmt"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// Svelte reads braces in markup as expressions, so code renders them as
// character references.
var braceEscaper = [256][]byte{
	'{': []byte("&#123;"),
	'}': []byte("&#125;"),
}

// EscapeBraces replaces { and } in b with HTML character references.
func EscapeBraces(b []byte) []byte {
	if bytes.IndexAny(b, "{}") < 0 {
		return b
	}
	out := make([]byte, 0, len(b)+16)
	for _, c := range b {
		if r := braceEscaper[c]; r != nil {
			out = append(out, r...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// HighlightCSS returns the stylesheet for the chroma classes emitted in
// highlighted code blocks.
func HighlightCSS(style string) (string, error) {
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	var buf bytes.Buffer
	if err := formatter.WriteCSS(&buf, styles.Get(style)); err != nil {
		return "", fmt.Errorf("generate %s CSS: %w", style, err)
	}
	return buf.String(), nil
}

// codeRenderer renders code spans and code blocks with braces escaped.
// Fenced blocks naming a language are highlighted with chroma classes.
type codeRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newCodeRenderer(style string) *codeRenderer {
	return &codeRenderer{
		style:     styles.Get(style),
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
	}
}

// RegisterFuncs registers the code renderers.
func (r *codeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeRenderer) renderCodeSpan(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code>")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString("<code>")
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		var value []byte
		switch t := c.(type) {
		case *ast.Text:
			value = t.Segment.Value(source)
		case *ast.String:
			value = t.Value
		default:
			continue
		}
		if bytes.HasSuffix(value, []byte("\n")) {
			value = append(value[:len(value)-1:len(value)-1], ' ')
		}
		_, _ = w.Write(EscapeBraces(util.EscapeHTML(value)))
	}
	return ast.WalkSkipChildren, nil
}

func (r *codeRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	r.writePlain(w, nil, linesValue(node.Lines(), source))
	return ast.WalkSkipChildren, nil
}

func (r *codeRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	lang := n.Language(source)
	code := linesValue(n.Lines(), source)

	if lang == nil {
		r.writePlain(w, nil, code)
		return ast.WalkSkipChildren, nil
	}
	lexer := lexers.Get(string(lang))
	if lexer == nil {
		r.writePlain(w, lang, code)
		return ast.WalkSkipChildren, nil
	}

	it, err := chroma.Coalesce(lexer).Tokenise(nil, string(code))
	if err != nil {
		return ast.WalkStop, fmt.Errorf("highlight %s: %w", lang, err)
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, it); err != nil {
		return ast.WalkStop, fmt.Errorf("highlight %s: %w", lang, err)
	}
	_, _ = w.Write(EscapeBraces(buf.Bytes()))
	_ = w.WriteByte('\n')
	return ast.WalkSkipChildren, nil
}

func (r *codeRenderer) writePlain(w util.BufWriter, lang, code []byte) {
	_, _ = w.WriteString("<pre><code")
	if lang != nil {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML(lang))
		_, _ = w.WriteString(`"`)
	}
	_, _ = w.WriteString(">")
	_, _ = w.Write(EscapeBraces(util.EscapeHTML(code)))
	_, _ = w.WriteString("</code></pre>\n")
}
