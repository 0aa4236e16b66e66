package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/aellingwood/mdenhance/internal/mdast"
)

// mdastTypes names goldmark kinds the way mdast does. Kinds not listed get
// their goldmark name with a lower-case first letter.
var mdastTypes = map[ast.NodeKind]string{
	ast.KindDocument:        mdast.TypeRoot,
	ast.KindParagraph:       mdast.TypeParagraph,
	ast.KindTextBlock:       mdast.TypeParagraph,
	ast.KindText:            mdast.TypeText,
	ast.KindString:          mdast.TypeText,
	ast.KindImage:           mdast.TypeImage,
	ast.KindLink:            mdast.TypeLink,
	ast.KindAutoLink:        mdast.TypeLink,
	ast.KindHTMLBlock:       mdast.TypeHTML,
	ast.KindRawHTML:         mdast.TypeHTML,
	ast.KindCodeSpan:        "inlineCode",
	ast.KindCodeBlock:       "code",
	ast.KindFencedCodeBlock: "code",
	ast.KindListItem:        "listItem",
	ast.KindThematicBreak:   "thematicBreak",
}

// Mirror is an mdast view of a goldmark document. The rewrite runs on Tree;
// Apply then carries its changes back into the goldmark AST.
type Mirror struct {
	Tree *mdast.Node

	doc    ast.Node
	origin map[*mdast.Node]ast.Node
	values map[*mdast.Node]string
}

// NewMirror builds the mdast view of doc. source is the text doc was parsed
// from.
func NewMirror(doc ast.Node, source []byte) *Mirror {
	m := &Mirror{
		doc:    doc,
		origin: make(map[*mdast.Node]ast.Node),
		values: make(map[*mdast.Node]string),
	}
	m.Tree = m.mirror(doc, source)
	return m
}

// ToMDAST parses a markdown body into an mdast tree.
func ToMDAST(body []byte) *mdast.Node {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(body))
	return NewMirror(doc, body).Tree
}

func (m *Mirror) mirror(n ast.Node, source []byte) *mdast.Node {
	out := &mdast.Node{Type: mdastType(n)}
	m.origin[out] = n

	switch v := n.(type) {
	case *ast.Image:
		alt := altText(v, source)
		out.URL = string(v.Destination)
		out.Alt = &alt
		out.Title = optional(v.Title)
		// mdast images are leaves; the alt text lives in Alt.
		return out
	case *ast.Link:
		out.URL = string(v.Destination)
		out.Title = optional(v.Title)
	case *ast.AutoLink:
		out.URL = string(v.URL(source))
	case *ast.Text:
		out.Value = string(v.Segment.Value(source))
	case *ast.String:
		out.Value = string(v.Value)
	case *ast.CodeSpan:
		out.Value = string(inlineText(v, source))
		return out
	case *ast.HTMLBlock:
		out.Value = htmlBlockValue(v, source)
	case *ast.RawHTML:
		out.Value = string(linesValue(v.Segments, source))
	case *ast.FencedCodeBlock:
		out.Value = string(linesValue(v.Lines(), source))
		if lang := v.Language(source); lang != nil {
			out.Rest = map[string]any{"lang": string(lang)}
		}
	case *ast.CodeBlock:
		out.Value = string(linesValue(v.Lines(), source))
	case *ast.Heading:
		out.Rest = map[string]any{"depth": v.Level}
	case *ast.List:
		out.Rest = map[string]any{"ordered": v.IsOrdered()}
	}
	if out.Type == mdast.TypeHTML {
		m.values[out] = out.Value
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out.Children = append(out.Children, m.mirror(c, source))
	}
	return out
}

// Apply writes the changes made to Tree back into the goldmark document:
// rewritten images and html whose value changed become Markup nodes, and
// html appended to the root becomes a trailing MarkupBlock.
func (m *Mirror) Apply() {
	type replacement struct {
		old, new ast.Node
	}
	var swaps []replacement

	_ = mdast.Visit(m.Tree, mdast.TypeHTML, func(n *mdast.Node) error {
		orig, ok := m.origin[n]
		if !ok {
			return nil
		}
		switch orig.(type) {
		case *ast.Image:
			swaps = append(swaps, replacement{orig, NewMarkupInline(n.Value)})
		case *ast.HTMLBlock:
			if n.Value != m.values[n] {
				swaps = append(swaps, replacement{orig, NewMarkupBlock(n.Value)})
			}
		case *ast.RawHTML:
			if n.Value != m.values[n] {
				swaps = append(swaps, replacement{orig, NewMarkupInline(n.Value)})
			}
		}
		return nil
	})

	// Swap after the walk so every parent is read from the original tree.
	for _, s := range swaps {
		parent := s.old.Parent()
		parent.ReplaceChild(parent, s.old, s.new)
	}

	for _, c := range m.Tree.Children {
		if _, ok := m.origin[c]; ok || c.Type != mdast.TypeHTML {
			continue
		}
		m.doc.AppendChild(m.doc, NewMarkupBlock(c.Value))
	}
}

func mdastType(n ast.Node) string {
	if t, ok := mdastTypes[n.Kind()]; ok {
		return t
	}
	if e, ok := n.(*ast.Emphasis); ok {
		if e.Level >= 2 {
			return "strong"
		}
		return "emphasis"
	}
	name := n.Kind().String()
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func optional(b []byte) *string {
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}

// altText flattens the inline content of an image into plain text.
func altText(n ast.Node, source []byte) string {
	return string(inlineText(n, source))
}

func inlineText(n ast.Node, source []byte) []byte {
	var buf []byte
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c == n {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			buf = append(buf, v.Segment.Value(source)...)
			if v.SoftLineBreak() {
				buf = append(buf, ' ')
			}
		case *ast.String:
			buf = append(buf, v.Value...)
		}
		return ast.WalkContinue, nil
	})
	return buf
}

func htmlBlockValue(n *ast.HTMLBlock, source []byte) string {
	v := linesValue(n.Lines(), source)
	if n.HasClosure() {
		v = append(v, n.ClosureLine.Value(source)...)
	}
	return string(v)
}

func linesValue(lines *text.Segments, source []byte) []byte {
	var buf []byte
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf = append(buf, seg.Value(source)...)
	}
	return buf
}
