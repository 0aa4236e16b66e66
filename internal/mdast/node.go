// Package mdast models the markdown syntax tree handed to the image rewrite:
// a generic node-kind/children schema in the shape of unist/mdast, so trees
// produced by remark can be read and written unchanged.
package mdast

import (
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/bytedance/sonic"
)

// Node types the rewrite cares about. Any other string is a valid type too.
const (
	TypeRoot      = "root"
	TypeParagraph = "paragraph"
	TypeText      = "text"
	TypeImage     = "image"
	TypeLink      = "link"
	TypeHTML      = "html"
)

// SkipAll can be returned by a Visit callback to stop the traversal early.
// Visit itself then returns nil.
var SkipAll = errors.New("skip all remaining nodes")

// Node is one node of the tree. Fields the rewrite does not know about
// (position, data, depth, ...) are kept in Rest and written back as they came.
type Node struct {
	Type     string
	Children []*Node

	// URL is set on resource nodes (image, link, definition).
	URL string
	// Alt and Title are optional on images; nil means absent or null.
	Alt   *string
	Title *string
	// Value holds the literal of text-like nodes (text, html, code, ...).
	Value string

	Rest map[string]any
}

// Visit calls fn for every node of the given type below and including root,
// depth-first and in document order. An empty typ matches every node.
// The first error returned by fn stops the walk and is returned, except for
// SkipAll which stops the walk and yields nil.
func Visit(root *Node, typ string, fn func(*Node) error) error {
	err := walk(root, typ, fn)
	if errors.Is(err, SkipAll) {
		return nil
	}
	return err
}

func walk(n *Node, typ string, fn func(*Node) error) error {
	if n == nil {
		return nil
	}
	if typ == "" || n.Type == typ {
		if err := fn(n); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := walk(c, typ, fn); err != nil {
			return err
		}
	}
	return nil
}

// AppendChild adds c to the end of n's children.
func (n *Node) AppendChild(c *Node) {
	n.Children = append(n.Children, c)
}

// literalTypes always serialise a value, even an empty one.
var literalTypes = map[string]bool{
	"text": true, "html": true, "code": true, "inlineCode": true,
	"yaml": true, "toml": true, "math": true, "inlineMath": true,
}

// resourceTypes always serialise a url, even an empty one.
var resourceTypes = map[string]bool{
	"image": true, "link": true, "definition": true,
}

var knownKeys = []string{"type", "children", "url", "alt", "title", "value"}

// nullableKeys are the optional fields remark writes as null when absent.
// A null one stays in Rest so that it is written back unchanged.
var nullableKeys = map[string]bool{"alt": true, "title": true}

// MarshalJSON writes the node with its preserved unknown fields.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Rest)+len(knownKeys))
	maps.Copy(out, n.Rest)

	out["type"] = n.Type
	if n.Children != nil {
		out["children"] = n.Children
	}
	if n.URL != "" || resourceTypes[n.Type] {
		out["url"] = n.URL
	}
	if n.Alt != nil {
		out["alt"] = *n.Alt
	}
	if n.Title != nil {
		out["title"] = *n.Title
	}
	if n.Value != "" || literalTypes[n.Type] {
		out["value"] = n.Value
	}
	return sonic.ConfigStd.Marshal(out)
}

// UnmarshalJSON reads a node, keeping fields it does not model in Rest.
func (n *Node) UnmarshalJSON(data []byte) error {
	var known struct {
		Type     string  `json:"type"`
		Children []*Node `json:"children"`
		URL      string  `json:"url"`
		Alt      *string `json:"alt"`
		Title    *string `json:"title"`
		Value    string  `json:"value"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &known); err != nil {
		return err
	}
	if known.Type == "" {
		return fmt.Errorf("mdast: node without type")
	}

	var rest map[string]any
	if err := sonic.ConfigStd.Unmarshal(data, &rest); err != nil {
		return err
	}
	for _, k := range knownKeys {
		if v, ok := rest[k]; ok && v == nil && nullableKeys[k] {
			continue
		}
		delete(rest, k)
	}
	if len(rest) == 0 {
		rest = nil
	}

	*n = Node{
		Type:     known.Type,
		Children: known.Children,
		URL:      known.URL,
		Alt:      known.Alt,
		Title:    known.Title,
		Value:    known.Value,
		Rest:     rest,
	}
	return nil
}

// Decode reads a JSON encoded tree.
func Decode(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading tree: %w", err)
	}
	var root Node
	if err := sonic.ConfigStd.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding tree: %w", err)
	}
	return &root, nil
}

// Encode writes root as indented JSON followed by a newline.
func Encode(w io.Writer, root *Node) error {
	data, err := sonic.ConfigStd.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tree: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing tree: %w", err)
	}
	return nil
}
