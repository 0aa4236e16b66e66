package markdown

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fence describes one frontmatter syntax.
type fence struct {
	name      string
	delimiter []byte
	decode    func([]byte, any) error
}

var fences = []fence{
	{name: "YAML", delimiter: []byte("---"), decode: yaml.Unmarshal},
	{name: "TOML", delimiter: []byte("+++"), decode: toml.Unmarshal},
}

// ParseFrontmatter splits a page into its frontmatter and markdown body.
// YAML frontmatter is fenced by --- lines, TOML by +++ lines.
//
// A page without an opening fence has nil metadata and raw as its body.
// An opening fence without a closing one is an error.
func ParseFrontmatter(raw []byte) (metadata map[string]any, body []byte, err error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")

	var f *fence
	for i := range fences {
		if bytes.HasPrefix(trimmed, fences[i].delimiter) {
			f = &fences[i]
			break
		}
	}
	if f == nil {
		return nil, raw, nil
	}

	_, rest, ok := bytes.Cut(trimmed, []byte("\n"))
	if !ok {
		return nil, raw, nil
	}
	block, after, ok := cutFence(rest, f.delimiter)
	if !ok {
		return nil, raw, fmt.Errorf("%s frontmatter: closing %q not found", f.name, f.delimiter)
	}

	metadata = make(map[string]any)
	if len(bytes.TrimSpace(block)) > 0 {
		if err := f.decode(block, &metadata); err != nil {
			return nil, nil, fmt.Errorf("%s frontmatter: %w", f.name, err)
		}
	}
	return metadata, after, nil
}

// cutFence finds the first line of src that starts with delim and returns
// what comes before it and what follows its line.
func cutFence(src, delim []byte) (before, after []byte, found bool) {
	for off := 0; off <= len(src); {
		line := src[off:]
		end := bytes.IndexByte(line, '\n')
		if end >= 0 {
			line = line[:end]
		}
		if bytes.HasPrefix(line, delim) {
			if end < 0 {
				return src[:off], nil, true
			}
			return src[:off], src[off+end+1:], true
		}
		if end < 0 {
			break
		}
		off += end + 1
	}
	return nil, nil, false
}
