package enhance

import (
	"strings"

	"golang.org/x/net/html"
)

// ScriptBuffer accumulates import lines during the image pass, in the order
// the images were found. The script pass consumes it once.
type ScriptBuffer struct {
	lines []string
}

// Add appends one import statement.
func (b *ScriptBuffer) Add(line string) {
	b.lines = append(b.lines, line)
}

// Len returns the number of buffered imports.
func (b *ScriptBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.lines)
}

// Lines returns the buffered imports.
func (b *ScriptBuffer) Lines() []string {
	if b == nil {
		return nil
	}
	return b.lines
}

// String joins the imports, each terminated by a newline.
func (b *ScriptBuffer) String() string {
	var sb strings.Builder
	for _, l := range b.Lines() {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ImportLine renders the import binding id to an enhanced image. A bare
// path such as "img.png" gets a "./" prefix so that module resolution looks
// next to the page rather than for a package.
func ImportLine(id, imagePath, directives string) string {
	if !strings.HasPrefix(imagePath, ".") && !strings.HasPrefix(imagePath, "/") {
		imagePath = "./" + imagePath
	}
	return "import " + id + " from '" + imagePath + "?enhanced" + directives + "';"
}

// Component renders the enhanced:img element replacing an image.
func Component(id, alt string, r Resolved) string {
	parts := []string{"<enhanced:img", "src={" + id + "}", `alt="` + alt + `"`}
	if r.Class != "" {
		parts = append(parts, r.Class)
	}
	if r.Attributes != "" {
		parts = append(parts, r.Attributes)
	}
	return strings.Join(parts, " ") + "></enhanced:img>"
}

// NewScript returns a complete script region holding imports.
func NewScript(imports string) string {
	return "<script>\n" + imports + "</script>"
}

// FindScriptOpen returns the offset just past the first <script> start tag in
// s, whatever attributes the tag carries.
func FindScriptOpen(s string) (int, bool) {
	z := html.NewTokenizer(strings.NewReader(s))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return 0, false
		}
		offset += len(z.Raw())
		if tt != html.StartTagToken {
			continue
		}
		if name, _ := z.TagName(); string(name) == "script" {
			return offset, true
		}
	}
}

// InjectScript splices imports right after the first script start tag of
// value. The rest of value is kept as is.
func InjectScript(value, imports string) (string, bool) {
	off, ok := FindScriptOpen(value)
	if !ok {
		return value, false
	}
	return value[:off] + "\n" + imports + value[off:], true
}
