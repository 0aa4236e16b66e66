package enhance

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/aellingwood/mdenhance/internal/mdast"
)

// schemeRe matches an RFC 3986 scheme prefix such as "https:" or "data:".
var schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)

// IsRelative reports whether an image reference is eligible for rewriting:
// it names no scheme and no host, and has a path.
func IsRelative(ref string) bool {
	switch {
	case ref == "":
		return false
	case strings.HasPrefix(ref, "//"):
		return false
	case strings.HasPrefix(ref, "?"), strings.HasPrefix(ref, "#"):
		return false
	}
	return !schemeRe.MatchString(ref)
}

// StripQuery returns ref without its query and fragment.
func StripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// Rewriter transforms the images of one document at a time. It holds no
// per-document state and may be shared between goroutines.
type Rewriter struct {
	cfg    *Config
	naming Naming
	log    *zap.Logger
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(r *Rewriter) {
		if log != nil {
			r.log = log
		}
	}
}

// WithNaming selects the identifier strategy.
func WithNaming(n Naming) Option {
	return func(r *Rewriter) { r.naming = n }
}

// NewRewriter validates cfg and returns a Rewriter using it.
func NewRewriter(cfg *Config, opts ...Option) (*Rewriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Rewriter{
		cfg:    cfg,
		naming: NamingCounter,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	if _, err := ParseNaming(string(r.naming)); err != nil {
		return nil, err
	}
	r.log = r.log.Named("enhance")
	return r, nil
}

// Rewrite runs a one-off pass over tree with the default options.
func Rewrite(tree *mdast.Node, cfg *Config) error {
	r, err := NewRewriter(cfg)
	if err != nil {
		return err
	}
	return r.Rewrite(tree)
}

// Rewrite transforms every relative image of tree and injects the imports.
// On error, images already transformed stay transformed and no script is
// touched.
func (r *Rewriter) Rewrite(tree *mdast.Node) error {
	buf, err := r.Images(tree)
	if err != nil {
		return err
	}
	r.Scripts(tree, buf)
	return nil
}

// Images is the image pass: each relative image node becomes an html node
// holding an enhanced:img component and contributes one import line to the
// returned buffer. Absolute references are not touched.
func (r *Rewriter) Images(tree *mdast.Node) (*ScriptBuffer, error) {
	namer, err := NewNamer(r.naming)
	if err != nil {
		return nil, err
	}
	buf := &ScriptBuffer{}
	err = mdast.Visit(tree, mdast.TypeImage, func(n *mdast.Node) error {
		return r.image(n, namer, buf)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Rewriter) image(n *mdast.Node, namer Namer, buf *ScriptBuffer) error {
	ref := n.URL
	if !IsRelative(ref) {
		r.log.Debug("skipping absolute image", zap.String("url", ref))
		return nil
	}

	res, err := Resolve(ref, r.cfg)
	if err != nil {
		return err
	}
	p := StripQuery(ref)
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrMalformedReference, ref, err)
	}
	id := namer.Name(decoded)

	alt := ""
	if n.Alt != nil {
		alt = *n.Alt
	}
	n.Type = mdast.TypeHTML
	n.URL = p
	n.Value = Component(id, alt, res)
	buf.Add(ImportLine(id, decoded, res.Directives))

	r.log.Debug("enhanced image",
		zap.String("id", id),
		zap.String("path", decoded),
		zap.String("directives", res.Directives))
	return nil
}

// Scripts is the script pass: the buffered imports go right after the first
// script start tag found in an html node, or into a new script region
// appended to the root when there is none. An empty buffer changes nothing.
func (r *Rewriter) Scripts(tree *mdast.Node, buf *ScriptBuffer) {
	if buf.Len() == 0 {
		return
	}
	imports := buf.String()

	injected := false
	_ = mdast.Visit(tree, mdast.TypeHTML, func(n *mdast.Node) error {
		v, ok := InjectScript(n.Value, imports)
		if !ok {
			return nil
		}
		n.Value = v
		injected = true
		return mdast.SkipAll
	})
	if injected {
		r.log.Debug("injected imports into existing script", zap.Int("imports", buf.Len()))
		return
	}

	tree.AppendChild(&mdast.Node{Type: mdast.TypeHTML, Value: NewScript(imports)})
	r.log.Debug("appended script region", zap.Int("imports", buf.Len()))
}
