// Package enhance rewrites markdown image references into enhanced:img
// components. It resolves each image's class, element attributes and
// imagetools directives from the plugin-wide configuration and the
// reference's own query string, and threads the generated imports into the
// document's script region.
package enhance

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrMalformedReference is returned for references that cannot be parsed
	// as a URL with an optional query.
	ErrMalformedReference = errors.New("malformed image reference")
	// ErrInvalidConfig is returned for configuration values that are not
	// scalars.
	ErrInvalidConfig = errors.New("invalid configuration")
)

const classKey = "class"

// ElementAttributes are the query keys rendered on the image element. Every
// other query key is an imagetools directive.
var ElementAttributes = map[string]struct{}{
	"fetchpriority":  {},
	"fetch-priority": {},
	"loading":        {},
	"decoding":       {},
	classKey:         {},
}

// IsElementAttribute reports whether a query key belongs on the element.
func IsElementAttribute(key string) bool {
	_, ok := ElementAttributes[key]
	return ok
}

// Config holds the defaults applied to every image of a document. It is read
// only: resolving an image never changes it.
type Config struct {
	// Attributes are added to every enhanced:img element.
	Attributes *Params `yaml:"attributes,omitempty"`
	// Directives are appended to every import as imagetools directives.
	Directives *Params `yaml:"imagetoolsDirectives,omitempty"`
}

// Validate checks that every configured value is a scalar.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Attributes.Validate(); err != nil {
		return fmt.Errorf("attributes: %w", err)
	}
	if err := c.Directives.Validate(); err != nil {
		return fmt.Errorf("imagetoolsDirectives: %w", err)
	}
	return nil
}

func (c *Config) attributes() *Params {
	if c == nil {
		return nil
	}
	return c.Attributes
}

func (c *Config) directives() *Params {
	if c == nil {
		return nil
	}
	return c.Directives
}

// Resolved is the rendered outcome for one image reference.
type Resolved struct {
	// Class is a complete class="..." fragment, or empty.
	Class string
	// Attributes are key="value" fragments joined by spaces.
	Attributes string
	// Directives are key=value fragments, each prefixed by '&', or empty.
	Directives string
}

type queryPair struct {
	key, value string
}

// Resolve merges cfg with the query of reference. Query values win over
// configured ones; configured keys keep their order and overridden keys stay
// where they were. Classes from the configuration come first, duplicates
// are dropped.
func Resolve(reference string, cfg *Config) (Resolved, error) {
	u, err := url.Parse(reference)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %q: %v", ErrMalformedReference, reference, err)
	}
	query := parseQuery(u.RawQuery)

	configClasses, err := classTokens(cfg.attributes())
	if err != nil {
		return Resolved{}, fmt.Errorf("attributes: %w", err)
	}
	var queryClasses []string
	elements, directives := NewParams(), NewParams()
	for _, p := range query {
		switch {
		case p.key == classKey:
			for _, c := range strings.Split(p.value, ";") {
				if c = strings.TrimSpace(c); c != "" {
					queryClasses = append(queryClasses, c)
				}
			}
		case IsElementAttribute(p.key):
			elements.Set(p.key, p.value)
		default:
			directives.Set(p.key, p.value)
		}
	}

	attrs, err := renderAttributes(merge(cfg.attributes(), elements))
	if err != nil {
		return Resolved{}, fmt.Errorf("attributes: %w", err)
	}
	dirs, err := renderDirectives(merge(cfg.directives(), directives))
	if err != nil {
		return Resolved{}, fmt.Errorf("imagetoolsDirectives: %w", err)
	}

	return Resolved{
		Class:      mergeClasses(configClasses, queryClasses),
		Attributes: attrs,
		Directives: dirs,
	}, nil
}

// parseQuery splits a raw query into ordered pairs. Pairs are separated by
// '&' only, so ';' stays part of a value. Pairs with an empty key are
// dropped and invalid escapes are kept literally.
func parseQuery(raw string) []queryPair {
	var pairs []queryPair
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		key = unescape(key)
		if key == "" {
			continue
		}
		pairs = append(pairs, queryPair{key: key, value: unescape(value)})
	}
	return pairs
}

// unescape decodes a query component: '+' is a space and every valid %XX
// escape is decoded on its own, so an invalid escape stays literal without
// affecting its neighbours.
func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b = append(b, ' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b = append(b, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
		default:
			b = append(b, c)
		}
	}
	return string(b)
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c <= 'F':
		return c - 'A' + 10
	default:
		return c - 'a' + 10
	}
}

func classTokens(attrs *Params) ([]string, error) {
	v, ok := attrs.Get(classKey)
	if !ok || v == nil {
		return nil, nil
	}
	s, err := FormatValue(v)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", classKey, err)
	}
	return strings.Fields(s), nil
}

func mergeClasses(groups ...[]string) string {
	seen := make(map[string]bool)
	var classes []string
	for _, group := range groups {
		for _, c := range group {
			if !seen[c] {
				seen[c] = true
				classes = append(classes, c)
			}
		}
	}
	if len(classes) == 0 {
		return ""
	}
	return `class="` + strings.Join(classes, " ") + `"`
}

// merge builds a new mapping from base without its class key, then applies
// overrides. Neither input is modified.
func merge(base, overrides *Params) *Params {
	out := NewParams()
	_ = base.Each(func(key string, value any) error {
		if key != classKey {
			out.Set(key, value)
		}
		return nil
	})
	_ = overrides.Each(func(key string, value any) error {
		out.Set(key, value)
		return nil
	})
	return out
}

func renderAttributes(p *Params) (string, error) {
	parts := make([]string, 0, p.Len())
	err := p.Each(func(key string, value any) error {
		s, err := FormatValue(value)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		parts = append(parts, key+`="`+s+`"`)
		return nil
	})
	return strings.Join(parts, " "), err
}

func renderDirectives(p *Params) (string, error) {
	var b strings.Builder
	err := p.Each(func(key string, value any) error {
		s, err := FormatValue(value)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		b.WriteString("&" + key + "=" + s)
		return nil
	})
	return b.String(), err
}
