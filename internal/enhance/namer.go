package enhance

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
)

// Naming selects how import identifiers are generated.
type Naming string

const (
	// NamingCounter numbers images in document order: _img0, _img1, ...
	NamingCounter Naming = "counter"
	// NamingRandom appends random hex digits: _img3f9c...
	NamingRandom Naming = "random"
	// NamingSlug derives the name from the file: _img_hero_shot_0.
	NamingSlug Naming = "slug"
)

// ParseNaming converts a configuration string into a Naming.
func ParseNaming(s string) (Naming, error) {
	switch n := Naming(s); n {
	case NamingCounter, NamingRandom, NamingSlug:
		return n, nil
	case "":
		return NamingCounter, nil
	default:
		return "", fmt.Errorf("unknown identifier naming %q (want counter, random or slug)", s)
	}
}

// Namer hands out identifiers for one document. Names are distinct within
// the document; a Namer is not shared between documents.
type Namer interface {
	Name(imagePath string) string
}

// NewNamer returns a fresh Namer for one document pass.
func NewNamer(n Naming) (Namer, error) {
	switch n {
	case NamingCounter, "":
		return &counterNamer{}, nil
	case NamingRandom:
		return randomNamer{}, nil
	case NamingSlug:
		return &slugNamer{}, nil
	default:
		return nil, fmt.Errorf("unknown identifier naming %q", n)
	}
}

type counterNamer struct{ next int }

func (c *counterNamer) Name(string) string {
	name := fmt.Sprintf("_img%d", c.next)
	c.next++
	return name
}

// randomNamer keeps 64 bits of a v4 UUID. Collisions within one document
// are possible in theory and ignored.
type randomNamer struct{}

func (randomNamer) Name(string) string {
	id := uuid.New()
	return fmt.Sprintf("_img%x", id[:8])
}

type slugNamer struct{ next int }

func (s *slugNamer) Name(imagePath string) string {
	base := path.Base(imagePath)
	base = strings.TrimSuffix(base, path.Ext(base))
	stem := strings.ReplaceAll(slug.Make(norm.NFC.String(base)), "-", "_")

	var name string
	if stem == "" {
		name = fmt.Sprintf("_img_%d", s.next)
	} else {
		name = fmt.Sprintf("_img_%s_%d", stem, s.next)
	}
	s.next++
	return name
}
