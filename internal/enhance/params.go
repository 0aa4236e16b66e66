package enhance

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Params is an insertion-ordered mapping of scalar values (string, number,
// boolean). Setting an existing key replaces its value in place; the key keeps
// its position. A nil *Params behaves as an empty mapping for reads.
type Params struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewParams returns an empty Params.
func NewParams() *Params {
	return &Params{m: orderedmap.New[string, any]()}
}

// Set stores value under key and returns p for chaining.
func (p *Params) Set(key string, value any) *Params {
	if p.m == nil {
		p.m = orderedmap.New[string, any]()
	}
	p.m.Set(key, value)
	return p
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (any, bool) {
	if p == nil || p.m == nil {
		return nil, false
	}
	return p.m.Get(key)
}

// Len returns the number of keys.
func (p *Params) Len() int {
	if p == nil || p.m == nil {
		return 0
	}
	return p.m.Len()
}

// Keys returns the keys in order.
func (p *Params) Keys() []string {
	keys := make([]string, 0, p.Len())
	_ = p.Each(func(key string, _ any) error {
		keys = append(keys, key)
		return nil
	})
	return keys
}

// Each calls fn for every entry in order and stops at the first error.
func (p *Params) Each(fn func(key string, value any) error) error {
	if p == nil || p.m == nil {
		return nil
	}
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first value that is not a scalar.
func (p *Params) Validate() error {
	return p.Each(func(key string, value any) error {
		if _, err := FormatValue(value); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		return nil
	})
}

// UnmarshalYAML decodes a YAML mapping keeping its key order.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	p.m = orderedmap.New[string, any]()
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping: %w", node.Line, ErrInvalidConfig)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		if valueNode.Kind == yaml.AliasNode {
			valueNode = valueNode.Alias
		}
		if valueNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: key %q must hold a scalar: %w", valueNode.Line, keyNode.Value, ErrInvalidConfig)
		}
		var value any
		if err := valueNode.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", valueNode.Line, err)
		}
		p.m.Set(keyNode.Value, value)
	}
	return nil
}

// MarshalYAML encodes p as a mapping in key order.
func (p *Params) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	err := p.Each(func(key string, value any) error {
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(value); err != nil {
			return err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			valueNode,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// FormatValue renders a scalar the way it appears in attributes and
// directives: strings verbatim, booleans as true/false, integers in decimal,
// floats in their shortest form (exponent notation below 1e-6 and from 1e21),
// nil as null. Anything else is ErrInvalidConfig.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x), 32), nil
	case float64:
		return formatFloat(x, 64), nil
	default:
		return "", fmt.Errorf("%T is not a scalar: %w", v, ErrInvalidConfig)
	}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, bits)
		// 1e-07 -> 1e-7
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
