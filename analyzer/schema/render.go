package schema

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Family is a major.minor grouping of the OpenAPI version with
// mutually exclusive structural rules.
type Family int

const (
	// FamilyA (3.0.x) expresses null with the nullable keyword; no dialect, no webhooks.
	FamilyA Family = iota + 1
	// FamilyB (3.1.x) expresses null with a type union; dialect and webhooks are present.
	FamilyB
)

func (f Family) String() string {
	switch f {
	case FamilyA:
		return "3.0"
	case FamilyB:
		return "3.1"
	}
	return "unknown"
}

// FamilyOf maps a target version such as "3.0.3" or "3.1.0" to its family.
func FamilyOf(version string) (Family, error) {
	canonical := "v" + version
	if !semver.IsValid(canonical) {
		return 0, fmt.Errorf("invalid openapi version %q", version)
	}
	switch semver.MajorMinor(canonical) {
	case "v3.0":
		return FamilyA, nil
	case "v3.1":
		return FamilyB, nil
	}
	return 0, fmt.Errorf("unsupported openapi version %q", version)
}

// Node renders the schema for family as an ordered YAML mapping.
func (s *Schema) Node(family Family) *yaml.Node {
	node := NewMapping()
	if s == nil {
		return node
	}
	if len(s.Verbatim) > 0 {
		return ValueNode(s.Verbatim)
	}
	if s.Ref != "" {
		ref := NewMapping()
		AppendPair(ref, "$ref", NewScalar(s.Ref))
		if !s.Nullable {
			return ref
		}
		if family == FamilyB {
			null := NewMapping()
			AppendPair(null, "type", NewScalar("null"))
			AppendPair(node, "oneOf", NewSequence(ref, null))
			return node
		}
		AppendPair(node, "nullable", NewScalar(true))
		AppendPair(node, "allOf", NewSequence(ref))
		return node
	}

	switch {
	case s.Type != "" && s.Nullable && family == FamilyB:
		AppendPair(node, "type", NewSequence(NewScalar(s.Type), NewScalar("null")))
	case s.Type != "":
		AppendPair(node, "type", NewScalar(s.Type))
	}
	if s.Format != "" {
		AppendPair(node, "format", NewScalar(s.Format))
	}
	if s.Nullable && family == FamilyA {
		AppendPair(node, "nullable", NewScalar(true))
	}
	if s.Description != "" {
		AppendPair(node, "description", NewScalar(s.Description))
	}
	if len(s.Enum) > 0 {
		enum := NewSequence()
		for _, value := range s.Enum {
			enum.Content = append(enum.Content, NewScalar(value))
		}
		if s.Nullable && family == FamilyB {
			enum.Content = append(enum.Content, NewScalar(nil))
		}
		AppendPair(node, "enum", enum)
	}
	if s.Pattern != "" {
		AppendPair(node, "pattern", NewScalar(s.Pattern))
	}
	s.appendBounds(node, family)
	if s.MinLength != nil {
		AppendPair(node, "minLength", NewScalar(*s.MinLength))
	}
	if s.MaxLength != nil {
		AppendPair(node, "maxLength", NewScalar(*s.MaxLength))
	}
	if s.MinItems != nil {
		AppendPair(node, "minItems", NewScalar(*s.MinItems))
	}
	if s.MaxItems != nil {
		AppendPair(node, "maxItems", NewScalar(*s.MaxItems))
	}
	if s.Items != nil {
		AppendPair(node, "items", s.Items.Node(family))
	}
	if len(s.Properties) > 0 {
		props := NewMapping()
		for _, prop := range s.Properties {
			AppendPair(props, prop.Name, prop.Schema.Node(family))
		}
		AppendPair(node, "properties", props)
	}
	if len(s.Required) > 0 {
		required := NewSequence()
		for _, name := range s.Required {
			required.Content = append(required.Content, NewScalar(name))
		}
		AppendPair(node, "required", required)
	}
	if s.AdditionalProperties != nil {
		AppendPair(node, "additionalProperties", NewScalar(*s.AdditionalProperties))
	}
	if len(s.AllOf) > 0 {
		allOf := NewSequence()
		for _, item := range s.AllOf {
			allOf.Content = append(allOf.Content, item.Node(family))
		}
		AppendPair(node, "allOf", allOf)
	}
	if s.Example != nil {
		AppendPair(node, "example", ValueNode(s.Example))
	}
	return node
}

// appendBounds renders numeric bounds; exclusivity is a flag in 3.0 and a number in 3.1.
func (s *Schema) appendBounds(node *yaml.Node, family Family) {
	if s.Minimum != nil {
		if s.ExclusiveMinimum && family == FamilyB {
			AppendPair(node, "exclusiveMinimum", NewScalar(*s.Minimum))
		} else {
			AppendPair(node, "minimum", NewScalar(*s.Minimum))
			if s.ExclusiveMinimum {
				AppendPair(node, "exclusiveMinimum", NewScalar(true))
			}
		}
	}
	if s.Maximum != nil {
		if s.ExclusiveMaximum && family == FamilyB {
			AppendPair(node, "exclusiveMaximum", NewScalar(*s.Maximum))
		} else {
			AppendPair(node, "maximum", NewScalar(*s.Maximum))
			if s.ExclusiveMaximum {
				AppendPair(node, "exclusiveMaximum", NewScalar(true))
			}
		}
	}
}

// NewMapping creates an empty mapping node.
func NewMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// NewSequence creates a sequence node.
func NewSequence(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

// AppendPair appends key: value to a mapping node.
func AppendPair(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, NewScalar(key), value)
}

// NewScalar creates a scalar node with an explicit tag for v.
func NewScalar(v any) *yaml.Node {
	switch actual := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: actual}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(actual)}
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(actual)}
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(actual, 10)}
	case float64:
		if actual == math.Trunc(actual) && math.Abs(actual) < 1e15 {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(actual), 10)}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(actual, 'f', -1, 64)}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(v)}
}

// ValueNode renders an evaluated value (scalars, []any, graph.Pairs, map[string]any) as YAML.
func ValueNode(v any) *yaml.Node {
	switch actual := v.(type) {
	case graph.Pairs:
		node := NewMapping()
		for _, pair := range actual {
			AppendPair(node, pair.Key, ValueNode(pair.Value))
		}
		return node
	case []any:
		node := NewSequence()
		for _, item := range actual {
			node.Content = append(node.Content, ValueNode(item))
		}
		return node
	case map[string]any:
		node := NewMapping()
		for _, key := range sortedKeys(actual) {
			AppendPair(node, key, ValueNode(actual[key]))
		}
		return node
	case *yaml.Node:
		return actual
	}
	return NewScalar(v)
}
