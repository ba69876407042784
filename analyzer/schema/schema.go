// Package schema holds the version-neutral schema model shared by the composer and
// the document aggregator, and renders it for a target version family.
package schema

import (
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// JSON schema primitive type names.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Schema is a version-neutral schema fragment. Nullable is rendered per version family.
type Schema struct {
	Ref                  string
	Type                 string
	Format               string
	Nullable             bool
	Description          string
	Enum                 []any
	Pattern              string
	Minimum              *float64
	Maximum              *float64
	ExclusiveMinimum     bool
	ExclusiveMaximum     bool
	MinLength            *int
	MaxLength            *int
	MinItems             *int
	MaxItems             *int
	Properties           []*Property // declaration order
	Required             []string
	Items                *Schema
	AllOf                []*Schema
	AdditionalProperties *bool
	Example              any
	// Verbatim is a user-declared schema rendered exactly as written.
	Verbatim graph.Pairs
	// LowConfidence marks schemas built from ambiguous facts; no example is synthesized.
	LowConfidence bool
}

// Property is one named object property.
type Property struct {
	Name   string
	Schema *Schema
}

// Object creates an empty object schema.
func Object() *Schema {
	return &Schema{Type: TypeObject}
}

// ArrayOf creates an array schema.
func ArrayOf(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

// RefTo creates a reference marker to a component schema.
func RefTo(name string) *Schema {
	return &Schema{Ref: ComponentRef(name)}
}

// ComponentRef returns the JSON pointer of a component schema.
func ComponentRef(name string) string {
	return "#/components/schemas/" + name
}

// Property returns the named property, or nil.
func (s *Schema) Property(name string) *Schema {
	for _, prop := range s.Properties {
		if prop.Name == name {
			return prop.Schema
		}
	}
	return nil
}

// SetProperty appends or replaces a property, keeping the first insertion position.
func (s *Schema) SetProperty(name string, value *Schema) {
	for _, prop := range s.Properties {
		if prop.Name == name {
			prop.Schema = value
			return
		}
	}
	s.Properties = append(s.Properties, &Property{Name: name, Schema: value})
}

// AddRequired marks name as required once.
func (s *Schema) AddRequired(name string) {
	for _, candidate := range s.Required {
		if candidate == name {
			return
		}
	}
	s.Required = append(s.Required, name)
}

// IsRequired reports whether name is in the required set.
func (s *Schema) IsRequired(name string) bool {
	for _, candidate := range s.Required {
		if candidate == name {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the schema is unconstrained.
func (s *Schema) IsEmpty() bool {
	return s == nil || (s.Ref == "" && s.Type == "" && s.Format == "" && len(s.Enum) == 0 && s.Pattern == "" &&
		s.Minimum == nil && s.Maximum == nil && s.MinLength == nil && s.MaxLength == nil &&
		s.MinItems == nil && s.MaxItems == nil && len(s.Properties) == 0 && s.Items == nil &&
		len(s.AllOf) == 0 && len(s.Verbatim) == 0 && s.AdditionalProperties == nil)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
