package document

import (
	"fmt"
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"gopkg.in/yaml.v3"
)

// Validate checks that a rendered document follows exactly one family's idioms:
// 3.0 uses the nullable keyword, no dialect and no webhooks; 3.1 uses type unions,
// a non-empty dialect and a webhooks section.
func Validate(root *yaml.Node, family schema.Family) error {
	v := &validator{family: family}
	v.document(root)
	if len(v.violations) == 0 {
		return nil
	}
	return diag.New(diag.InvalidDocumentShape, "", fmt.Sprintf("%s document: %s", family, strings.Join(v.violations, "; ")))
}

type validator struct {
	family     schema.Family
	violations []string
}

func (v *validator) fail(location, format string, args ...any) {
	v.violations = append(v.violations, location+": "+fmt.Sprintf(format, args...))
}

func (v *validator) document(root *yaml.Node) {
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	dialect := lookup(root, "jsonSchemaDialect")
	webhooks := lookup(root, "webhooks")
	switch v.family {
	case schema.FamilyA:
		if dialect != nil {
			v.fail("jsonSchemaDialect", "must be absent")
		}
		if webhooks != nil {
			v.fail("webhooks", "must be absent")
		}
	case schema.FamilyB:
		if dialect == nil || dialect.Kind != yaml.ScalarNode || dialect.Value == "" {
			v.fail("jsonSchemaDialect", "must be present and non-empty")
		}
		if webhooks == nil || webhooks.Kind != yaml.MappingNode {
			v.fail("webhooks", "must be present")
		}
	}

	if paths := lookup(root, "paths"); paths != nil {
		eachPair(paths, func(path string, item *yaml.Node) {
			eachPair(item, func(method string, operation *yaml.Node) {
				v.operation("paths."+path+"."+method, operation)
			})
		})
	}
	if schemas := lookup(lookup(root, "components"), "schemas"); schemas != nil {
		eachPair(schemas, func(name string, node *yaml.Node) {
			v.schema("components.schemas."+name, node)
		})
	}
}

func (v *validator) operation(location string, operation *yaml.Node) {
	if parameters := lookup(operation, "parameters"); parameters != nil {
		for i, parameter := range parameters.Content {
			v.schema(fmt.Sprintf("%s.parameters[%d].schema", location, i), lookup(parameter, "schema"))
		}
	}
	v.content(location+".requestBody", lookup(lookup(operation, "requestBody"), "content"))
	eachPair(lookup(operation, "responses"), func(status string, response *yaml.Node) {
		v.content(location+".responses."+status, lookup(response, "content"))
	})
}

func (v *validator) content(location string, content *yaml.Node) {
	eachPair(content, func(mediaType string, media *yaml.Node) {
		v.schema(location+"."+mediaType+".schema", lookup(media, "schema"))
	})
}

// schema walks schema keywords only; property names, examples and enum values are data.
func (v *validator) schema(location string, node *yaml.Node) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	eachPair(node, func(key string, value *yaml.Node) {
		at := location + "." + key
		switch key {
		case "nullable":
			if v.family == schema.FamilyB {
				v.fail(at, "nullable keyword is not allowed, use a type union")
			}
		case "type":
			if v.family == schema.FamilyA {
				if value.Kind == yaml.SequenceNode {
					v.fail(at, "type arrays are not allowed, use nullable")
				} else if value.Value == "null" {
					v.fail(at, "null type is not allowed, use nullable")
				}
			}
		case "exclusiveMinimum", "exclusiveMaximum":
			if v.family == schema.FamilyB && value.Tag == "!!bool" {
				v.fail(at, "boolean exclusive bounds are not allowed")
			}
		case "properties", "patternProperties":
			eachPair(value, func(name string, child *yaml.Node) {
				v.schema(at+"."+name, child)
			})
		case "items", "additionalProperties", "not":
			v.schema(at, value)
		case "allOf", "oneOf", "anyOf":
			for i, child := range value.Content {
				v.schema(fmt.Sprintf("%s[%d]", at, i), child)
			}
		}
	})
}

func lookup(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func eachPair(node *yaml.Node, fn func(key string, value *yaml.Node)) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		fn(node.Content[i].Value, node.Content[i+1])
	}
}
