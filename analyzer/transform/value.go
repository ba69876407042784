package transform

import (
	"errors"
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

var errUnresolvable = errors.New("no unit loader configured")

var dateMethods = map[string]string{
	"toiso8601string":       "date-time",
	"todatetimestring":      "date-time",
	"toatomstring":          "date-time",
	"tojson":                "date-time",
	"torfc3339string":       "date-time",
	"todatestring":          "date",
	"format":                "date-time",
	"diffforhumans":         "",
	"totimestring":          "",
	"toformatteddatestring": "",
}

// valueSchema infers the schema of a value expression; opaque is true when the
// shape is not statically analyzable.
func (p *pass) valueSchema(unit *graph.Unit, e graph.Expr, path *trail) (*schema.Schema, bool) {
	switch actual := unwrap(e).(type) {
	case nil:
		return &schema.Schema{}, false
	case *graph.Literal:
		return literalSchema(actual), false
	case *graph.PropertyAccess:
		ret := propertySchema(actual.Name)
		ret.Nullable = actual.NullSafe
		return ret, false
	case *graph.Call:
		return p.callSchema(unit, actual, path)
	case *graph.New:
		return p.resourceSchema(unit, actual.Class, path, false)
	case *graph.ArrayLiteral:
		if isList(actual) {
			if len(actual.Entries) == 0 {
				return schema.ArrayOf(&schema.Schema{}), false
			}
			items, opaque := p.valueSchema(unit, actual.Entries[0].Value, path)
			return schema.ArrayOf(items), opaque
		}
		return objectOf(p.entries(unit, actual.Entries, Condition{}, path)), false
	case *graph.Cast:
		return castSchema(actual.To), false
	case *graph.Ternary:
		then := actual.Then
		if then == nil {
			then = actual.Cond
		}
		left, leftOpaque := p.valueSchema(unit, then, path)
		right, rightOpaque := p.valueSchema(unit, actual.Else, path)
		return union(left, right), leftOpaque && rightOpaque
	case *graph.Coalesce:
		left, leftOpaque := p.valueSchema(unit, actual.Left, path)
		right, rightOpaque := p.valueSchema(unit, actual.Right, path)
		return union(left, right), leftOpaque && rightOpaque
	}
	return &schema.Schema{}, true
}

func (p *pass) callSchema(unit *graph.Unit, call *graph.Call, path *trail) (*schema.Schema, bool) {
	if call.Scope != "" {
		switch strings.ToLower(call.Name) {
		case "collection":
			items, opaque := p.resourceSchema(unit, call.Scope, path, false)
			return schema.ArrayOf(items), opaque
		case "make":
			return p.resourceSchema(unit, call.Scope, path, false)
		}
		return &schema.Schema{}, true
	}
	if call.Receiver == nil || graph.IsThis(call.Receiver) {
		return &schema.Schema{}, true
	}
	nullable := call.NullSafe
	if access, ok := call.Receiver.(*graph.PropertyAccess); ok && access.NullSafe {
		nullable = true
	}
	name := strings.ToLower(call.Name)
	if format, ok := dateMethods[name]; ok {
		return &schema.Schema{Type: schema.TypeString, Format: format, Nullable: nullable}, false
	}
	switch name {
	case "count":
		return &schema.Schema{Type: schema.TypeInteger, Nullable: nullable}, false
	case "tostring", "value", "label", "name":
		return &schema.Schema{Type: schema.TypeString, Nullable: nullable}, false
	}
	return &schema.Schema{}, true
}

// resourceSchema expands a related resource class, or emits a reference marker when
// the class is already on the current expansion path.
func (p *pass) resourceSchema(unit *graph.Unit, class string, path *trail, inCollection bool) (*schema.Schema, bool) {
	related, err := p.load(class)
	if err != nil {
		p.warn(unit, "related resource %s: %v", class, err)
		return &schema.Schema{}, false
	}
	if related.Has(graph.CapResourceCollection) && !inCollection {
		if collected := p.collected(related); collected != "" {
			items, opaque := p.resourceSchema(unit, collected, path, true)
			return schema.ArrayOf(items), opaque
		}
		return schema.ArrayOf(&schema.Schema{}), false
	}
	if path.contains(related.Name) {
		p.referenced[related.Name] = true
		return schema.RefTo(ComponentName(related)), false
	}
	ret := objectOf(p.fields(related, path.push(related.Name)))
	if p.referenced[related.Name] {
		p.components[ComponentName(related)] = ret
	}
	return ret, false
}

// collected finds the resource a collection wraps, by the XCollection -> XResource convention.
func (p *pass) collected(collection *graph.Unit) string {
	base := strings.TrimSuffix(collection.Name, "Collection")
	if base == collection.Name {
		return ""
	}
	for _, candidate := range []string{base + "Resource", base} {
		if unit, err := p.load(candidate); err == nil && unit.Has(graph.CapJSONResource) {
			return unit.Name
		}
	}
	return ""
}

func (p *pass) load(class string) (*graph.Unit, error) {
	if unit, ok := p.arena[class]; ok {
		return unit, nil
	}
	if p.loader == nil {
		return nil, errUnresolvable
	}
	unit, err := p.loader.LoadUnit(p.ctx, class)
	if err != nil {
		return nil, err
	}
	p.arena[class] = unit
	return unit, nil
}

func literalSchema(literal *graph.Literal) *schema.Schema {
	switch literal.Kind {
	case graph.LiteralString:
		return &schema.Schema{Type: schema.TypeString}
	case graph.LiteralInt:
		return &schema.Schema{Type: schema.TypeInteger}
	case graph.LiteralFloat:
		return &schema.Schema{Type: schema.TypeNumber}
	case graph.LiteralBool:
		return &schema.Schema{Type: schema.TypeBoolean}
	}
	return &schema.Schema{Nullable: true}
}

// propertySchema guesses a model attribute type from its name.
func propertySchema(name string) *schema.Schema {
	name = strings.ToLower(name)
	switch {
	case name == "id" || strings.HasSuffix(name, "_id") || strings.HasSuffix(name, "_count"):
		return &schema.Schema{Type: schema.TypeInteger}
	case strings.HasSuffix(name, "_at"):
		return &schema.Schema{Type: schema.TypeString, Format: "date-time"}
	case name == "email" || strings.HasSuffix(name, "_email"):
		return &schema.Schema{Type: schema.TypeString, Format: "email"}
	case name == "uuid" || strings.HasSuffix(name, "_uuid"):
		return &schema.Schema{Type: schema.TypeString, Format: "uuid"}
	case name == "url" || strings.HasSuffix(name, "_url"):
		return &schema.Schema{Type: schema.TypeString, Format: "uri"}
	case strings.HasPrefix(name, "is_") || strings.HasPrefix(name, "has_") || strings.HasPrefix(name, "can_"):
		return &schema.Schema{Type: schema.TypeBoolean}
	}
	return &schema.Schema{Type: schema.TypeString}
}

func castSchema(to string) *schema.Schema {
	switch to {
	case "int", "integer":
		return &schema.Schema{Type: schema.TypeInteger}
	case "float", "double", "real":
		return &schema.Schema{Type: schema.TypeNumber}
	case "bool", "boolean":
		return &schema.Schema{Type: schema.TypeBoolean}
	case "array":
		return schema.ArrayOf(&schema.Schema{})
	case "object":
		return schema.Object()
	}
	return &schema.Schema{Type: schema.TypeString}
}

// union combines two alternatives: a null side makes the other nullable.
func union(left, right *schema.Schema) *schema.Schema {
	switch {
	case isNull(left):
		ret := *right
		ret.Nullable = true
		return &ret
	case isNull(right):
		ret := *left
		ret.Nullable = true
		return &ret
	case left.Type == right.Type && left.Ref == "" && right.Ref == "":
		ret := *left
		ret.Nullable = left.Nullable || right.Nullable
		return &ret
	}
	return &schema.Schema{}
}

func isNull(s *schema.Schema) bool {
	return s.Nullable && s.Type == "" && s.Ref == "" && s.IsEmpty()
}

func isList(array *graph.ArrayLiteral) bool {
	for _, entry := range array.Entries {
		if entry.Key != nil {
			return false
		}
	}
	return true
}
