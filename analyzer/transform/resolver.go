package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// UnitLoader resolves a fully qualified class name to its extracted unit.
type UnitLoader interface {
	LoadUnit(ctx context.Context, class string) (*graph.Unit, error)
}

// Result is the resolved output of one resource.
type Result struct {
	Fields []*FieldNode
	Schema *schema.Schema
	// Components holds the schemas referenced by cycle markers, keyed by component name.
	Components map[string]*schema.Schema
	Issues     []*diag.Error
}

// Resolver resolves resource units; it holds no per-resolution state and is safe for concurrent use.
type Resolver struct {
	loader UnitLoader
}

// NewResolver creates a resolver; loader resolves related resources and may be nil.
func NewResolver(loader UnitLoader) *Resolver {
	return &Resolver{loader: loader}
}

// trail is the chain of resources being expanded. Each branch extends its own
// copy, so sibling branches never see each other's visits.
type trail struct {
	class  string
	parent *trail
}

func (t *trail) push(class string) *trail {
	return &trail{class: class, parent: t}
}

func (t *trail) contains(class string) bool {
	for current := t; current != nil; current = current.parent {
		if current.class == class {
			return true
		}
	}
	return false
}

// pass is the state of one Resolve call.
type pass struct {
	ctx        context.Context
	loader     UnitLoader
	arena      map[string]*graph.Unit
	referenced map[string]bool
	components map[string]*schema.Schema
	issues     []*diag.Error
}

// Resolve walks unit's toArray method. Related resources are expanded recursively;
// a resource already on the current expansion path is emitted as a reference marker.
func (r *Resolver) Resolve(ctx context.Context, unit *graph.Unit) *Result {
	p := &pass{
		ctx:        ctx,
		loader:     r.loader,
		arena:      map[string]*graph.Unit{unit.Name: unit},
		referenced: map[string]bool{},
		components: map[string]*schema.Schema{},
	}
	fields := p.fields(unit, (*trail)(nil).push(unit.Name))
	ret := &Result{Fields: fields, Schema: objectOf(fields), Components: p.components, Issues: p.issues}
	if p.referenced[unit.Name] {
		p.components[ComponentName(unit)] = ret.Schema
	}
	return ret
}

// ResourceNamespace is the conventional namespace of API resources.
const ResourceNamespace = `App\Http\Resources\`

// ComponentName is the component schema name of a resource: the class name relative
// to ResourceNamespace, or the fully qualified name elsewhere, with namespace
// separators written as dots. Two classes sharing a short name get distinct names.
func ComponentName(unit *graph.Unit) string {
	name := strings.TrimPrefix(unit.Name, `\`)
	if name == "" {
		return unit.ShortName
	}
	return strings.ReplaceAll(strings.TrimPrefix(name, ResourceNamespace), `\`, ".")
}

func (p *pass) warn(unit *graph.Unit, format string, args ...any) {
	p.issues = append(p.issues, diag.New(diag.UnsupportedConstruct, unit.Path, unit.ShortName+": "+fmt.Sprintf(format, args...)))
}

func (p *pass) fields(unit *graph.Unit, path *trail) []*FieldNode {
	method := unit.Method("toArray")
	if method == nil {
		p.warn(unit, "no toArray method")
		return nil
	}
	array, ok := unwrap(method.Return()).(*graph.ArrayLiteral)
	if !ok {
		p.warn(unit, "toArray does not return an array literal")
		return nil
	}
	return p.entries(unit, array.Entries, Condition{}, path)
}

// entries converts array entries to fields. Merge idioms flatten into the same list.
func (p *pass) entries(unit *graph.Unit, entries []graph.ArrayEntry, inherited Condition, path *trail) []*FieldNode {
	var ret []*FieldNode
	for _, entry := range entries {
		if entry.Key == nil {
			ret = append(ret, p.merge(unit, entry, inherited, path)...)
			continue
		}
		name, ok := graph.StringValue(entry.Key)
		if !ok {
			p.warn(unit, "non constant key %s", entry.Key.Source())
			continue
		}
		node := p.field(unit, name, entry.Value, path)
		if node.Condition.Kind == Unconditional && inherited.Kind != Unconditional {
			node.Condition = inherited
		}
		ret = append(ret, node)
	}
	return ret
}

// merge handles $this->merge(), mergeWhen() and mergeUnless(): the map keys become
// fields of the parent, never a nested object.
func (p *pass) merge(unit *graph.Unit, entry graph.ArrayEntry, inherited Condition, path *trail) []*FieldNode {
	call, ok := entry.Value.(*graph.Call)
	if entry.Spread || !ok || !graph.IsThis(call.Receiver) {
		p.warn(unit, "unsupported positional entry %s", entry.Value.Source())
		return nil
	}
	condition := inherited
	var fieldMap graph.Expr
	switch strings.ToLower(call.Name) {
	case "merge":
		fieldMap = graph.Arg(call.Args, 0, "value")
	case "mergewhen", "mergeunless":
		predicate := graph.Arg(call.Args, 0, "condition")
		condition = Condition{Kind: MergeWhen, Predicate: predicate, Source: classify(predicate)}
		fieldMap = graph.Arg(call.Args, 1, "value")
	default:
		p.warn(unit, "unsupported positional call %s", call.Name)
		return nil
	}
	array, ok := unwrap(fieldMap).(*graph.ArrayLiteral)
	if !ok {
		p.warn(unit, "%s with a non literal map", call.Name)
		return nil
	}
	return p.entries(unit, array.Entries, condition, path)
}

func (p *pass) field(unit *graph.Unit, name string, value graph.Expr, path *trail) *FieldNode {
	node := &FieldNode{Name: name, Value: value}
	inner, preset := conditionOf(node, value)
	if preset != nil {
		node.Schema = preset
		return node
	}
	node.Schema, node.Opaque = p.valueSchema(unit, inner, path)
	if node.Opaque {
		p.warn(unit, "field %s: unsupported expression %s", name, inner.Source())
	}
	return node
}

// conditionOf sets the field condition from a conditional idiom and returns the
// expression producing the value, or a preset schema for counted relations.
func conditionOf(node *FieldNode, value graph.Expr) (graph.Expr, *schema.Schema) {
	if creation, ok := value.(*graph.New); ok {
		// new PostResource($this->whenLoaded('post'))
		if wrapped, ok := graph.Arg(creation.Args, 0, "resource").(*graph.Call); ok && graph.IsThis(wrapped.Receiver) {
			conditionOf(node, wrapped)
		}
		return value, nil
	}
	call, ok := value.(*graph.Call)
	if !ok {
		return value, nil
	}
	if !graph.IsThis(call.Receiver) {
		// PostResource::collection($this->whenLoaded('posts')) and friends
		if wrapped, ok := graph.Arg(call.Args, 0, "resource").(*graph.Call); ok && (call.Scope != "" || call.Receiver == nil) && graph.IsThis(wrapped.Receiver) {
			conditionOf(node, wrapped)
		}
		return value, nil
	}
	switch strings.ToLower(call.Name) {
	case "when", "unless":
		predicate := graph.Arg(call.Args, 0, "condition")
		node.Condition = Condition{Kind: When, Predicate: predicate, Source: classify(predicate)}
		return graph.Arg(call.Args, 1, "value"), nil
	case "whenhas":
		attribute, _ := graph.StringValue(graph.Arg(call.Args, 0, "attribute"))
		node.Condition = Condition{Kind: When, Predicate: call, Source: PredicateData}
		if value := graph.Arg(call.Args, 1, "value"); value != nil {
			return value, nil
		}
		return &graph.PropertyAccess{Node: call.Node, Object: call.Receiver, Name: attribute}, nil
	case "whennotnull":
		node.Condition = Condition{Kind: When, Predicate: call, Source: PredicateData}
		return graph.Arg(call.Args, 0, "value"), nil
	case "whenloaded":
		relation, _ := graph.StringValue(graph.Arg(call.Args, 0, "relationship"))
		node.Condition = Condition{Kind: WhenLoaded, Relation: relation, Source: PredicateData}
		return graph.Arg(call.Args, 1, "value"), nil
	case "whencounted":
		relation, _ := graph.StringValue(graph.Arg(call.Args, 0, "relationship"))
		node.Condition = Condition{Kind: WhenCounted, Relation: relation, Source: PredicateData}
		if value := graph.Arg(call.Args, 1, "value"); value != nil {
			return value, nil
		}
		return nil, &schema.Schema{Type: schema.TypeInteger}
	case "whenaggregated":
		relation, _ := graph.StringValue(graph.Arg(call.Args, 0, "relationship"))
		node.Condition = Condition{Kind: WhenCounted, Relation: relation, Source: PredicateData}
		return nil, &schema.Schema{Type: schema.TypeNumber}
	}
	return value, nil
}

// classify tells whether a predicate reads the request or the resource data.
func classify(predicate graph.Expr) PredicateSource {
	if predicate == nil {
		return PredicateUnknown
	}
	src := predicate.Source()
	for _, marker := range []string{"$request", "request()", "auth()", "Auth::", "Gate::"} {
		if strings.Contains(src, marker) {
			return PredicateRequest
		}
	}
	if strings.Contains(src, "$this") {
		return PredicateData
	}
	return PredicateUnknown
}

// unwrap reduces closures to their returned expression.
func unwrap(e graph.Expr) graph.Expr {
	for {
		closure, ok := e.(*graph.Closure)
		if !ok || closure.Body == nil {
			return e
		}
		e = closure.Body
	}
}

func objectOf(fields []*FieldNode) *schema.Schema {
	ret := schema.Object()
	for _, field := range fields {
		ret.SetProperty(field.Name, field.Schema)
		if field.Required() {
			ret.AddRequired(field.Name)
		}
	}
	return ret
}
