package constraint

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

// Field is the resolved record of one validated field, keyed by its rule name
// (which may use dot notation such as address.city or tags.*).
type Field struct {
	Name   string
	Record *Record
}

// Result holds the fields of a rule set in declaration order.
type Result struct {
	Fields []Field
	Issues []*diag.Error
}

// Resolver resolves rule declarations into constraint records.
type Resolver struct {
	loader UnitLoader
}

// NewResolver creates a resolver; loader may be nil when custom rule classes are not resolvable.
func NewResolver(loader UnitLoader) *Resolver {
	return &Resolver{loader: loader}
}

// ResolveUnit resolves the rules() method of a form request unit.
func (r *Resolver) ResolveUnit(ctx context.Context, unit *graph.Unit) *Result {
	ret := &Result{}
	method := unit.Method("rules")
	if method == nil {
		return ret
	}
	rules, ok := method.Return().(*graph.ArrayLiteral)
	if !ok {
		ret.Issues = append(ret.Issues, diag.New(diag.UnsupportedConstruct, unit.Path, unit.ShortName+"::rules does not return an array literal"))
		return ret
	}
	for _, entry := range rules.Entries {
		name, ok := graph.StringValue(entry.Key)
		if !ok {
			ret.Issues = append(ret.Issues, diag.New(diag.UnsupportedConstruct, unit.Path, "non constant rule key "+sourceOf(entry.Key)))
			continue
		}
		record, issues := r.ResolveField(ctx, entry.Value)
		for _, issue := range issues {
			issue.Path = unit.Path
			issue.Message = fmt.Sprintf("field %s: %s", name, issue.Message)
			ret.Issues = append(ret.Issues, issue)
		}
		ret.Fields = append(ret.Fields, Field{Name: name, Record: record})
	}
	return ret
}

// ResolveField resolves one field's rules: a pipe string, or an array of tokens,
// rule objects and rule builder calls. All parts are combined with Merge.
func (r *Resolver) ResolveField(ctx context.Context, rules graph.Expr) (*Record, []*diag.Error) {
	var parts []*Record
	var issues []*diag.Error
	add := func(record *Record, issue *diag.Error) {
		if record != nil {
			parts = append(parts, record)
		}
		if issue != nil {
			issues = append(issues, issue)
		}
	}
	switch actual := rules.(type) {
	case *graph.Literal:
		value, _ := actual.Value.(string)
		for _, token := range ParseTokens(value) {
			add(FromToken(token))
		}
	case *graph.ArrayLiteral:
		for _, entry := range actual.Entries {
			if literal, ok := entry.Value.(*graph.Literal); ok {
				value, _ := literal.Value.(string)
				if token, ok := ParseToken(value); ok {
					add(FromToken(token))
				}
				continue
			}
			add(r.resolveRule(ctx, entry.Value))
		}
	default:
		add(r.resolveRule(ctx, rules))
	}
	record, conflicts := Merge(parts...)
	return record, append(issues, conflicts...)
}

// resolveRule handles a single non-string rule.
func (r *Resolver) resolveRule(ctx context.Context, rule graph.Expr) (*Record, *diag.Error) {
	switch actual := rule.(type) {
	case *graph.New:
		return r.resolveCustom(ctx, actual.Class, actual.Args)
	case *graph.Call:
		return r.resolveCall(ctx, actual)
	case *graph.Closure:
		return nil, diag.New(diag.UnsupportedConstruct, "", "closure rule ignored")
	}
	return nil, diag.New(diag.UnsupportedConstruct, "", "unsupported rule "+sourceOf(rule))
}

func (r *Resolver) resolveCustom(ctx context.Context, class string, args []graph.Argument) (*Record, *diag.Error) {
	if r.loader == nil {
		return nil, diag.New(diag.UnsupportedConstruct, "", "custom rule "+class+" not resolvable")
	}
	unit, err := r.loader.LoadUnit(ctx, class)
	if err != nil {
		return nil, diag.New(diag.UnsupportedConstruct, "", fmt.Sprintf("custom rule %s: %v", class, err))
	}
	return FromUnit(unit, args)
}

// resolveCall handles Rule::in([...]), Password::min(8)->... chains and static
// constructors of custom rule classes.
func (r *Resolver) resolveCall(ctx context.Context, call *graph.Call) (*Record, *diag.Error) {
	chain := callChain(call)
	root := chain[0]
	switch graph.ShortClassName(root.Scope) {
	case "Rule":
		return ruleFacade(root)
	case "Password":
		return passwordRecord(chain), nil
	case "":
		return nil, diag.New(diag.UnsupportedConstruct, "", "unsupported rule call "+call.Name)
	}
	if strings.EqualFold(root.Name, "make") || strings.EqualFold(root.Name, "new") {
		return r.resolveCustom(ctx, root.Scope, root.Args)
	}
	return nil, diag.New(diag.UnsupportedConstruct, "", "unsupported rule call "+root.Scope+"::"+root.Name)
}

func ruleFacade(call *graph.Call) (*Record, *diag.Error) {
	ret := NewRecord()
	switch strings.ToLower(call.Name) {
	case "in":
		ret.Enum = []string{}
		for _, arg := range call.Args {
			value, ok := graph.Evaluate(arg.Value)
			if !ok {
				return nil, diag.New(diag.UnsupportedConstruct, "", "non constant Rule::in values")
			}
			if list, ok := value.([]any); ok {
				for _, item := range list {
					ret.Enum = append(ret.Enum, fmt.Sprint(item))
				}
				continue
			}
			ret.Enum = append(ret.Enum, fmt.Sprint(value))
		}
	case "file", "imagefile", "dimensions":
		ret.Kind = schema.TypeString
		ret.Format = "binary"
	case "enum":
		return nil, diag.New(diag.UnsupportedConstruct, "", "Rule::enum cases are not resolved")
	case "notin", "unique", "exists", "requiredif", "requiredunless", "prohibitedif", "excludeif":
	default:
		return nil, diag.New(diag.UnsupportedConstruct, "", "unsupported rule Rule::"+call.Name)
	}
	return ret, nil
}

// callChain unwinds a fluent chain into call order, root first.
func callChain(call *graph.Call) []*graph.Call {
	var ret []*graph.Call
	for current := call; current != nil; {
		ret = append([]*graph.Call{current}, ret...)
		next, ok := current.Receiver.(*graph.Call)
		if !ok {
			break
		}
		current = next
	}
	return ret
}

// Schema nests the fields into an object schema, expanding dot notation:
// a.b becomes a nested property and a.* the item schema of an array.
func (res *Result) Schema() *schema.Schema {
	root := schema.Object()
	for _, field := range res.Fields {
		segments := strings.Split(field.Name, ".")
		insert(root, segments, field.Record.Schema(), field.Record.Required)
	}
	return root
}

func insert(node *schema.Schema, segments []string, leaf *schema.Schema, required bool) {
	segment := segments[0]
	last := len(segments) == 1
	if segment == "*" {
		node.Type = schema.TypeArray
		if last {
			node.Items = mergeLeaf(node.Items, leaf)
			return
		}
		if node.Items == nil {
			node.Items = schema.Object()
		}
		insert(node.Items, segments[1:], leaf, required)
		return
	}
	asObject(node)
	if last {
		node.SetProperty(segment, mergeLeaf(node.Property(segment), leaf))
		if required {
			node.AddRequired(segment)
		}
		return
	}
	child := node.Property(segment)
	if child == nil {
		child = &schema.Schema{}
		node.SetProperty(segment, child)
	}
	insert(child, segments[1:], leaf, required)
}

// asObject turns an untyped or associative-array node into an object.
func asObject(node *schema.Schema) {
	if node.Type == "" || (node.Type == schema.TypeArray && node.Items == nil) {
		node.Type = schema.TypeObject
		node.MinItems, node.MaxItems = nil, nil
	}
}

// mergeLeaf applies a field's own constraints to a node that may already carry nested children.
func mergeLeaf(existing, leaf *schema.Schema) *schema.Schema {
	if existing == nil {
		return leaf
	}
	leaf.Properties = existing.Properties
	leaf.Required = existing.Required
	if leaf.Items == nil {
		leaf.Items = existing.Items
	}
	if len(leaf.Properties) > 0 {
		asObject(leaf)
	} else if leaf.Items != nil {
		leaf.Type = schema.TypeArray
	}
	return leaf
}

func sourceOf(e graph.Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.Source()
}
