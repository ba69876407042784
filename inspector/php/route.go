package php

import (
	"net/http"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

var routeVerbs = map[string][]string{
	"get":     {http.MethodGet},
	"post":    {http.MethodPost},
	"put":     {http.MethodPut},
	"patch":   {http.MethodPatch},
	"delete":  {http.MethodDelete},
	"options": {http.MethodOptions},
}

// groupContext carries attributes inherited from enclosing Route::group calls
type groupContext struct {
	prefix     string
	controller string
}

// routeCollector interprets static Route facade calls
type routeCollector struct {
	routes []*graph.RouteFact
}

// extractRoutes collects statically declared routes from a routes file
func extractRoutes(root *sitter.Node, src []byte, aFile *graph.File) []*graph.RouteFact {
	scope := &scope{namespace: aFile.Namespace, imports: aFile.Imports}
	var statements []graph.Expr
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		for j := 0; j < int(node.NamedChildCount()); j++ {
			child := node.NamedChild(j)
			switch child.Type() {
			case "expression_statement":
				statements = append(statements, convert(child, src, scope))
			case "namespace_definition":
				if body := child.ChildByFieldName("body"); body != nil {
					walk(body)
				}
			case "compound_statement":
				walk(child)
			}
		}
	}
	walk(root)

	collector := &routeCollector{}
	collector.statements(statements, groupContext{})
	return collector.routes
}

func (c *routeCollector) statements(statements []graph.Expr, ctx groupContext) {
	for _, statement := range statements {
		if call, ok := statement.(*graph.Call); ok {
			c.statement(call, ctx)
		}
	}
}

// statement interprets one fluent Route chain, e.g. Route::prefix('v1')->group(fn)
func (c *routeCollector) statement(call *graph.Call, ctx groupContext) {
	chain := flattenChain(call)
	if len(chain) == 0 || graph.ShortClassName(chain[0].Scope) != "Route" {
		return
	}
	local := ctx
	for i, link := range chain {
		name := strings.ToLower(link.Name)
		switch name {
		case "prefix":
			if value, ok := graph.StringValue(graph.Arg(link.Args, 0, "")); ok {
				local.prefix = joinPath(local.prefix, value)
			}
		case "controller":
			if value, ok := graph.StringValue(graph.Arg(link.Args, 0, "")); ok {
				local.controller = value
			}
		case "group":
			for _, arg := range link.Args {
				switch actual := arg.Value.(type) {
				case *graph.ArrayLiteral:
					local = applyGroupAttributes(local, actual)
				case *graph.Closure:
					c.statements(actual.Statements, local)
				}
			}
		case "match":
			var methods []string
			if list, ok := graph.Evaluate(graph.Arg(link.Args, 0, "")); ok {
				if items, ok := list.([]any); ok {
					for _, item := range items {
						if s, ok := item.(string); ok {
							methods = append(methods, strings.ToUpper(s))
						}
					}
				}
			}
			c.add(methods, local, graph.Arg(link.Args, 1, ""), graph.Arg(link.Args, 2, ""), link.Line)
		case "apiresource", "resource":
			c.resource(local, link, chain[i+1:])
		default:
			if methods, ok := routeVerbs[name]; ok {
				c.add(methods, local, graph.Arg(link.Args, 0, "uri"), graph.Arg(link.Args, 1, "action"), link.Line)
			}
		}
	}
}

func (c *routeCollector) add(methods []string, ctx groupContext, pathExpr, handlerExpr graph.Expr, line int) {
	path, ok := graph.StringValue(pathExpr)
	if !ok {
		return
	}
	handler := resolveHandler(handlerExpr, ctx)
	for _, method := range methods {
		c.routes = append(c.routes, &graph.RouteFact{
			Method:  method,
			Path:    joinPath(ctx.prefix, path),
			Handler: handler,
			Line:    line,
		})
	}
}

// resource expands Route::apiResource into its conventional API actions
func (c *routeCollector) resource(ctx groupContext, link *graph.Call, modifiers []*graph.Call) {
	name, ok := graph.StringValue(graph.Arg(link.Args, 0, ""))
	if !ok {
		return
	}
	controller, ok := graph.StringValue(graph.Arg(link.Args, 1, ""))
	if !ok {
		return
	}
	include := map[string]bool{"index": true, "store": true, "show": true, "update": true, "destroy": true}
	for _, modifier := range modifiers {
		actions := stringList(graph.Arg(modifier.Args, 0, ""))
		switch strings.ToLower(modifier.Name) {
		case "only":
			only := map[string]bool{}
			for _, action := range actions {
				if include[action] {
					only[action] = true
				}
			}
			include = only
		case "except":
			for _, action := range actions {
				delete(include, action)
			}
		}
	}

	var collection, member string
	for _, segment := range strings.Split(name, ".") {
		collection = member + "/" + segment
		member = collection + "/{" + singular(segment) + "}"
	}
	type action struct {
		name, method, path string
	}
	actions := []action{
		{"index", http.MethodGet, collection},
		{"store", http.MethodPost, collection},
		{"show", http.MethodGet, member},
		{"update", http.MethodPut, member},
		{"update", http.MethodPatch, member},
		{"destroy", http.MethodDelete, member},
	}
	for _, item := range actions {
		if !include[item.name] {
			continue
		}
		c.routes = append(c.routes, &graph.RouteFact{
			Method:  item.method,
			Path:    joinPath(ctx.prefix, item.path),
			Handler: controller + "@" + item.name,
			Line:    link.Line,
		})
	}
}

// resolveHandler renders a route action as Controller@method
func resolveHandler(expr graph.Expr, ctx groupContext) string {
	switch actual := expr.(type) {
	case *graph.ArrayLiteral:
		if len(actual.Entries) == 2 {
			class, okClass := graph.StringValue(actual.Entries[0].Value)
			method, okMethod := graph.StringValue(actual.Entries[1].Value)
			if okClass && okMethod {
				return class + "@" + method
			}
		}
	case *graph.ClassRef:
		return actual.Class + "@__invoke"
	case *graph.Literal:
		value, _ := actual.Value.(string)
		if strings.Contains(value, "@") {
			return value
		}
		if ctx.controller != "" && value != "" {
			return ctx.controller + "@" + value
		}
	}
	return ""
}

func applyGroupAttributes(ctx groupContext, attrs *graph.ArrayLiteral) groupContext {
	value, ok := graph.Evaluate(attrs)
	if !ok {
		return ctx
	}
	pairs, ok := value.(graph.Pairs)
	if !ok {
		return ctx
	}
	if prefix, ok := pairs.Get("prefix"); ok {
		if s, ok := prefix.(string); ok {
			ctx.prefix = joinPath(ctx.prefix, s)
		}
	}
	if controller, ok := pairs.Get("controller"); ok {
		if s, ok := controller.(string); ok {
			ctx.controller = s
		}
	}
	return ctx
}

// flattenChain returns the calls of a fluent chain from the innermost receiver outwards
func flattenChain(call *graph.Call) []*graph.Call {
	var chain []*graph.Call
	for current := call; current != nil; {
		chain = append([]*graph.Call{current}, chain...)
		next, ok := current.Receiver.(*graph.Call)
		if !ok {
			break
		}
		current = next
	}
	return chain
}

func stringList(expr graph.Expr) []string {
	value, ok := graph.Evaluate(expr)
	if !ok {
		return nil
	}
	switch actual := value.(type) {
	case string:
		return []string{actual}
	case []any:
		var ret []string
		for _, item := range actual {
			if s, ok := item.(string); ok {
				ret = append(ret, s)
			}
		}
		return ret
	}
	return nil
}

func joinPath(prefix, path string) string {
	joined := strings.Trim(strings.Trim(prefix, "/")+"/"+strings.Trim(path, "/"), "/")
	return "/" + joined
}

func singular(word string) string {
	word = strings.ReplaceAll(word, "-", "_")
	switch {
	case strings.HasSuffix(word, "ies"):
		return strings.TrimSuffix(word, "ies") + "y"
	case strings.HasSuffix(word, "ses"), strings.HasSuffix(word, "xes"):
		return strings.TrimSuffix(word, "es")
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return strings.TrimSuffix(word, "s")
	}
	return word
}
