package php

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// parseClassDeclaration extracts a class into a graph.Unit
func parseClassDeclaration(node *sitter.Node, src []byte, aFile *graph.File) *graph.Unit {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	shortName := nameNode.Content(src)
	scope := &scope{namespace: aFile.Namespace, imports: aFile.Imports}

	unit := &graph.Unit{
		Name:      graph.ResolveName(shortName, aFile.Namespace, nil),
		ShortName: shortName,
		Path:      aFile.Path,
		Namespace: aFile.Namespace,
		Imports:   aFile.Imports,
		Location:  location(node),
	}

	for j := 0; j < int(node.NamedChildCount()); j++ {
		child := node.NamedChild(j)
		switch child.Type() {
		case "base_clause":
			if names := typeNames(child, src); len(names) > 0 {
				unit.Extends = scope.resolve(names[0])
			}
		case "class_interface_clause":
			for _, name := range typeNames(child, src) {
				unit.Implements = append(unit.Implements, scope.resolve(name))
			}
		case "attribute_list":
			unit.Attributes = append(unit.Attributes, parseAttributes(child, src, scope)...)
		}
	}

	bodyNode := node.ChildByFieldName("body")
	if bodyNode == nil {
		return unit
	}
	for j := 0; j < int(bodyNode.NamedChildCount()); j++ {
		child := bodyNode.NamedChild(j)
		if child.Type() != "method_declaration" {
			continue
		}
		method := parseMethodDeclaration(child, src, scope)
		if method == nil {
			continue
		}
		if strings.EqualFold(method.Name, "__construct") {
			unit.Constructor = method.Parameters
		}
		unit.Methods = append(unit.Methods, method)
	}
	return unit
}

// typeNames returns the class names listed in an extends/implements clause
func typeNames(node *sitter.Node, src []byte) []string {
	var names []string
	for j := 0; j < int(node.NamedChildCount()); j++ {
		child := node.NamedChild(j)
		switch child.Type() {
		case "name", "qualified_name":
			names = append(names, child.Content(src))
		}
	}
	return names
}

// parseMethodDeclaration extracts method name, parameters and returned expressions
func parseMethodDeclaration(node *sitter.Node, src []byte, scope *scope) *graph.Method {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	method := &graph.Method{
		Name:     nameNode.Content(src),
		Location: location(node),
	}
	for j := 0; j < int(node.NamedChildCount()); j++ {
		if node.NamedChild(j).Type() == "static_modifier" {
			method.IsStatic = true
		}
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		method.Parameters = parseParameters(params, src, scope)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		for _, ret := range findReturns(body) {
			if ret.NamedChildCount() == 0 {
				continue
			}
			method.Returns = append(method.Returns, convert(ret.NamedChild(0), src, scope))
		}
	}
	return method
}

// parseParameters extracts formal parameters with types and defaults
func parseParameters(node *sitter.Node, src []byte, scope *scope) []*graph.Parameter {
	var params []*graph.Parameter
	for j := 0; j < int(node.NamedChildCount()); j++ {
		child := node.NamedChild(j)
		switch child.Type() {
		case "simple_parameter", "property_promotion_parameter", "variadic_parameter":
		default:
			continue
		}
		param := &graph.Parameter{Promoted: child.Type() == "property_promotion_parameter"}
		if nameNode := child.ChildByFieldName("name"); nameNode != nil {
			param.Name = strings.TrimPrefix(nameNode.Content(src), "$")
		}
		if typeNode := child.ChildByFieldName("type"); typeNode != nil {
			typeName := typeNode.Content(src)
			if strings.HasPrefix(typeName, "?") || strings.Contains(strings.ToLower(typeName), "null") {
				param.Nullable = true
			}
			typeName = strings.TrimPrefix(typeName, "?")
			if !strings.Contains(typeName, "|") {
				typeName = scope.resolve(typeName)
			}
			param.Type = typeName
		}
		if defaultNode := child.ChildByFieldName("default_value"); defaultNode != nil {
			param.Default = convert(defaultNode, src, scope)
		}
		if param.Name == "" {
			continue
		}
		params = append(params, param)
	}
	return params
}

// findReturns collects return statements of a body, skipping nested closures and classes
func findReturns(node *sitter.Node) []*sitter.Node {
	var returns []*sitter.Node
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for j := 0; j < int(n.NamedChildCount()); j++ {
			child := n.NamedChild(j)
			switch child.Type() {
			case "return_statement":
				returns = append(returns, child)
			case "anonymous_function_creation_expression", "anonymous_function", "arrow_function",
				"class_declaration", "anonymous_class", "function_definition":
			default:
				visit(child)
			}
		}
	}
	visit(node)
	return returns
}

// parseAttributes extracts attributes from an attribute_list
func parseAttributes(node *sitter.Node, src []byte, scope *scope) []*graph.Attribute {
	var attrs []*graph.Attribute
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for j := 0; j < int(n.NamedChildCount()); j++ {
			child := n.NamedChild(j)
			if child.Type() != "attribute" {
				visit(child)
				continue
			}
			attr := &graph.Attribute{}
			for k := 0; k < int(child.NamedChildCount()); k++ {
				part := child.NamedChild(k)
				switch part.Type() {
				case "name", "qualified_name":
					attr.Name = scope.resolve(part.Content(src))
				case "arguments":
					attr.Args = convertArguments(part, src, scope)
				}
			}
			if attr.Name != "" {
				attrs = append(attrs, attr)
			}
		}
	}
	visit(node)
	return attrs
}

// detectCapabilities establishes the capability flag set once per unit
func detectCapabilities(unit *graph.Unit) {
	parent := graph.ShortClassName(unit.Extends)
	switch {
	case parent == "FormRequest" || (parent != "" && strings.HasSuffix(parent, "Request")):
		unit.Capabilities |= graph.CapFormRequest
	case parent == "ResourceCollection" || (parent != "" && strings.HasSuffix(parent, "Collection")):
		unit.Capabilities |= graph.CapResourceCollection
	case parent == "JsonResource" || (parent != "" && strings.HasSuffix(parent, "Resource")):
		unit.Capabilities |= graph.CapJSONResource
	case parent == "Controller" || strings.HasSuffix(unit.ShortName, "Controller"):
		unit.Capabilities |= graph.CapController
	}
	for _, iface := range unit.Implements {
		switch graph.ShortClassName(iface) {
		case "ValidationRule", "Rule", "InvokableRule", "ImplicitRule", "DataAwareRule", "ValidatorAwareRule":
			unit.Capabilities |= graph.CapValidationRule
		}
	}
	for _, method := range unit.Methods {
		switch strings.ToLower(method.Name) {
		case "toschema", "schema", "openapischema":
			if _, ok := method.Return().(*graph.ArrayLiteral); ok {
				unit.Capabilities |= graph.CapSchemaProvider
			}
		case "example":
			if method.Return() != nil {
				unit.Capabilities |= graph.CapExampleProvider
			}
		case "examples":
			if method.Return() != nil {
				unit.Capabilities |= graph.CapExamplesProvider
			}
		}
	}
	if unit.Attribute("Schema", "OpenApiSchema", "OpenAPISchema") != nil {
		unit.Capabilities |= graph.CapOpenAPIAnnotated
	}
}

func location(node *sitter.Node) *graph.Location {
	return &graph.Location{
		Line:  int(node.StartPoint().Row) + 1,
		Start: int(node.StartByte()),
		End:   int(node.EndByte()),
	}
}
