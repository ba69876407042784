package php

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// scope resolves class names written in a file
type scope struct {
	namespace string
	imports   map[string]string
}

func (s *scope) resolve(name string) string {
	return graph.ResolveName(name, s.namespace, s.imports)
}

// convert maps a tree-sitter expression node onto the closed graph.Expr variant
func convert(node *sitter.Node, src []byte, scope *scope) graph.Expr {
	if node == nil {
		return nil
	}
	base := graph.Node{Raw: node.Content(src), Line: int(node.StartPoint().Row) + 1}

	switch node.Type() {
	case "parenthesized_expression", "expression_statement", "argument", "default_value":
		if inner := lastNamedChild(node); inner != nil {
			return convert(inner, src, scope)
		}
	case "string", "encapsed_string", "heredoc", "nowdoc":
		return &graph.Literal{Node: base, Kind: graph.LiteralString, Value: unquote(base.Raw)}
	case "integer":
		if value, err := strconv.ParseInt(strings.ReplaceAll(base.Raw, "_", ""), 0, 64); err == nil {
			return &graph.Literal{Node: base, Kind: graph.LiteralInt, Value: value}
		}
	case "float":
		if value, err := strconv.ParseFloat(strings.ReplaceAll(base.Raw, "_", ""), 64); err == nil {
			return &graph.Literal{Node: base, Kind: graph.LiteralFloat, Value: value}
		}
	case "boolean":
		return &graph.Literal{Node: base, Kind: graph.LiteralBool, Value: strings.EqualFold(base.Raw, "true")}
	case "null":
		return &graph.Literal{Node: base, Kind: graph.LiteralNull}
	case "name":
		switch strings.ToLower(base.Raw) {
		case "true", "false":
			return &graph.Literal{Node: base, Kind: graph.LiteralBool, Value: strings.EqualFold(base.Raw, "true")}
		case "null":
			return &graph.Literal{Node: base, Kind: graph.LiteralNull}
		}
	case "unary_op_expression":
		// negative numeric literals
		if inner := lastNamedChild(node); inner != nil && strings.HasPrefix(base.Raw, "-") {
			if lit, ok := convert(inner, src, scope).(*graph.Literal); ok {
				switch v := lit.Value.(type) {
				case int64:
					return &graph.Literal{Node: base, Kind: graph.LiteralInt, Value: -v}
				case float64:
					return &graph.Literal{Node: base, Kind: graph.LiteralFloat, Value: -v}
				}
			}
		}
	case "variable_name":
		return &graph.Variable{Node: base, Name: strings.TrimPrefix(base.Raw, "$")}
	case "member_access_expression", "nullsafe_member_access_expression":
		return &graph.PropertyAccess{
			Node:     base,
			Object:   convert(node.ChildByFieldName("object"), src, scope),
			Name:     contentOf(node.ChildByFieldName("name"), src),
			NullSafe: node.Type() == "nullsafe_member_access_expression" || isNullSafeChain(node, src),
		}
	case "member_call_expression", "nullsafe_member_call_expression":
		return &graph.Call{
			Node:     base,
			Receiver: convert(node.ChildByFieldName("object"), src, scope),
			Name:     contentOf(node.ChildByFieldName("name"), src),
			Args:     convertArguments(node.ChildByFieldName("arguments"), src, scope),
			NullSafe: node.Type() == "nullsafe_member_call_expression",
		}
	case "scoped_call_expression":
		return &graph.Call{
			Node:  base,
			Scope: scope.resolve(contentOf(node.ChildByFieldName("scope"), src)),
			Name:  contentOf(node.ChildByFieldName("name"), src),
			Args:  convertArguments(node.ChildByFieldName("arguments"), src, scope),
		}
	case "function_call_expression":
		return &graph.Call{
			Node: base,
			Name: strings.TrimPrefix(contentOf(node.ChildByFieldName("function"), src), `\`),
			Args: convertArguments(node.ChildByFieldName("arguments"), src, scope),
		}
	case "object_creation_expression":
		ret := &graph.New{Node: base}
		for j := 0; j < int(node.NamedChildCount()); j++ {
			child := node.NamedChild(j)
			switch child.Type() {
			case "name", "qualified_name":
				ret.Class = scope.resolve(child.Content(src))
			case "arguments":
				ret.Args = convertArguments(child, src, scope)
			}
		}
		if ret.Class != "" {
			return ret
		}
	case "class_constant_access_expression":
		if idx := strings.LastIndex(base.Raw, "::"); idx != -1 {
			class := scope.resolve(strings.TrimSpace(base.Raw[:idx]))
			name := strings.TrimSpace(base.Raw[idx+2:])
			if name == "class" {
				return &graph.ClassRef{Node: base, Class: class}
			}
			return &graph.ClassConstant{Node: base, Class: class, Name: name}
		}
	case "array_creation_expression":
		return convertArray(node, src, scope, base)
	case "anonymous_function_creation_expression", "anonymous_function", "arrow_function":
		return convertClosure(node, src, scope, base)
	case "conditional_expression":
		return &graph.Ternary{
			Node: base,
			Cond: convert(node.ChildByFieldName("condition"), src, scope),
			Then: convert(node.ChildByFieldName("body"), src, scope),
			Else: convert(node.ChildByFieldName("alternative"), src, scope),
		}
	case "binary_expression":
		if operator := node.ChildByFieldName("operator"); operator != nil && operator.Type() == "??" {
			return &graph.Coalesce{
				Node:  base,
				Left:  convert(node.ChildByFieldName("left"), src, scope),
				Right: convert(node.ChildByFieldName("right"), src, scope),
			}
		}
	case "cast_expression":
		castType := strings.Trim(contentOf(node.ChildByFieldName("type"), src), "() ")
		return &graph.Cast{
			Node:  base,
			To:    strings.ToLower(castType),
			Value: convert(node.ChildByFieldName("value"), src, scope),
		}
	}
	return &graph.Opaque{Node: base, NodeType: node.Type()}
}

// convertArray maps an array literal, keeping declaration order
func convertArray(node *sitter.Node, src []byte, scope *scope, base graph.Node) graph.Expr {
	ret := &graph.ArrayLiteral{Node: base}
	for j := 0; j < int(node.NamedChildCount()); j++ {
		element := node.NamedChild(j)
		if element.Type() != "array_element_initializer" {
			continue
		}
		entry := graph.ArrayEntry{}
		named := namedChildren(element)
		switch {
		case len(named) == 1 && named[0].Type() == "variadic_unpacking":
			entry.Spread = true
			entry.Value = convert(lastNamedChild(named[0]), src, scope)
		case hasToken(element, "=>") && len(named) >= 2:
			entry.Key = convert(named[0], src, scope)
			entry.Value = convert(named[len(named)-1], src, scope)
		case len(named) >= 1:
			if hasToken(element, "...") {
				entry.Spread = true
			}
			entry.Value = convert(named[len(named)-1], src, scope)
		default:
			continue
		}
		ret.Entries = append(ret.Entries, entry)
	}
	return ret
}

// convertClosure reduces a closure to its returned expression and top level statements
func convertClosure(node *sitter.Node, src []byte, scope *scope, base graph.Node) graph.Expr {
	ret := &graph.Closure{Node: base}
	if params := node.ChildByFieldName("parameters"); params != nil {
		ret.Params = parseParameters(params, src, scope)
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return ret
	}
	if node.Type() == "arrow_function" {
		ret.Body = convert(body, src, scope)
		return ret
	}
	if returns := findReturns(body); len(returns) > 0 {
		if last := returns[len(returns)-1]; last.NamedChildCount() > 0 {
			ret.Body = convert(last.NamedChild(0), src, scope)
		}
	}
	for j := 0; j < int(body.NamedChildCount()); j++ {
		if stmt := body.NamedChild(j); stmt.Type() == "expression_statement" {
			ret.Statements = append(ret.Statements, convert(stmt, src, scope))
		}
	}
	return ret
}

// convertArguments maps call arguments, keeping named argument labels
func convertArguments(node *sitter.Node, src []byte, scope *scope) []graph.Argument {
	if node == nil {
		return nil
	}
	var args []graph.Argument
	for j := 0; j < int(node.NamedChildCount()); j++ {
		child := node.NamedChild(j)
		arg := graph.Argument{}
		if child.Type() == "argument" {
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				arg.Name = nameNode.Content(src)
			}
			arg.Value = convert(lastNamedChild(child), src, scope)
		} else {
			arg.Value = convert(child, src, scope)
		}
		if arg.Value == nil {
			continue
		}
		args = append(args, arg)
	}
	return args
}

// isNullSafeChain reports whether an access sits on top of a nullsafe access (a?->b->c)
func isNullSafeChain(node *sitter.Node, src []byte) bool {
	object := node.ChildByFieldName("object")
	for object != nil {
		switch object.Type() {
		case "nullsafe_member_access_expression", "nullsafe_member_call_expression":
			return true
		case "member_access_expression", "member_call_expression":
			object = object.ChildByFieldName("object")
		default:
			return false
		}
	}
	return false
}

func namedChildren(node *sitter.Node) []*sitter.Node {
	ret := make([]*sitter.Node, 0, node.NamedChildCount())
	for j := 0; j < int(node.NamedChildCount()); j++ {
		child := node.NamedChild(j)
		if child.Type() == "comment" {
			continue
		}
		ret = append(ret, child)
	}
	return ret
}

func lastNamedChild(node *sitter.Node) *sitter.Node {
	children := namedChildren(node)
	if len(children) == 0 {
		return nil
	}
	return children[len(children)-1]
}

func hasToken(node *sitter.Node, token string) bool {
	for j := 0; j < int(node.ChildCount()); j++ {
		child := node.Child(j)
		if !child.IsNamed() && child.Type() == token {
			return true
		}
	}
	return false
}

func contentOf(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(src)
}

// unquote strips PHP string delimiters and resolves the common escapes
func unquote(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 {
		return raw
	}
	switch raw[0] {
	case '\'':
		body := raw[1 : len(raw)-1]
		body = strings.ReplaceAll(body, `\'`, `'`)
		return strings.ReplaceAll(body, `\\`, `\`)
	case '"':
		body := raw[1 : len(raw)-1]
		replacer := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n", `\t`, "\t", `\$`, "$")
		return replacer.Replace(body)
	case '<':
		// heredoc/nowdoc: drop the opening and closing marker lines
		lines := strings.Split(raw, "\n")
		if len(lines) >= 2 {
			return strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return raw
}
