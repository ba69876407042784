package php

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// Inspector extracts structural facts from PHP source using tree-sitter.
// It never executes source; unsupported expression shapes become graph.Opaque.
type Inspector struct{}

// NewInspector creates a new PHP Inspector
func NewInspector() *Inspector {
	return &Inspector{}
}

// InspectSource parses PHP source and extracts classes and static route declarations.
// A source with syntax errors yields a diag.UnparsableSyntax error.
func (i *Inspector) InspectSource(ctx context.Context, path string, src []byte, kind graph.Kind) (*graph.File, error) {
	hash, err := graph.Hash(src)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(php.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, diag.Wrap(diag.UnparsableSyntax, path, err)
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode.HasError() {
		return nil, diag.New(diag.UnparsableSyntax, path, syntaxErrorMessage(rootNode))
	}

	aFile := &graph.File{
		Path:    path,
		Hash:    hash,
		Kind:    kind,
		Imports: map[string]string{},
	}
	i.processFile(rootNode, src, aFile)
	// route declarations are cheap to scan, so every file is checked regardless of the hint
	aFile.Routes = extractRoutes(rootNode, src, aFile)
	return aFile, nil
}

// processFile collects namespace, imports and class declarations in source order
func (i *Inspector) processFile(rootNode *sitter.Node, src []byte, aFile *graph.File) {
	var classNodes []*sitter.Node
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		for j := 0; j < int(node.NamedChildCount()); j++ {
			child := node.NamedChild(j)
			switch child.Type() {
			case "namespace_definition":
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					aFile.Namespace = nameNode.Content(src)
				}
				if body := child.ChildByFieldName("body"); body != nil {
					walk(body)
				}
			case "namespace_use_declaration":
				for alias, name := range parseUseDeclaration(child, src) {
					aFile.Imports[alias] = name
				}
			case "class_declaration":
				classNodes = append(classNodes, child)
			case "compound_statement":
				walk(child)
			}
		}
	}
	walk(rootNode)

	for _, classNode := range classNodes {
		unit := parseClassDeclaration(classNode, src, aFile)
		if unit == nil {
			continue
		}
		detectCapabilities(unit)
		unit.Index()
		aFile.Units = append(aFile.Units, unit)
	}
}

// syntaxErrorMessage locates the first error node to report a line number
func syntaxErrorMessage(root *sitter.Node) string {
	var found *sitter.Node
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		if found != nil {
			return
		}
		if node.IsError() || node.IsMissing() {
			found = node
			return
		}
		for j := 0; j < int(node.ChildCount()); j++ {
			child := node.Child(j)
			if child.HasError() || child.IsMissing() {
				visit(child)
			}
		}
	}
	visit(root)
	if found == nil {
		return "syntax error"
	}
	return fmt.Sprintf("syntax error at line %d", found.StartPoint().Row+1)
}

// parseUseDeclaration extracts alias -> fully qualified name pairs
func parseUseDeclaration(node *sitter.Node, src []byte) map[string]string {
	imports := make(map[string]string)
	prefix := ""
	var clauses []*sitter.Node
	for j := 0; j < int(node.NamedChildCount()); j++ {
		child := node.NamedChild(j)
		switch child.Type() {
		case "namespace_use_clause":
			clauses = append(clauses, child)
		case "namespace_name", "qualified_name":
			// group use prefix: use App\Models\{User, Post};
			prefix = strings.Trim(child.Content(src), `\`)
		case "namespace_use_group":
			for k := 0; k < int(child.NamedChildCount()); k++ {
				if clause := child.NamedChild(k); clause.Type() == "namespace_use_clause" || clause.Type() == "namespace_use_group_clause" {
					clauses = append(clauses, clause)
				}
			}
		}
	}
	for _, clause := range clauses {
		var names []string
		alias := ""
		if aliasNode := clause.ChildByFieldName("alias"); aliasNode != nil {
			alias = aliasNode.Content(src)
		}
		for k := 0; k < int(clause.NamedChildCount()); k++ {
			child := clause.NamedChild(k)
			switch child.Type() {
			case "name", "qualified_name", "namespace_name":
				names = append(names, strings.Trim(child.Content(src), `\`))
			case "namespace_aliasing_clause":
				if child.NamedChildCount() > 0 {
					alias = child.NamedChild(0).Content(src)
				}
			}
		}
		if len(names) == 0 {
			continue
		}
		fqcn := names[0]
		if alias == "" && len(names) > 1 {
			alias = names[len(names)-1]
		}
		if prefix != "" {
			fqcn = prefix + `\` + fqcn
		}
		if alias == "" {
			alias = graph.ShortClassName(fqcn)
		}
		imports[alias] = fqcn
	}
	return imports
}
