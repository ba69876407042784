package document

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/composer"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"gopkg.in/yaml.v3"
)

const contentType = "application/json"

var methodOrder = map[string]int{
	http.MethodGet:     0,
	http.MethodPut:     1,
	http.MethodPost:    2,
	http.MethodDelete:  3,
	http.MethodOptions: 4,
	http.MethodHead:    5,
	http.MethodPatch:   6,
	http.MethodTrace:   7,
}

// render builds the ordered document tree; fragments are sorted by route key.
func render(family schema.Family, options Options, fragments []*composer.Fragment) *yaml.Node {
	root := schema.NewMapping()
	schema.AppendPair(root, "openapi", schema.NewScalar(options.Version))
	schema.AppendPair(root, "info", renderInfo(options.Info))
	if family == schema.FamilyB {
		schema.AppendPair(root, "jsonSchemaDialect", schema.NewScalar(options.Dialect))
	}
	if len(options.Servers) > 0 {
		servers := schema.NewSequence()
		for _, server := range options.Servers {
			node := schema.NewMapping()
			schema.AppendPair(node, "url", schema.NewScalar(server.URL))
			if server.Description != "" {
				schema.AppendPair(node, "description", schema.NewScalar(server.Description))
			}
			servers.Content = append(servers.Content, node)
		}
		schema.AppendPair(root, "servers", servers)
	}
	schema.AppendPair(root, "paths", renderPaths(family, fragments))

	components := map[string]*schema.Schema{}
	for _, fragment := range fragments {
		for name, component := range fragment.Components {
			components[name] = component
		}
	}
	if len(components) > 0 {
		names := make([]string, 0, len(components))
		for name := range components {
			names = append(names, name)
		}
		sort.Strings(names)
		schemas := schema.NewMapping()
		for _, name := range names {
			schema.AppendPair(schemas, name, components[name].Node(family))
		}
		section := schema.NewMapping()
		schema.AppendPair(section, "schemas", schemas)
		schema.AppendPair(root, "components", section)
	}
	if len(options.Security) > 0 {
		security := schema.NewSequence()
		for _, requirement := range options.Security {
			security.Content = append(security.Content, schema.ValueNode(requirementValue(requirement)))
		}
		schema.AppendPair(root, "security", security)
	}
	if family == schema.FamilyB {
		schema.AppendPair(root, "webhooks", schema.NewMapping())
	}
	return root
}

func renderInfo(info Info) *yaml.Node {
	node := schema.NewMapping()
	schema.AppendPair(node, "title", schema.NewScalar(info.Title))
	schema.AppendPair(node, "version", schema.NewScalar(info.Version))
	if info.Description != "" {
		schema.AppendPair(node, "description", schema.NewScalar(info.Description))
	}
	return node
}

func renderPaths(family schema.Family, fragments []*composer.Fragment) *yaml.Node {
	byPath := map[string][]*composer.Fragment{}
	var paths []string
	for _, fragment := range fragments {
		if _, ok := byPath[fragment.Path]; !ok {
			paths = append(paths, fragment.Path)
		}
		byPath[fragment.Path] = append(byPath[fragment.Path], fragment)
	}
	sort.Strings(paths)

	node := schema.NewMapping()
	for _, path := range paths {
		operations := byPath[path]
		sort.SliceStable(operations, func(i, j int) bool {
			return rank(operations[i].Method) < rank(operations[j].Method)
		})
		item := schema.NewMapping()
		for _, fragment := range operations {
			schema.AppendPair(item, strings.ToLower(fragment.Method), renderOperation(family, fragment))
		}
		schema.AppendPair(node, path, item)
	}
	return node
}

func rank(method string) int {
	if order, ok := methodOrder[method]; ok {
		return order
	}
	return len(methodOrder)
}

func renderOperation(family schema.Family, fragment *composer.Fragment) *yaml.Node {
	node := schema.NewMapping()
	if fragment.OperationID != "" {
		schema.AppendPair(node, "operationId", schema.NewScalar(fragment.OperationID))
	}
	if len(fragment.Tags) > 0 {
		tags := schema.NewSequence()
		for _, tag := range fragment.Tags {
			tags.Content = append(tags.Content, schema.NewScalar(tag))
		}
		schema.AppendPair(node, "tags", tags)
	}
	if len(fragment.Parameters) > 0 {
		parameters := schema.NewSequence()
		for _, parameter := range fragment.Parameters {
			item := schema.NewMapping()
			schema.AppendPair(item, "name", schema.NewScalar(parameter.Name))
			schema.AppendPair(item, "in", schema.NewScalar(parameter.In))
			schema.AppendPair(item, "required", schema.NewScalar(parameter.Required))
			schema.AppendPair(item, "schema", parameter.Schema.Node(family))
			parameters.Content = append(parameters.Content, item)
		}
		schema.AppendPair(node, "parameters", parameters)
	}
	if fragment.RequestSchema != nil {
		media := schema.NewMapping()
		schema.AppendPair(media, "schema", fragment.RequestSchema.Node(family))
		if fragment.RequestExample != nil {
			schema.AppendPair(media, "example", schema.ValueNode(fragment.RequestExample))
		}
		body := schema.NewMapping()
		schema.AppendPair(body, "required", schema.NewScalar(true))
		schema.AppendPair(body, "content", contentOf(media))
		schema.AppendPair(node, "requestBody", body)
	}

	status := fragment.Status
	if status == 0 {
		status = http.StatusOK
	}
	response := schema.NewMapping()
	schema.AppendPair(response, "description", schema.NewScalar(http.StatusText(status)))
	if fragment.ResponseSchema != nil {
		media := schema.NewMapping()
		schema.AppendPair(media, "schema", fragment.ResponseSchema.Node(family))
		if len(fragment.Examples) > 0 {
			schema.AppendPair(media, "examples", renderExamples(fragment.Examples))
		}
		schema.AppendPair(response, "content", contentOf(media))
	}
	responses := schema.NewMapping()
	schema.AppendPair(responses, strconv.Itoa(status), response)
	schema.AppendPair(node, "responses", responses)
	return node
}

func renderExamples(examples map[string]any) *yaml.Node {
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}
	sort.Strings(names)
	node := schema.NewMapping()
	for _, name := range names {
		item := schema.NewMapping()
		schema.AppendPair(item, "value", schema.ValueNode(examples[name]))
		schema.AppendPair(node, name, item)
	}
	return node
}

func contentOf(media *yaml.Node) *yaml.Node {
	content := schema.NewMapping()
	schema.AppendPair(content, contentType, media)
	return content
}

func requirementValue(requirement map[string][]string) map[string]any {
	ret := make(map[string]any, len(requirement))
	for name, scopes := range requirement {
		list := make([]any, len(scopes))
		for i, scope := range scopes {
			list[i] = scope
		}
		ret[name] = list
	}
	return ret
}
