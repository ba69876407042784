package composer

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/constraint"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/transform"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// DefaultExample is the name of a single, unnamed example.
const DefaultExample = "default"

var pathParameter = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\?)?\}`)

// Input is everything known about one route before composition.
type Input struct {
	Route      *graph.RouteFact
	Request    *graph.Unit // form request, may be nil
	Resource   *graph.Unit // response resource, may be nil
	Collection bool        // response is a collection of Resource
}

// Option configures a Composer.
type Option func(c *Composer)

// WithWrap sets the key resource responses are wrapped under; empty disables wrapping.
func WithWrap(key string) Option {
	return func(c *Composer) {
		c.wrap = key
	}
}

// Composer builds endpoint fragments. It holds no per-route state.
type Composer struct {
	constraints *constraint.Resolver
	transforms  *transform.Resolver
	wrap        string
}

// New creates a composer.
func New(constraints *constraint.Resolver, transforms *transform.Resolver, opts ...Option) *Composer {
	ret := &Composer{constraints: constraints, transforms: transforms, wrap: "data"}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Compose builds the fragment of one route. The returned issues are non-fatal and
// carry the route key; the output is deterministic for identical inputs.
func (c *Composer) Compose(ctx context.Context, in Input) (*Fragment, []*diag.Error) {
	route := in.Route
	ret := &Fragment{
		RouteKey:    route.Key(),
		Method:      strings.ToUpper(route.Method),
		Path:        route.Path,
		OperationID: OperationID(route.Handler),
		Tags:        tags(route.Handler),
		Parameters:  PathParameters(route.Path),
		Status:      status(route.Method, in.Resource != nil),
	}
	var issues []*diag.Error
	if in.Request != nil {
		issues = append(issues, c.composeRequest(ctx, in, ret)...)
	}
	if in.Resource != nil {
		issues = append(issues, c.composeResponse(ctx, in, ret)...)
	}
	for _, issue := range issues {
		issue.RouteKey = ret.RouteKey
	}
	return ret, issues
}

func (c *Composer) composeRequest(ctx context.Context, in Input, fragment *Fragment) []*diag.Error {
	result := c.constraints.ResolveUnit(ctx, in.Request)
	body := result.Schema()
	if !hasBody(fragment.Method) {
		// query string validation
		for _, prop := range body.Properties {
			fragment.Parameters = append(fragment.Parameters, &Parameter{
				Name:     prop.Name,
				In:       "query",
				Required: body.IsRequired(prop.Name),
				Schema:   prop.Schema,
			})
		}
		return result.Issues
	}
	fragment.RequestSchema = body
	fragment.RequestExample = example(body, "")
	return result.Issues
}

func (c *Composer) composeResponse(ctx context.Context, in Input, fragment *Fragment) []*diag.Error {
	result := c.transforms.Resolve(ctx, in.Resource)
	fragment.Components = result.Components
	fragment.ResponseSchema = c.shape(result.Schema, in.Collection)

	examples, issue := providedExamples(in.Resource)
	if len(examples) > 0 {
		fragment.Examples = make(map[string]any, len(examples))
		for _, pair := range examples {
			fragment.Examples[pair.Key] = c.shapeValue(pair.Value, in.Collection)
		}
	} else {
		fragment.Examples = map[string]any{DefaultExample: example(fragment.ResponseSchema, "")}
	}
	if issue != nil {
		return append(result.Issues, issue)
	}
	return result.Issues
}

// shape applies the collection and wrapping envelope to a resource schema.
func (c *Composer) shape(resource *schema.Schema, collection bool) *schema.Schema {
	ret := resource
	if collection {
		ret = schema.ArrayOf(resource)
	}
	if c.wrap == "" {
		return ret
	}
	wrapped := schema.Object()
	wrapped.SetProperty(c.wrap, ret)
	wrapped.AddRequired(c.wrap)
	return wrapped
}

func (c *Composer) shapeValue(value any, collection bool) any {
	if collection {
		value = []any{value}
	}
	if c.wrap == "" {
		return value
	}
	return graph.Pairs{{Key: c.wrap, Value: value}}
}

// providedExamples reads examples() (named variants) or example() from a resource.
func providedExamples(unit *graph.Unit) (graph.Pairs, *diag.Error) {
	if unit.Has(graph.CapExamplesProvider) {
		value, ok := graph.Evaluate(unit.Method("examples").Return())
		if pairs, isPairs := value.(graph.Pairs); ok && isPairs && len(pairs) > 0 {
			return pairs, nil
		}
		if !unit.Has(graph.CapExampleProvider) {
			return nil, diag.New(diag.UnsupportedConstruct, unit.Path, unit.ShortName+"::examples does not return a constant keyed array")
		}
	}
	if unit.Has(graph.CapExampleProvider) {
		if value, ok := graph.Evaluate(unit.Method("example").Return()); ok {
			return graph.Pairs{{Key: DefaultExample, Value: value}}, nil
		}
		return nil, diag.New(diag.UnsupportedConstruct, unit.Path, unit.ShortName+"::example does not return a constant")
	}
	return nil, nil
}

// example synthesizes a value consistent with s, falling back to a placeholder.
func example(s *schema.Schema, name string) any {
	if value := schema.Synthesize(s, name); value != nil {
		return value
	}
	return schema.Placeholder(s)
}

// PathParameters extracts {param} and {param?} segments in order.
func PathParameters(path string) []*Parameter {
	var ret []*Parameter
	for _, match := range pathParameter.FindAllStringSubmatch(path, -1) {
		name := match[1]
		s := &schema.Schema{Type: schema.TypeString}
		if lower := strings.ToLower(name); lower == "id" || strings.HasSuffix(lower, "_id") {
			s.Type = schema.TypeInteger
		}
		ret = append(ret, &Parameter{Name: name, In: "path", Required: true, Schema: s})
	}
	return ret
}

// OperationID derives an identifier such as "userStore" from App\...\UserController@store.
func OperationID(handler string) string {
	class, method, _ := strings.Cut(handler, "@")
	base := strings.TrimSuffix(graph.ShortClassName(class), "Controller")
	if method == "" {
		method = "invoke"
	}
	if base == "" {
		return method
	}
	return lowerFirst(base) + upperFirst(method)
}

func tags(handler string) []string {
	class, _, _ := strings.Cut(handler, "@")
	base := strings.TrimSuffix(graph.ShortClassName(class), "Controller")
	if base == "" {
		return nil
	}
	return []string{base}
}

func status(method string, hasResource bool) int {
	switch strings.ToUpper(method) {
	case http.MethodPost:
		return http.StatusCreated
	case http.MethodDelete:
		if !hasResource {
			return http.StatusNoContent
		}
	}
	return http.StatusOK
}

func hasBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return false
	}
	return true
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
