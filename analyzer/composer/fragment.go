// Package composer combines request constraints and response fields into one
// endpoint fragment per route.
package composer

import (
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
)

// Parameter is a path or query parameter.
type Parameter struct {
	Name     string
	In       string // path or query
	Required bool
	Schema   *schema.Schema
}

// Fragment is the request/response description of one route. It is built once by a
// single task and never mutated after publication.
type Fragment struct {
	RouteKey    string
	Method      string
	Path        string
	OperationID string
	Tags        []string
	Parameters  []*Parameter

	RequestSchema  *schema.Schema // nil when the route takes no body
	RequestExample any

	Status         int
	ResponseSchema *schema.Schema // nil when the route returns no body
	// Examples holds the named response examples; every provider variant is kept.
	Examples map[string]any

	// Components are schemas referenced by cycle markers inside the response.
	Components map[string]*schema.Schema
}
