package composer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/constraint"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/transform"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

type units map[string]*graph.Unit

func (u units) LoadUnit(_ context.Context, class string) (*graph.Unit, error) {
	if unit, ok := u[class]; ok {
		return unit, nil
	}
	return nil, errors.New("not found")
}

var this = &graph.Variable{Node: graph.Node{Raw: "$this"}, Name: "this"}

func str(value string) *graph.Literal {
	return &graph.Literal{Node: graph.Node{Raw: "'" + value + "'"}, Kind: graph.LiteralString, Value: value}
}

func integer(value int64) *graph.Literal {
	return &graph.Literal{Kind: graph.LiteralInt, Value: value}
}

func keyed(pairs ...any) *graph.ArrayLiteral {
	ret := &graph.ArrayLiteral{}
	for i := 0; i < len(pairs); i += 2 {
		ret.Entries = append(ret.Entries, graph.ArrayEntry{Key: str(pairs[i].(string)), Value: pairs[i+1].(graph.Expr)})
	}
	return ret
}

func prop(name string) *graph.PropertyAccess {
	return &graph.PropertyAccess{Node: graph.Node{Raw: "$this->" + name}, Object: this, Name: name}
}

func storeRequest() *graph.Unit {
	return &graph.Unit{
		Name:         `App\Http\Requests\StoreUserRequest`,
		ShortName:    "StoreUserRequest",
		Capabilities: graph.CapFormRequest,
		Methods: []*graph.Method{{Name: "rules", Returns: []graph.Expr{keyed(
			"name", str("required|string|max:255"),
			"age", str("integer|min:18|max:120"),
			"role", str("required|in:admin,member"),
		)}}},
	}
}

func userResource() *graph.Unit {
	return &graph.Unit{
		Name:         `App\Http\Resources\UserResource`,
		ShortName:    "UserResource",
		Capabilities: graph.CapJSONResource,
		Methods: []*graph.Method{{Name: "toArray", Returns: []graph.Expr{keyed(
			"id", prop("id"),
			"email", prop("email"),
		)}}},
	}
}

func newComposer(opts ...Option) *Composer {
	loader := units{}
	return New(constraint.NewResolver(loader), transform.NewResolver(loader), opts...)
}

func TestComposer_Compose(t *testing.T) {
	route := &graph.RouteFact{Method: "post", Path: "/users", Handler: `App\Http\Controllers\UserController@store`}
	fragment, issues := newComposer().Compose(context.Background(), Input{Route: route, Request: storeRequest(), Resource: userResource()})
	require.Empty(t, issues)

	assert.Equal(t, "POST /users", fragment.RouteKey)
	assert.Equal(t, "userStore", fragment.OperationID)
	assert.Equal(t, []string{"User"}, fragment.Tags)
	assert.Equal(t, 201, fragment.Status)

	require.NotNil(t, fragment.RequestSchema)
	assert.Equal(t, []string{"name", "role"}, fragment.RequestSchema.Required)
	assert.Equal(t, graph.Pairs{
		{Key: "name", Value: "Example1!"},
		{Key: "age", Value: int64(18)},
		{Key: "role", Value: "admin"},
	}, fragment.RequestExample)

	data := fragment.ResponseSchema.Property("data")
	require.NotNil(t, data)
	assert.Equal(t, []string{"data"}, fragment.ResponseSchema.Required)
	assert.Equal(t, []string{"id", "email"}, data.Required)
	assert.Equal(t, map[string]any{DefaultExample: graph.Pairs{{Key: "data", Value: graph.Pairs{
		{Key: "id", Value: int64(1)},
		{Key: "email", Value: "user@example.com"},
	}}}}, fragment.Examples)
}

func TestComposer_Compose_Deterministic(t *testing.T) {
	route := &graph.RouteFact{Method: "post", Path: "/users", Handler: `App\Http\Controllers\UserController@store`}
	in := Input{Route: route, Request: storeRequest(), Resource: userResource()}
	first, _ := newComposer().Compose(context.Background(), in)
	second, _ := newComposer().Compose(context.Background(), in)
	assert.Equal(t, first, second)
}

func TestComposer_Compose_ProvidedExamples(t *testing.T) {
	resource := userResource()
	resource.Capabilities |= graph.CapExamplesProvider | graph.CapExampleProvider
	resource.Methods = append(resource.Methods,
		&graph.Method{Name: "example", Returns: []graph.Expr{keyed("id", integer(7))}},
		&graph.Method{Name: "examples", Returns: []graph.Expr{keyed(
			"admin", keyed("id", integer(1)),
			"member", keyed("id", integer(2)),
		)}},
	)
	route := &graph.RouteFact{Method: "GET", Path: "/users", Handler: `App\Http\Controllers\UserController@index`}
	fragment, issues := newComposer(WithWrap("")).Compose(context.Background(), Input{Route: route, Resource: resource, Collection: true})
	require.Empty(t, issues)

	assert.Equal(t, schema.TypeArray, fragment.ResponseSchema.Type)
	assert.Equal(t, map[string]any{
		"admin":  []any{graph.Pairs{{Key: "id", Value: int64(1)}}},
		"member": []any{graph.Pairs{{Key: "id", Value: int64(2)}}},
	}, fragment.Examples)
}

func TestComposer_Compose_QueryParameters(t *testing.T) {
	route := &graph.RouteFact{Method: "GET", Path: "/teams/{team_id}/users/{slug?}", Handler: `App\Http\Controllers\UserController@index`}
	fragment, _ := newComposer().Compose(context.Background(), Input{Route: route, Request: storeRequest()})

	assert.Nil(t, fragment.RequestSchema)
	assert.Nil(t, fragment.ResponseSchema)
	require.Len(t, fragment.Parameters, 5)
	assert.Equal(t, "team_id", fragment.Parameters[0].Name)
	assert.Equal(t, schema.TypeInteger, fragment.Parameters[0].Schema.Type)
	assert.Equal(t, "slug", fragment.Parameters[1].Name)
	assert.Equal(t, "path", fragment.Parameters[1].In)
	assert.Equal(t, "query", fragment.Parameters[2].In)
	assert.True(t, fragment.Parameters[2].Required)
	assert.False(t, fragment.Parameters[3].Required)
}

func TestOperationID(t *testing.T) {
	testCases := []struct {
		handler string
		want    string
	}{
		{handler: `App\Http\Controllers\UserController@index`, want: "userIndex"},
		{handler: `App\Http\Controllers\ShowDashboard`, want: "showDashboardInvoke"},
		{handler: `PostController@show`, want: "postShow"},
	}
	for _, tc := range testCases {
		t.Run(tc.handler, func(t *testing.T) {
			assert.Equal(t, tc.want, OperationID(tc.handler))
		})
	}
}
