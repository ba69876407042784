package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

var this = &graph.Variable{Node: graph.Node{Raw: "$this"}, Name: "this"}

func str(value string) *graph.Literal {
	return &graph.Literal{Node: graph.Node{Raw: "'" + value + "'"}, Kind: graph.LiteralString, Value: value}
}

func prop(name string) *graph.PropertyAccess {
	return &graph.PropertyAccess{Node: graph.Node{Raw: "$this->" + name}, Object: this, Name: name}
}

func thisCall(name string, args ...graph.Expr) *graph.Call {
	call := &graph.Call{Node: graph.Node{Raw: "$this->" + name + "(...)"}, Receiver: this, Name: name}
	for _, arg := range args {
		call.Args = append(call.Args, graph.Argument{Value: arg})
	}
	return call
}

func keyed(pairs ...any) *graph.ArrayLiteral {
	ret := &graph.ArrayLiteral{}
	for i := 0; i < len(pairs); i += 2 {
		var key graph.Expr
		if pairs[i] != nil {
			key = str(pairs[i].(string))
		}
		ret.Entries = append(ret.Entries, graph.ArrayEntry{Key: key, Value: pairs[i+1].(graph.Expr)})
	}
	return ret
}

func resource(name string, body graph.Expr) *graph.Unit {
	return &graph.Unit{
		Name:         `App\Http\Resources\` + name,
		ShortName:    name,
		Path:         "app/Http/Resources/" + name + ".php",
		Capabilities: graph.CapJSONResource,
		Methods:      []*graph.Method{{Name: "toArray", Returns: []graph.Expr{body}}},
	}
}

type units map[string]*graph.Unit

func (u units) LoadUnit(_ context.Context, class string) (*graph.Unit, error) {
	if unit, ok := u[class]; ok {
		return unit, nil
	}
	return nil, errors.New("not found")
}

func (u units) add(unit *graph.Unit) units {
	u[unit.Name] = unit
	return u
}

func collection(class string, arg graph.Expr) *graph.Call {
	return &graph.Call{Node: graph.Node{Raw: class + "::collection(...)"}, Scope: `App\Http\Resources\` + class, Name: "collection", Args: []graph.Argument{{Value: arg}}}
}

func propertyNames(s *schema.Schema) []string {
	var ret []string
	for _, p := range s.Properties {
		ret = append(ret, p.Name)
	}
	return ret
}

func TestResolver_ConditionalFields(t *testing.T) {
	admin := &graph.Call{Node: graph.Node{Raw: "$request->user()->isAdmin()"}, Receiver: &graph.Variable{Name: "request"}, Name: "isAdmin"}
	user := resource("UserResource", keyed(
		"id", prop("id"),
		"posts", collection("PostResource", thisCall("whenLoaded", str("posts"))),
		"secret", thisCall("when", admin, prop("secret")),
	))
	post := resource("PostResource", keyed("id", prop("id"), "title", prop("title")))

	ret := NewResolver(units{}.add(user).add(post)).Resolve(context.Background(), user)
	require.Empty(t, ret.Issues)
	require.Len(t, ret.Fields, 3)

	assert.Equal(t, Unconditional, ret.Fields[0].Condition.Kind)
	assert.Equal(t, WhenLoaded, ret.Fields[1].Condition.Kind)
	assert.Equal(t, "posts", ret.Fields[1].Condition.Relation)
	assert.Equal(t, When, ret.Fields[2].Condition.Kind)
	assert.Equal(t, PredicateRequest, ret.Fields[2].Condition.Source)

	assert.Equal(t, []string{"id", "posts", "secret"}, propertyNames(ret.Schema))
	assert.Equal(t, []string{"id"}, ret.Schema.Required)

	posts := ret.Schema.Property("posts")
	assert.Equal(t, schema.TypeArray, posts.Type)
	assert.Equal(t, []string{"id", "title"}, propertyNames(posts.Items))
	assert.Equal(t, schema.TypeInteger, ret.Schema.Property("id").Type)
	assert.Empty(t, ret.Components)
}

func TestResolver_MergeWhenFlattens(t *testing.T) {
	testCases := []struct {
		name     string
		fieldMap graph.Expr
		want     []string
	}{
		{name: "single", fieldMap: keyed("verified_at", prop("verified_at")), want: []string{"id", "verified_at"}},
		{name: "several", fieldMap: keyed("a", prop("a"), "b", str("x"), "c", keyed("nested", prop("nested"))), want: []string{"id", "a", "b", "c"}},
		{name: "closure", fieldMap: &graph.Closure{Body: keyed("z", prop("z"))}, want: []string{"id", "z"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			unit := resource("UserResource", keyed(
				"id", prop("id"),
				nil, thisCall("mergeWhen", prop("is_verified"), tc.fieldMap),
			))
			ret := NewResolver(nil).Resolve(context.Background(), unit)
			require.Empty(t, ret.Issues)
			assert.Equal(t, tc.want, propertyNames(ret.Schema))
			assert.Equal(t, []string{"id"}, ret.Schema.Required)
			for _, field := range ret.Fields[1:] {
				assert.Equal(t, MergeWhen, field.Condition.Kind)
				assert.Equal(t, PredicateData, field.Condition.Source)
			}
		})
	}
}

func TestResolver_NullsafeIsRequiredAndNullable(t *testing.T) {
	email := &graph.PropertyAccess{Object: prop("profile"), Name: "email", NullSafe: true}
	unit := resource("UserResource", keyed("email", email))
	ret := NewResolver(nil).Resolve(context.Background(), unit)

	s := ret.Schema.Property("email")
	assert.True(t, s.Nullable)
	assert.Equal(t, "email", s.Format)
	assert.Equal(t, []string{"email"}, ret.Schema.Required)
}

func TestComponentName(t *testing.T) {
	testCases := []struct {
		class, short, want string
	}{
		{class: `App\Http\Resources\UserResource`, short: "UserResource", want: "UserResource"},
		{class: `App\Http\Resources\V2\UserResource`, short: "UserResource", want: "V2.UserResource"},
		{class: `\Domain\Billing\InvoiceResource`, short: "InvoiceResource", want: "Domain.Billing.InvoiceResource"},
		{class: "", short: "LegacyResource", want: "LegacyResource"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, ComponentName(&graph.Unit{Name: tc.class, ShortName: tc.short}))
		})
	}
}

func TestResolver_Cycles_SameShortName(t *testing.T) {
	v1 := resource("NodeResource", keyed("parent", &graph.New{Class: `App\Http\Resources\NodeResource`, Args: []graph.Argument{{Value: prop("parent")}}}))
	v2 := resource("NodeResource", keyed("parent", &graph.New{Class: `App\Http\Resources\V2\NodeResource`, Args: []graph.Argument{{Value: prop("parent")}}}))
	v2.Name = `App\Http\Resources\V2\NodeResource`
	loader := units{}.add(v1).add(v2)

	first := NewResolver(loader).Resolve(context.Background(), v1)
	second := NewResolver(loader).Resolve(context.Background(), v2)
	assert.Equal(t, schema.ComponentRef("NodeResource"), first.Schema.Property("parent").Ref)
	assert.Equal(t, schema.ComponentRef("V2.NodeResource"), second.Schema.Property("parent").Ref)
	assert.Contains(t, first.Components, "NodeResource")
	assert.Contains(t, second.Components, "V2.NodeResource")
}

func TestResolver_Cycles(t *testing.T) {
	t.Run("self reference", func(t *testing.T) {
		node := resource("NodeResource", keyed("id", prop("id"), "parent", &graph.New{Class: `App\Http\Resources\NodeResource`, Args: []graph.Argument{{Value: prop("parent")}}}))
		ret := NewResolver(units{}.add(node)).Resolve(context.Background(), node)
		assert.Equal(t, schema.ComponentRef("NodeResource"), ret.Schema.Property("parent").Ref)
		assert.Same(t, ret.Schema, ret.Components["NodeResource"])
	})

	t.Run("A loads B loads A", func(t *testing.T) {
		user := resource("UserResource", keyed("id", prop("id"), "posts", collection("PostResource", thisCall("whenLoaded", str("posts")))))
		post := resource("PostResource", keyed("id", prop("id"), "author", &graph.New{Class: `App\Http\Resources\UserResource`, Args: []graph.Argument{{Value: thisCall("whenLoaded", str("author"))}}}))
		ret := NewResolver(units{}.add(user).add(post)).Resolve(context.Background(), user)

		items := ret.Schema.Property("posts").Items
		author := items.Property("author")
		assert.Equal(t, schema.ComponentRef("UserResource"), author.Ref)
		assert.Equal(t, WhenLoaded, ret.Fields[1].Condition.Kind)
		require.Contains(t, ret.Components, "UserResource")
		assert.NotContains(t, ret.Components, "PostResource")
	})

	t.Run("three step cycle", func(t *testing.T) {
		a := resource("AResource", keyed("b", &graph.New{Class: `App\Http\Resources\BResource`}))
		b := resource("BResource", keyed("c", &graph.New{Class: `App\Http\Resources\CResource`}))
		c := resource("CResource", keyed("a", &graph.New{Class: `App\Http\Resources\AResource`}))
		ret := NewResolver(units{}.add(a).add(b).add(c)).Resolve(context.Background(), a)

		marker := ret.Schema.Property("b").Property("c").Property("a")
		assert.Equal(t, schema.ComponentRef("AResource"), marker.Ref)
		assert.Len(t, ret.Components, 1)
	})

	t.Run("siblings are expanded independently", func(t *testing.T) {
		tag := resource("TagResource", keyed("name", prop("name")))
		post := resource("PostResource", keyed(
			"primary", &graph.New{Class: `App\Http\Resources\TagResource`},
			"secondary", &graph.New{Class: `App\Http\Resources\TagResource`},
		))
		ret := NewResolver(units{}.add(tag).add(post)).Resolve(context.Background(), post)
		assert.Empty(t, ret.Schema.Property("secondary").Ref)
		assert.Equal(t, []string{"name"}, propertyNames(ret.Schema.Property("secondary")))
		assert.Empty(t, ret.Components)
	})
}

func TestResolver_CountedAndOpaque(t *testing.T) {
	unit := resource("UserResource", keyed(
		"posts_count", thisCall("whenCounted", str("posts")),
		"computed", &graph.Opaque{Node: graph.Node{Raw: "$a + $b"}, NodeType: "binary_expression"},
		"label", &graph.Ternary{Cond: prop("is_admin"), Then: str("admin"), Else: &graph.Literal{Kind: graph.LiteralNull}},
		"created", &graph.Call{Receiver: prop("created_at"), Name: "toIso8601String"},
	))
	ret := NewResolver(nil).Resolve(context.Background(), unit)

	assert.Equal(t, schema.TypeInteger, ret.Schema.Property("posts_count").Type)
	assert.Equal(t, WhenCounted, ret.Fields[0].Condition.Kind)
	assert.True(t, ret.Fields[1].Opaque)
	assert.True(t, ret.Schema.Property("computed").IsEmpty())
	require.Len(t, ret.Issues, 1)
	assert.ErrorIs(t, ret.Issues[0], diag.ErrUnsupportedConstruct)

	label := ret.Schema.Property("label")
	assert.Equal(t, schema.TypeString, label.Type)
	assert.True(t, label.Nullable)
	assert.Equal(t, "date-time", ret.Schema.Property("created").Format)
	assert.Equal(t, []string{"computed", "label", "created"}, ret.Schema.Required)
}
