package document

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/composer"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"gopkg.in/yaml.v3"
)

func userFragment(method, path string) *composer.Fragment {
	user := schema.Object()
	user.SetProperty("id", &schema.Schema{Type: schema.TypeInteger})
	user.SetProperty("email", &schema.Schema{Type: schema.TypeString, Format: "email", Nullable: true})
	user.SetProperty("nickname", &schema.Schema{Type: schema.TypeString, Nullable: true})
	user.AddRequired("id")
	user.AddRequired("email")
	return &composer.Fragment{
		RouteKey:       graph.RouteKey(method, path),
		Method:         method,
		Path:           path,
		OperationID:    "user" + method,
		Status:         200,
		ResponseSchema: user,
		Examples:       map[string]any{composer.DefaultExample: graph.Pairs{{Key: "id", Value: int64(1)}}},
	}
}

func options(version string) Options {
	return Options{
		Version: version,
		Info:    Info{Title: "Demo", Version: "1.0.0"},
		Servers: []Server{{URL: "https://api.example.com"}},
	}
}

func finalize(t *testing.T, version string, fragments ...*composer.Fragment) *Document {
	t.Helper()
	aggregator, err := NewAggregator(options(version))
	require.NoError(t, err)
	for _, fragment := range fragments {
		require.NoError(t, aggregator.Add(fragment))
	}
	doc, err := aggregator.Finalize()
	require.NoError(t, err)
	return doc
}

// collect walks a decoded document and records every key/value pair.
func collect(value any, visit func(key string, value any)) {
	switch actual := value.(type) {
	case map[string]any:
		for key, child := range actual {
			visit(key, child)
			collect(child, visit)
		}
	case []any:
		for _, child := range actual {
			collect(child, visit)
		}
	}
}

func TestAggregator_Finalize_NullableRoundTrip(t *testing.T) {
	fragments := func() []*composer.Fragment {
		return []*composer.Fragment{userFragment("GET", "/users/{user}"), userFragment("PUT", "/users/{user}")}
	}

	t.Run("family A", func(t *testing.T) {
		data, err := finalize(t, "3.0.3", fragments()...).YAML()
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(data, &decoded))

		nullable := 0
		collect(decoded, func(key string, value any) {
			if key == "type" {
				_, isList := value.([]any)
				assert.False(t, isList, "type array in 3.0 output")
			}
			if key == "nullable" {
				nullable++
			}
		})
		assert.Equal(t, 4, nullable)
		assert.NotContains(t, decoded, "jsonSchemaDialect")
		assert.NotContains(t, decoded, "webhooks")
	})

	t.Run("family B", func(t *testing.T) {
		data, err := finalize(t, "3.1.0", fragments()...).YAML()
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(data, &decoded))

		unions := 0
		collect(decoded, func(key string, value any) {
			assert.NotEqual(t, "nullable", key, "nullable keyword in 3.1 output")
			if list, ok := value.([]any); ok && key == "type" {
				assert.Contains(t, list, "null")
				unions++
			}
		})
		assert.Equal(t, 4, unions)
		assert.Equal(t, DefaultDialect, decoded["jsonSchemaDialect"])
		assert.Equal(t, map[string]any{}, decoded["webhooks"])
	})
}

func TestAggregator_Finalize_SectionOrder(t *testing.T) {
	doc := finalize(t, "3.1.0", userFragment("POST", "/users"), userFragment("GET", "/users"), userFragment("GET", "/accounts"))
	root := doc.Node()
	var keys []string
	for i := 0; i < len(root.Content); i += 2 {
		keys = append(keys, root.Content[i].Value)
	}
	assert.Equal(t, []string{"openapi", "info", "jsonSchemaDialect", "servers", "paths", "webhooks"}, keys)

	paths := lookup(root, "paths")
	assert.Equal(t, "/accounts", paths.Content[0].Value)
	users := lookup(paths, "/users")
	assert.Equal(t, "get", users.Content[0].Value)
	assert.Equal(t, "post", users.Content[2].Value)
	assert.Equal(t, 3, doc.Routes())
}

func TestAggregator_Finalize_Idempotent(t *testing.T) {
	build := func() []byte {
		fragments := []*composer.Fragment{userFragment("GET", "/b"), userFragment("GET", "/a"), userFragment("DELETE", "/a")}
		aggregator, err := NewAggregator(options("3.0.3"))
		require.NoError(t, err)
		var wg sync.WaitGroup
		for _, fragment := range fragments {
			wg.Add(1)
			go func(fragment *composer.Fragment) {
				defer wg.Done()
				assert.NoError(t, aggregator.Add(fragment))
			}(fragment)
		}
		wg.Wait()
		doc, err := aggregator.Finalize()
		require.NoError(t, err)
		data, err := doc.JSON()
		require.NoError(t, err)
		return data
	}
	first := build()
	assert.Equal(t, first, build())
	assert.True(t, json.Valid(first))
}

func TestAggregator_DuplicateRoute(t *testing.T) {
	aggregator, err := NewAggregator(options("3.0.3"))
	require.NoError(t, err)
	assert.Equal(t, Empty, aggregator.State())

	require.NoError(t, aggregator.Add(userFragment("GET", "/users")))
	assert.Equal(t, Accumulating, aggregator.State())
	err = aggregator.Add(userFragment("GET", "/users"))
	assert.ErrorIs(t, err, diag.ErrDuplicateRoute)

	doc, err := aggregator.Finalize()
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, diag.ErrDuplicateRoute)
	assert.Equal(t, Done, aggregator.State())

	assert.Error(t, aggregator.Add(userFragment("GET", "/other")))
	_, err = aggregator.Finalize()
	assert.Error(t, err)
}

func TestAggregator_InvalidDocumentShape(t *testing.T) {
	verbatim := func(pairs graph.Pairs) *composer.Fragment {
		fragment := userFragment("POST", "/users")
		fragment.RequestSchema = schema.Object()
		fragment.RequestSchema.SetProperty("password", &schema.Schema{Verbatim: pairs})
		return fragment
	}
	testCases := []struct {
		version string
		pairs   graph.Pairs
	}{
		{version: "3.1.0", pairs: graph.Pairs{{Key: "type", Value: "string"}, {Key: "nullable", Value: true}}},
		{version: "3.0.3", pairs: graph.Pairs{{Key: "type", Value: []any{"string", "null"}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.version, func(t *testing.T) {
			aggregator, err := NewAggregator(options(tc.version))
			require.NoError(t, err)
			require.NoError(t, aggregator.Add(verbatim(tc.pairs)))
			doc, err := aggregator.Finalize()
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, diag.ErrInvalidDocumentShape)
		})
	}
}

func TestValidate_PropertyNamedNullable(t *testing.T) {
	s := schema.Object()
	s.SetProperty("nullable", &schema.Schema{Type: schema.TypeBoolean})
	fragment := userFragment("GET", "/flags")
	fragment.ResponseSchema = s
	fragment.Examples = nil
	doc := finalize(t, "3.1.0", fragment)
	assert.NotNil(t, doc)
}

func TestNewAggregator_UnsupportedVersion(t *testing.T) {
	_, err := NewAggregator(options("2.0"))
	assert.ErrorIs(t, err, diag.ErrInvalidDocumentShape)
}

func TestDocument_JSON(t *testing.T) {
	doc := finalize(t, "3.0.3", userFragment("GET", "/users"))
	data, err := doc.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "3.0.3", decoded["openapi"])
	responses := decoded["paths"].(map[string]any)["/users"].(map[string]any)["get"].(map[string]any)["responses"].(map[string]any)
	assert.Contains(t, responses, "200")
	assert.Equal(t, fmt.Sprint(float64(1)), fmt.Sprint(responses["200"].(map[string]any)["content"].(map[string]any)["application/json"].(map[string]any)["examples"].(map[string]any)["default"].(map[string]any)["value"].(map[string]any)["id"]))
}
