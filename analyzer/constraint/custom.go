package constraint

import (
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

var schemaMethods = []string{"toSchema", "schema", "openApiSchema"}

// characterClasses maps boolean constructor flags to the pattern they imply.
var characterClasses = []struct {
	keywords []string
	patterns []string
}{
	{keywords: []string{"mixedcase"}, patterns: []string{"[A-Z]", "[a-z]"}},
	{keywords: []string{"uppercase", "upper", "capital"}, patterns: []string{"[A-Z]"}},
	{keywords: []string{"lowercase", "lower"}, patterns: []string{"[a-z]"}},
	{keywords: []string{"number", "numeric", "digit"}, patterns: []string{"[0-9]"}},
	{keywords: []string{"symbol", "special"}, patterns: []string{"[^A-Za-z0-9]"}},
	{keywords: []string{"letter"}, patterns: []string{"[A-Za-z]"}},
}

// FromUnit resolves a custom rule class. An explicit schema method wins, then an
// OpenAPI schema attribute, then constructor naming heuristics. args are the arguments
// of the instantiation and override constructor defaults.
// An empty record is a valid outcome.
func FromUnit(unit *graph.Unit, args []graph.Argument) (*Record, *diag.Error) {
	ret := NewRecord()
	if unit == nil {
		return ret, nil
	}
	var issue *diag.Error
	if unit.Has(graph.CapSchemaProvider) {
		for _, name := range schemaMethods {
			method := unit.Method(name)
			if method == nil {
				continue
			}
			if value, ok := graph.Evaluate(method.Return()); ok {
				if pairs, ok := value.(graph.Pairs); ok && len(pairs) > 0 {
					ret.Verbatim = pairs
					return ret, nil
				}
			}
			issue = diag.New(diag.UnsupportedConstruct, unit.Path, unit.ShortName+"::"+method.Name+" does not return a constant array")
		}
	}
	if unit.Has(graph.CapOpenAPIAnnotated) {
		if pairs := attributeSchema(unit.Attribute("Schema", "OpenApiSchema")); len(pairs) > 0 {
			ret.Verbatim = pairs
			return ret, nil
		}
	}
	applyHeuristics(ret, constructorValues(unit.Constructor, args))
	return ret, issue
}

// attributeSchema reads #[Schema(type: 'string', ...)] or #[Schema(['type' => 'string'])].
func attributeSchema(attr *graph.Attribute) graph.Pairs {
	if attr == nil {
		return nil
	}
	var ret graph.Pairs
	for _, arg := range attr.Args {
		value, ok := graph.Evaluate(arg.Value)
		if !ok {
			continue
		}
		if arg.Name == "" {
			if pairs, ok := value.(graph.Pairs); ok {
				ret = append(ret, pairs...)
			}
			continue
		}
		ret = append(ret, graph.Pair{Key: arg.Name, Value: value})
	}
	return ret
}

type namedValue struct {
	name  string
	value any
}

// constructorValues folds defaults with call arguments matched by name or position.
func constructorValues(params []*graph.Parameter, args []graph.Argument) []namedValue {
	ret := make([]namedValue, 0, len(params))
	for i, param := range params {
		entry := namedValue{name: param.Name}
		if param.Default != nil {
			entry.value, _ = graph.Evaluate(param.Default)
		}
		if arg := graph.Arg(args, i, param.Name); arg != nil {
			if value, ok := graph.Evaluate(arg); ok {
				entry.value = value
			}
		}
		ret = append(ret, entry)
	}
	return ret
}

func applyHeuristics(record *Record, values []namedValue) {
	isString := false
	for _, item := range values {
		name := strings.ToLower(item.name)
		switch value := item.value.(type) {
		case bool:
			if !value {
				continue
			}
			for _, class := range characterClasses {
				if containsAny(name, class.keywords) {
					record.Patterns = unionSorted(record.Patterns, class.patterns)
					isString = true
					break
				}
			}
		case int64, float64:
			n := toFloat(value)
			switch {
			case strings.HasPrefix(name, "min"):
				record.Bounds = tighten(record.Bounds, Bounds{Min: &n})
			case strings.HasPrefix(name, "max"):
				record.Bounds = tighten(record.Bounds, Bounds{Max: &n})
			case strings.HasSuffix(name, "length") || name == "size":
				record.Bounds = tighten(record.Bounds, Bounds{Min: &n, Max: &n})
			default:
				continue
			}
			if strings.Contains(name, "length") {
				isString = true
			}
		case string:
			if strings.HasPrefix(name, "pattern") || strings.HasPrefix(name, "regex") {
				pattern, ok := Pattern(value)
				if !ok {
					pattern = value
				}
				record.Patterns = unionSorted(record.Patterns, []string{pattern})
				isString = true
			}
		}
	}
	if isString {
		record.Kind = schema.TypeString
	}
}

// passwordRecord resolves a Password::min(8)->mixedCase()->numbers() builder chain.
func passwordRecord(chain []*graph.Call) *Record {
	ret := NewRecord()
	ret.Kind = schema.TypeString
	for _, call := range chain {
		switch strings.ToLower(call.Name) {
		case "min":
			if value, ok := graph.Evaluate(graph.Arg(call.Args, 0, "size")); ok {
				n := toFloat(value)
				ret.Bounds = tighten(ret.Bounds, Bounds{Min: &n})
			}
		case "max":
			if value, ok := graph.Evaluate(graph.Arg(call.Args, 0, "size")); ok {
				n := toFloat(value)
				ret.Bounds = tighten(ret.Bounds, Bounds{Max: &n})
			}
		default:
			applyHeuristics(ret, []namedValue{{name: call.Name, value: true}})
		}
	}
	return ret
}

func containsAny(name string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}

func toFloat(value any) float64 {
	switch actual := value.(type) {
	case int64:
		return float64(actual)
	case float64:
		return actual
	}
	return 0
}
