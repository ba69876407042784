package schema

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// exampleNamespace seeds name-based uuids so synthesized identifiers are stable across runs.
var exampleNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

var formatExamples = map[string]string{
	"email":     "user@example.com",
	"uri":       "https://example.com",
	"date":      "2024-01-01",
	"date-time": "2024-01-01T00:00:00Z",
	"ipv4":      "192.0.2.1",
	"ipv6":      "2001:db8::1",
	"binary":    "file.bin",
	"ulid":      "01ARZ3NDEKTSV4RRFFQ69G5FAV",
}

// stringCandidates are tried in order against pattern constraints.
var stringCandidates = []string{"Example1!", "example", "EXAMPLE", "Example", "12345", "example-1", "a1"}

// Synthesize builds a deterministic example consistent with the schema constraints.
// name seeds identifier-like values. It returns nil when no consistent value is known
// or when the schema is low-confidence.
func Synthesize(s *Schema, name string) any {
	if s == nil || s.LowConfidence || s.Ref != "" {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if len(s.Verbatim) > 0 {
		if value, ok := s.Verbatim.Get("example"); ok {
			return value
		}
		return nil
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}
	switch s.Type {
	case TypeString:
		return synthesizeString(s, name)
	case TypeInteger:
		value := synthesizeNumber(s)
		if value == nil {
			return nil
		}
		return int64(*value)
	case TypeNumber:
		value := synthesizeNumber(s)
		if value == nil {
			return nil
		}
		return *value
	case TypeBoolean:
		return true
	case TypeArray:
		item := Synthesize(s.Items, name)
		if item == nil {
			return []any{}
		}
		count := 1
		if s.MinItems != nil && *s.MinItems > count {
			count = *s.MinItems
		}
		if s.MaxItems != nil && *s.MaxItems < count {
			count = *s.MaxItems
		}
		ret := make([]any, count)
		for i := range ret {
			ret[i] = item
		}
		return ret
	case TypeObject:
		ret := graph.Pairs{}
		for _, prop := range s.Properties {
			if value := Synthesize(prop.Schema, prop.Name); value != nil {
				ret = append(ret, graph.Pair{Key: prop.Name, Value: value})
			}
		}
		return ret
	}
	return nil
}

// Placeholder returns a type-appropriate value used when synthesis yields nothing.
func Placeholder(s *Schema) any {
	if s == nil {
		return nil
	}
	switch s.Type {
	case TypeString:
		return "string"
	case TypeInteger:
		return int64(0)
	case TypeNumber:
		return float64(0)
	case TypeBoolean:
		return false
	case TypeArray:
		return []any{}
	case TypeObject:
		return graph.Pairs{}
	}
	return nil
}

func synthesizeString(s *Schema, name string) any {
	if s.Format == "uuid" {
		return uuid.NewSHA1(exampleNamespace, []byte(name)).String()
	}
	patterns := s.Patterns()
	if example, ok := formatExamples[s.Format]; ok && matchesAll(example, patterns) {
		return example
	}
	for _, candidate := range stringCandidates {
		candidate = fitLength(candidate, s.MinLength, s.MaxLength)
		if candidate != "" && matchesAll(candidate, patterns) {
			return candidate
		}
	}
	return nil
}

// fitLength pads with 'x' or truncates; empty when bounds cannot be satisfied.
func fitLength(candidate string, minLength, maxLength *int) string {
	if minLength != nil && len(candidate) < *minLength {
		candidate += strings.Repeat("x", *minLength-len(candidate))
	}
	if maxLength != nil && len(candidate) > *maxLength {
		if *maxLength <= 0 {
			return ""
		}
		candidate = candidate[:*maxLength]
	}
	return candidate
}

func matchesAll(candidate string, patterns []string) bool {
	for _, pattern := range patterns {
		expr, err := regexp.Compile(pattern)
		if err != nil || !expr.MatchString(candidate) {
			return false
		}
	}
	return true
}

// synthesizeNumber prefers 1 and otherwise moves to the nearest value the bounds
// admit. Integers snap to the integer range; nil means no value fits.
func synthesizeNumber(s *Schema) *float64 {
	var candidates []float64
	if s.Type == TypeInteger {
		lo, hi := math.Inf(-1), math.Inf(1)
		if s.Minimum != nil {
			lo = math.Ceil(*s.Minimum)
			if s.ExclusiveMinimum && lo == *s.Minimum {
				lo++
			}
		}
		if s.Maximum != nil {
			hi = math.Floor(*s.Maximum)
			if s.ExclusiveMaximum && hi == *s.Maximum {
				hi--
			}
		}
		candidates = append(candidates, math.Max(lo, math.Min(hi, 1)))
	} else {
		candidates = append(candidates, 1)
		if s.Minimum != nil {
			candidates = append(candidates, *s.Minimum, *s.Minimum+1)
		}
		if s.Maximum != nil {
			candidates = append(candidates, *s.Maximum, *s.Maximum-1)
		}
		if s.Minimum != nil && s.Maximum != nil {
			candidates = append(candidates, (*s.Minimum+*s.Maximum)/2)
		}
	}
	for _, candidate := range candidates {
		if inBounds(s, candidate) {
			value := candidate
			return &value
		}
	}
	return nil
}

func inBounds(s *Schema, value float64) bool {
	if s.Minimum != nil && (value < *s.Minimum || s.ExclusiveMinimum && value == *s.Minimum) {
		return false
	}
	if s.Maximum != nil && (value > *s.Maximum || s.ExclusiveMaximum && value == *s.Maximum) {
		return false
	}
	return true
}

// Patterns returns the pattern of the schema and of its allOf members.
func (s *Schema) Patterns() []string {
	var ret []string
	if s.Pattern != "" {
		ret = append(ret, s.Pattern)
	}
	for _, item := range s.AllOf {
		ret = append(ret, item.Patterns()...)
	}
	return ret
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
