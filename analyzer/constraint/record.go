// Package constraint converts validation rule declarations into normalized constraint
// records and composes the records of a rule set into a request schema.
package constraint

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// Bounds holds inclusive or exclusive limits. They apply to length, value or item count
// depending on the record kind.
type Bounds struct {
	Min          *float64
	Max          *float64
	ExclusiveMin bool
	ExclusiveMax bool
}

// Record is the normalized validation fact of one field.
// Without information a record is optional and nullable.
type Record struct {
	Kind          string // schema type name, empty when unknown
	Format        string
	Bounds        Bounds
	Patterns      []string // every pattern must match
	Enum          []string // nil when unconstrained
	Nullable      bool
	Required      bool
	LowConfidence bool
	// Verbatim is a schema declared by a custom rule; it always wins.
	Verbatim graph.Pairs

	facts facts
}

// facts are the presence flags the final required/nullable decision is derived from.
type facts struct {
	required  bool
	nullable  bool
	sometimes bool
	nonNull   bool
}

// NewRecord returns the most permissive record.
func NewRecord() *Record {
	return &Record{Nullable: true}
}

// Merge combines records as a logical AND. Bounds tighten, enums intersect and patterns
// accumulate. Conflicting kinds or formats keep the first one and mark the result
// low-confidence.
func Merge(records ...*Record) (*Record, []*diag.Error) {
	ret := NewRecord()
	var issues []*diag.Error
	for _, record := range records {
		if record == nil {
			continue
		}
		issues = append(issues, ret.and(record)...)
	}
	ret.settle()
	return ret, issues
}

func (r *Record) and(other *Record) []*diag.Error {
	var issues []*diag.Error
	switch kind, ok := mergeKind(r.Kind, other.Kind); {
	case ok:
		r.Kind = kind
	default:
		r.LowConfidence = true
		issues = append(issues, diag.New(diag.AmbiguousType, "", fmt.Sprintf("conflicting types %s and %s, keeping %s", r.Kind, other.Kind, r.Kind)))
	}
	switch format, ok := mergeFormat(r.Format, other.Format); {
	case ok:
		r.Format = format
	default:
		r.LowConfidence = true
		issues = append(issues, diag.New(diag.AmbiguousType, "", fmt.Sprintf("conflicting formats %s and %s, keeping %s", r.Format, other.Format, r.Format)))
	}
	r.Bounds = tighten(r.Bounds, other.Bounds)
	r.Patterns = unionSorted(r.Patterns, other.Patterns)
	r.Enum = intersect(r.Enum, other.Enum)
	if len(r.Verbatim) == 0 {
		r.Verbatim = other.Verbatim
	}
	r.LowConfidence = r.LowConfidence || other.LowConfidence
	r.facts.required = r.facts.required || other.facts.required
	r.facts.nullable = r.facts.nullable || other.facts.nullable
	r.facts.sometimes = r.facts.sometimes || other.facts.sometimes
	r.facts.nonNull = r.facts.nonNull || other.facts.nonNull
	return issues
}

// settle derives Required and Nullable from the collected facts.
func (r *Record) settle() {
	r.Required = r.facts.required && !r.facts.sometimes
	r.Nullable = r.facts.nullable || !r.facts.nonNull
	if r.Enum != nil && len(r.Enum) == 0 {
		r.LowConfidence = true
	}
}

// mergeKind returns the combined kind; integer refines number.
func mergeKind(a, b string) (string, bool) {
	switch {
	case a == "" || a == b:
		if a == "" {
			return b, true
		}
		return a, true
	case b == "":
		return a, true
	case a == schema.TypeInteger && b == schema.TypeNumber, a == schema.TypeNumber && b == schema.TypeInteger:
		return schema.TypeInteger, true
	}
	return a, false
}

// mergeFormat returns the combined format; date refines date-time.
func mergeFormat(a, b string) (string, bool) {
	switch {
	case a == "" || a == b:
		if a == "" {
			return b, true
		}
		return a, true
	case b == "":
		return a, true
	case a == "date" && b == "date-time", a == "date-time" && b == "date":
		return "date", true
	}
	return a, false
}

func tighten(a, b Bounds) Bounds {
	ret := a
	if b.Min != nil {
		switch {
		case ret.Min == nil || *b.Min > *ret.Min:
			ret.Min, ret.ExclusiveMin = b.Min, b.ExclusiveMin
		case *b.Min == *ret.Min:
			ret.ExclusiveMin = ret.ExclusiveMin || b.ExclusiveMin
		}
	}
	if b.Max != nil {
		switch {
		case ret.Max == nil || *b.Max < *ret.Max:
			ret.Max, ret.ExclusiveMax = b.Max, b.ExclusiveMax
		case *b.Max == *ret.Max:
			ret.ExclusiveMax = ret.ExclusiveMax || b.ExclusiveMax
		}
	}
	return ret
}

func unionSorted(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	var ret []string
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if !seen[item] {
				seen[item] = true
				ret = append(ret, item)
			}
		}
	}
	sort.Strings(ret)
	return ret
}

// intersect keeps declaration order for a single enum and sorts a true intersection.
func intersect(a, b []string) []string {
	switch {
	case b == nil:
		return a
	case a == nil:
		return b
	}
	allowed := make(map[string]bool, len(b))
	for _, item := range b {
		allowed[item] = true
	}
	ret := []string{}
	for _, item := range a {
		if allowed[item] {
			ret = append(ret, item)
			delete(allowed, item)
		}
	}
	sort.Strings(ret)
	return ret
}

// Schema renders the record as a version-neutral schema.
func (r *Record) Schema() *schema.Schema {
	if len(r.Verbatim) > 0 {
		return &schema.Schema{Verbatim: r.Verbatim, LowConfidence: r.LowConfidence}
	}
	ret := &schema.Schema{
		Type:          r.Kind,
		Format:        r.Format,
		Nullable:      r.Nullable,
		LowConfidence: r.LowConfidence,
	}
	if ret.Type == "" && (r.Format != "" || len(r.Patterns) > 0 || r.Bounds.Min != nil || r.Bounds.Max != nil) {
		ret.Type = schema.TypeString
	}
	switch ret.Type {
	case schema.TypeString:
		ret.MinLength = toInt(r.Bounds.Min)
		ret.MaxLength = toInt(r.Bounds.Max)
	case schema.TypeInteger, schema.TypeNumber:
		ret.Minimum, ret.Maximum = r.Bounds.Min, r.Bounds.Max
		ret.ExclusiveMinimum = r.Bounds.Min != nil && r.Bounds.ExclusiveMin
		ret.ExclusiveMaximum = r.Bounds.Max != nil && r.Bounds.ExclusiveMax
	case schema.TypeArray:
		ret.MinItems = toInt(r.Bounds.Min)
		ret.MaxItems = toInt(r.Bounds.Max)
	}
	switch len(r.Patterns) {
	case 0:
	case 1:
		ret.Pattern = r.Patterns[0]
	default:
		for _, pattern := range r.Patterns {
			ret.AllOf = append(ret.AllOf, &schema.Schema{Pattern: pattern})
		}
	}
	for _, value := range r.Enum {
		ret.Enum = append(ret.Enum, enumValue(ret.Type, value))
	}
	return ret
}

func enumValue(kind, value string) any {
	switch kind {
	case schema.TypeInteger:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case schema.TypeNumber:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return value
}

func toInt(v *float64) *int {
	if v == nil {
		return nil
	}
	return schema.Int(int(*v))
}
