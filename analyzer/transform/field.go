// Package transform statically evaluates a resource's toArray expression tree into an
// ordered field list and folds conditional inclusion idioms into schema decisions.
package transform

import (
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

// ConditionKind classifies how a field is included in the output.
type ConditionKind int

const (
	Unconditional ConditionKind = iota
	When
	MergeWhen
	WhenCounted
	WhenLoaded
)

func (k ConditionKind) String() string {
	switch k {
	case When:
		return "When"
	case MergeWhen:
		return "MergeWhen"
	case WhenCounted:
		return "WhenCounted"
	case WhenLoaded:
		return "WhenLoaded"
	}
	return "Unconditional"
}

// PredicateSource tells what an inclusion predicate depends on. It is informational:
// every conditional field is optional regardless of the source.
type PredicateSource int

const (
	PredicateUnknown PredicateSource = iota
	PredicateRequest
	PredicateData
)

// Condition is the inclusion condition of a field.
type Condition struct {
	Kind      ConditionKind
	Predicate graph.Expr // When, MergeWhen
	Relation  string     // WhenCounted, WhenLoaded
	Source    PredicateSource
}

// FieldNode is one output field in declaration order.
type FieldNode struct {
	Name      string
	Value     graph.Expr
	Condition Condition
	Schema    *schema.Schema
	Opaque    bool
}

// Required reports whether the field is always present. Presence does not imply
// non-null: a nullsafe access is present and nullable.
func (f *FieldNode) Required() bool {
	return f.Condition.Kind == Unconditional
}
