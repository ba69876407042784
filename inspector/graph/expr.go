package graph

// Expr is a closed variant over the expression shapes the extractor understands.
// Anything else is captured as Opaque; source code is never executed.
type Expr interface {
	Source() string
	isExpr()
}

// Node carries the raw source text of an expression.
type Node struct {
	Raw  string
	Line int
}

// Source returns the raw source text.
func (n Node) Source() string { return n.Raw }

func (Node) isExpr() {}

// LiteralKind classifies a scalar literal.
type LiteralKind int

const (
	LiteralString LiteralKind = iota + 1
	LiteralInt
	LiteralFloat
	LiteralBool
	LiteralNull
)

// Literal is a scalar constant; Value holds string, int64, float64, bool or nil.
type Literal struct {
	Node
	Kind  LiteralKind
	Value any
}

// Variable is a variable reference such as $request (Name without '$').
type Variable struct {
	Node
	Name string
}

// PropertyAccess is $obj->name or $obj?->name.
type PropertyAccess struct {
	Node
	Object   Expr
	Name     string
	NullSafe bool
}

// ArrayEntry is one element of an array literal. Key is nil for positional entries.
type ArrayEntry struct {
	Key    Expr
	Value  Expr
	Spread bool
}

// ArrayLiteral is [...] or array(...).
type ArrayLiteral struct {
	Node
	Entries []ArrayEntry
}

// Argument is a call argument; Name is set for named arguments.
type Argument struct {
	Name  string
	Value Expr
}

// Call covers method calls ($x->m()), static calls (Scope::m()) and function calls (m()).
type Call struct {
	Node
	Receiver Expr   // method call receiver
	Scope    string // static call class (resolved)
	Name     string
	Args     []Argument
	NullSafe bool
}

// New is an object creation expression.
type New struct {
	Node
	Class string // resolved class name
	Args  []Argument
}

// ClassRef is Foo::class.
type ClassRef struct {
	Node
	Class string
}

// ClassConstant is Foo::BAR.
type ClassConstant struct {
	Node
	Class string
	Name  string
}

// Closure is a closure or arrow function reduced to its returned expression
// and its top level expression statements.
type Closure struct {
	Node
	Params     []*Parameter
	Body       Expr
	Statements []Expr
}

// Ternary is cond ? then : else (Then is nil for ?:).
type Ternary struct {
	Node
	Cond Expr
	Then Expr
	Else Expr
}

// Coalesce is left ?? right.
type Coalesce struct {
	Node
	Left  Expr
	Right Expr
}

// Cast is (int) expr and friends.
type Cast struct {
	Node
	To    string
	Value Expr
}

// Opaque is any unsupported expression shape.
type Opaque struct {
	Node
	NodeType string
}

// Arg returns the argument at position idx or named name.
func Arg(args []Argument, idx int, name string) Expr {
	if name != "" {
		for _, arg := range args {
			if arg.Name == name {
				return arg.Value
			}
		}
	}
	positional := 0
	for _, arg := range args {
		if arg.Name != "" {
			continue
		}
		if positional == idx {
			return arg.Value
		}
		positional++
	}
	return nil
}

// IsThis reports whether e is $this.
func IsThis(e Expr) bool {
	v, ok := e.(*Variable)
	return ok && v.Name == "this"
}
