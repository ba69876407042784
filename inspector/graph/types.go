package graph

import (
	"strings"
)

// Kind is the extraction hint passed to the inspector.
type Kind string

const (
	// KindRule hints at a FormRequest or a custom validation rule class.
	KindRule Kind = "rule"
	// KindResource hints at a JsonResource / ResourceCollection class.
	KindResource Kind = "resource"
	// KindController hints at a controller class.
	KindController Kind = "controller"
	// KindRoutes hints at a route table file.
	KindRoutes Kind = "routes"
)

// Unit represents one analyzable class extracted from a source file.
// A Unit is immutable once extracted; it is shared read-only through the extraction cache.
type Unit struct {
	Name         string            // Fully qualified class name
	ShortName    string            // Class name without namespace
	Path         string            // Source path
	Namespace    string            // Declared namespace
	Extends      string            // Parent class (resolved)
	Implements   []string          // Implemented interfaces (resolved)
	Imports      map[string]string // Alias to fully qualified name
	Capabilities Capability        // Capability flags detected at extraction
	Constructor  []*Parameter      // Constructor parameters with defaults
	Methods      []*Method         // Declared methods in source order
	Attributes   []*Attribute      // Class level attributes
	Location     *Location

	methodMap map[string]int
}

// Method represents a class method with its returned expression trees.
type Method struct {
	Name       string
	Parameters []*Parameter
	Returns    []Expr // Returned expressions in declaration order
	IsStatic   bool
	Location   *Location
}

// Return returns the last returned expression, or nil.
func (m *Method) Return() Expr {
	if m == nil || len(m.Returns) == 0 {
		return nil
	}
	return m.Returns[len(m.Returns)-1]
}

// Parameter represents a method or constructor parameter.
type Parameter struct {
	Name     string // Name without the leading '$'
	Type     string // Declared type (resolved class name when applicable)
	Nullable bool
	Default  Expr // Default value or nil
	Promoted bool // Constructor property promotion
}

// Attribute represents a PHP 8 attribute, e.g. #[Schema(type: 'string')].
type Attribute struct {
	Name string
	Args []Argument
}

// Location identifies a span of source.
type Location struct {
	Line  int
	Start int
	End   int
}

// Method returns a declared method by case-insensitive name.
func (u *Unit) Method(name string) *Method {
	if u == nil {
		return nil
	}
	if u.methodMap == nil {
		for _, method := range u.Methods {
			if method != nil && strings.EqualFold(method.Name, name) {
				return method
			}
		}
		return nil
	}
	if idx, ok := u.methodMap[strings.ToLower(name)]; ok && idx < len(u.Methods) {
		return u.Methods[idx]
	}
	return nil
}

// HasMethod reports whether a method is declared.
func (u *Unit) HasMethod(name string) bool {
	return u.Method(name) != nil
}

// Has reports whether the unit carries the capability.
func (u *Unit) Has(c Capability) bool {
	return u != nil && u.Capabilities.Has(c)
}

// Attribute returns the first attribute whose short name matches one of names.
func (u *Unit) Attribute(names ...string) *Attribute {
	for _, attr := range u.Attributes {
		short := attr.Name
		if idx := strings.LastIndex(short, `\`); idx != -1 {
			short = short[idx+1:]
		}
		for _, name := range names {
			if strings.EqualFold(short, name) || strings.EqualFold(attr.Name, name) {
				return attr
			}
		}
	}
	return nil
}

// Index builds lookup maps; the inspector calls it before publishing the unit.
func (u *Unit) Index() {
	u.methodMap = make(map[string]int, len(u.Methods))
	for i, method := range u.Methods {
		if method == nil {
			continue
		}
		key := strings.ToLower(method.Name)
		if _, ok := u.methodMap[key]; !ok {
			u.methodMap[key] = i
		}
	}
}

// Resolve maps a class name as written in this unit's file to a fully qualified name.
func (u *Unit) Resolve(name string) string {
	return ResolveName(name, u.Namespace, u.Imports)
}

// ResolveName resolves name against namespace and use-imports.
func ResolveName(name, namespace string, imports map[string]string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, `\`) {
		return strings.TrimPrefix(name, `\`)
	}
	switch strings.ToLower(name) {
	case "self", "static", "parent", "string", "int", "float", "bool", "array", "mixed", "object", "void", "null", "iterable", "callable":
		return name
	}
	head, rest := name, ""
	if idx := strings.Index(name, `\`); idx != -1 {
		head, rest = name[:idx], name[idx:]
	}
	if fqcn, ok := imports[head]; ok {
		return fqcn + rest
	}
	if namespace == "" {
		return name
	}
	return namespace + `\` + name
}

// ShortClassName returns the last segment of a qualified class name.
func ShortClassName(name string) string {
	if idx := strings.LastIndex(name, `\`); idx != -1 {
		return name[idx+1:]
	}
	return name
}
