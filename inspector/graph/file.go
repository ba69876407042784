package graph

import "strings"

// File holds the facts extracted from one source file.
type File struct {
	Path      string            // Source path
	Hash      uint64            // Content hash (highwayhash)
	Kind      Kind              // Extraction hint
	Namespace string            // Declared namespace
	Imports   map[string]string // use-imports: alias to fully qualified name
	Units     []*Unit           // Classes declared in the file, source order
	Routes    []*RouteFact      // Route declarations (routes files only)
}

// RouteFact is a statically declared route.
type RouteFact struct {
	Method  string `yaml:"method"`
	Path    string `yaml:"path"`
	Handler string `yaml:"handler"` // Fully qualified Controller@method, or Controller for invokable
	Line    int    `yaml:"-"`
	File    string `yaml:"-"` // Route table file the route was declared in
}

// Key returns the stable route key, e.g. "GET /users/{user}".
func (r *RouteFact) Key() string {
	return RouteKey(r.Method, r.Path)
}

// RouteKey builds a route key from a method and a path.
func RouteKey(method, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.ToUpper(method) + " " + path
}

// Unit returns the unit with the given fully qualified or short name.
func (f *File) Unit(name string) *Unit {
	if f == nil {
		return nil
	}
	for _, unit := range f.Units {
		if unit.Name == name || unit.ShortName == name {
			return unit
		}
	}
	return nil
}

// Primary returns the first declared class.
func (f *File) Primary() *Unit {
	if f == nil || len(f.Units) == 0 {
		return nil
	}
	return f.Units[0]
}
