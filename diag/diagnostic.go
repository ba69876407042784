package diag

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Severity of a diagnostic entry.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one entry of the report surfaced to the CLI or a preview client.
type Diagnostic struct {
	RouteKey string   `json:"routeKey" yaml:"routeKey"`
	Severity Severity `json:"severity" yaml:"severity"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Path     string   `json:"path,omitempty" yaml:"path,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s [%s] %s", d.Severity, d.Kind, d.RouteKey, d.Message)
}

// FromError converts an error into a diagnostic for routeKey. Untyped errors are errors.
func FromError(routeKey string, err error) Diagnostic {
	ret := Diagnostic{RouteKey: routeKey, Severity: SeverityError, Message: err.Error()}
	var e *Error
	if errors.As(err, &e) {
		ret.Kind = e.Kind
		ret.Path = e.Path
		if e.RouteKey != "" && routeKey == "" {
			ret.RouteKey = e.RouteKey
		}
		switch e.Kind {
		case UnsupportedConstruct, AmbiguousType:
			ret.Severity = SeverityWarning
		}
	}
	return ret
}

// Sort orders diagnostics by route key, then kind, then message.
func Sort(list []Diagnostic) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.RouteKey != b.RouteKey {
			return a.RouteKey < b.RouteKey
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Message < b.Message
	})
}

// Collector accumulates diagnostics from concurrent producers.
type Collector struct {
	mux   sync.Mutex
	items []Diagnostic
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	c.mux.Lock()
	c.items = append(c.items, d)
	c.mux.Unlock()
}

// Warn records a warning for routeKey.
func (c *Collector) Warn(routeKey string, kind Kind, path, message string) {
	c.Add(Diagnostic{RouteKey: routeKey, Severity: SeverityWarning, Kind: kind, Path: path, Message: message})
}

// Items returns a sorted copy of the collected diagnostics.
func (c *Collector) Items() []Diagnostic {
	c.mux.Lock()
	ret := make([]Diagnostic, len(c.items))
	copy(ret, c.items)
	c.mux.Unlock()
	Sort(ret)
	return ret
}
