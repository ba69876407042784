// Package document merges endpoint fragments into one versioned document.
package document

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/composer"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
)

// DefaultDialect is the JSON schema dialect declared by 3.1 documents.
const DefaultDialect = "https://spec.openapis.org/oas/3.1/dialect/base"

// State is the lifecycle stage of an aggregator.
type State int

const (
	Empty State = iota
	Accumulating
	Finalizing
	Done
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "Accumulating"
	case Finalizing:
		return "Finalizing"
	case Done:
		return "Done"
	}
	return "Empty"
}

// Info is the document info section.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Server is one entry of the servers section.
type Server struct {
	URL         string
	Description string
}

// Options are the global sections of a document.
type Options struct {
	Version  string // target version, e.g. 3.0.3 or 3.1.0
	Dialect  string // 3.1 only; DefaultDialect when empty
	Info     Info
	Servers  []Server
	Security []map[string][]string
}

// Aggregator accumulates fragments for one generation pass. Fragments may be added
// concurrently and in any order; a route key may be added once.
type Aggregator struct {
	mux        sync.Mutex
	state      State
	family     schema.Family
	options    Options
	fragments  map[string]*composer.Fragment
	duplicates []string
}

// NewAggregator creates an empty aggregator for the target version.
func NewAggregator(options Options) (*Aggregator, error) {
	family, err := schema.FamilyOf(options.Version)
	if err != nil {
		return nil, diag.Wrap(diag.InvalidDocumentShape, "", err)
	}
	if family == schema.FamilyB && options.Dialect == "" {
		options.Dialect = DefaultDialect
	}
	return &Aggregator{
		family:    family,
		options:   options,
		fragments: make(map[string]*composer.Fragment),
	}, nil
}

// Family returns the target version family.
func (a *Aggregator) Family() schema.Family {
	return a.family
}

// State returns the current lifecycle stage.
func (a *Aggregator) State() State {
	a.mux.Lock()
	defer a.mux.Unlock()
	return a.state
}

// Add stores a fragment keyed by its route key. A second fragment for the same key
// fails with DuplicateRoute, and so will Finalize.
func (a *Aggregator) Add(fragment *composer.Fragment) error {
	a.mux.Lock()
	defer a.mux.Unlock()
	switch a.state {
	case Finalizing, Done:
		return fmt.Errorf("aggregator is %s: cannot add %s", a.state, fragment.RouteKey)
	}
	a.state = Accumulating
	if _, ok := a.fragments[fragment.RouteKey]; ok {
		a.duplicates = append(a.duplicates, fragment.RouteKey)
		return &diag.Error{Kind: diag.DuplicateRoute, RouteKey: fragment.RouteKey, Message: "route key declared more than once"}
	}
	a.fragments[fragment.RouteKey] = fragment
	return nil
}

// Len returns the number of accepted fragments.
func (a *Aggregator) Len() int {
	a.mux.Lock()
	defer a.mux.Unlock()
	return len(a.fragments)
}

// Finalize renders the document. It fails with DuplicateRoute if any key was added
// twice and with InvalidDocumentShape if the output mixes version idioms; in both
// cases no document is returned. An aggregator finalizes once.
func (a *Aggregator) Finalize() (*Document, error) {
	a.mux.Lock()
	if a.state == Finalizing || a.state == Done {
		a.mux.Unlock()
		return nil, fmt.Errorf("aggregator is %s", a.state)
	}
	a.state = Finalizing
	fragments := make([]*composer.Fragment, 0, len(a.fragments))
	for _, fragment := range a.fragments {
		fragments = append(fragments, fragment)
	}
	duplicates := append([]string(nil), a.duplicates...)
	a.mux.Unlock()

	defer func() {
		a.mux.Lock()
		a.state = Done
		a.mux.Unlock()
	}()

	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, &diag.Error{Kind: diag.DuplicateRoute, RouteKey: duplicates[0], Message: fmt.Sprintf("%d duplicate route key(s)", len(duplicates))}
	}
	sort.Slice(fragments, func(i, j int) bool {
		return fragments[i].RouteKey < fragments[j].RouteKey
	})
	root := render(a.family, a.options, fragments)
	if err := Validate(root, a.family); err != nil {
		return nil, err
	}
	return &Document{Family: a.family, Version: a.options.Version, root: root, routes: len(fragments)}, nil
}
