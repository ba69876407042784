package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/source"
)

// FileLoader returns the extracted facts of a source file; cache.Cache implements it.
type FileLoader interface {
	Load(ctx context.Context, path string, kind graph.Kind) (*graph.File, error)
}

// unitLoader resolves classes through PSR-4 and the extraction cache. Every path it
// touches is recorded on the tracker carried by ctx, including paths that failed to load.
type unitLoader struct {
	locator *source.Locator
	files   FileLoader
}

func (l *unitLoader) LoadUnit(ctx context.Context, class string) (*graph.Unit, error) {
	class = strings.TrimPrefix(class, `\`)
	path, ok := l.locator.Path(class)
	if !ok {
		return nil, diag.New(diag.SourceNotFound, "", "no PSR-4 prefix for "+class)
	}
	trackerFrom(ctx).touch(path)
	file, err := l.files.Load(ctx, path, kindOf(class))
	if err != nil {
		return nil, err
	}
	unit := file.Unit(class)
	if unit == nil {
		unit = file.Unit(graph.ShortClassName(class))
	}
	if unit == nil {
		return nil, diag.New(diag.SourceNotFound, path, "class "+class+" is not declared")
	}
	return unit, nil
}

func kindOf(class string) graph.Kind {
	short := graph.ShortClassName(class)
	switch {
	case strings.HasSuffix(short, "Controller"):
		return graph.KindController
	case strings.HasSuffix(short, "Resource"), strings.HasSuffix(short, "Collection"):
		return graph.KindResource
	}
	return graph.KindRule
}

type trackerKey struct{}

// tracker collects the source paths one route analysis depends on.
type tracker struct {
	mux   sync.Mutex
	paths map[string]bool
}

func withTracker(ctx context.Context) (context.Context, *tracker) {
	t := &tracker{paths: map[string]bool{}}
	return context.WithValue(ctx, trackerKey{}, t), t
}

func trackerFrom(ctx context.Context) *tracker {
	t, _ := ctx.Value(trackerKey{}).(*tracker)
	return t
}

func (t *tracker) touch(path string) {
	if t == nil {
		return
	}
	t.mux.Lock()
	t.paths[path] = true
	t.mux.Unlock()
}

func (t *tracker) list() []string {
	t.mux.Lock()
	defer t.mux.Unlock()
	ret := make([]string, 0, len(t.paths))
	for path := range t.paths {
		ret = append(ret, path)
	}
	sort.Strings(ret)
	return ret
}

// dependencies maps route keys to the paths their last analysis touched.
type dependencies struct {
	mux     sync.RWMutex
	byRoute map[string][]string
}

func (d *dependencies) set(routeKey string, paths []string) {
	d.mux.Lock()
	d.byRoute[routeKey] = paths
	d.mux.Unlock()
}

// inverted returns path to sorted route keys.
func (d *dependencies) inverted() map[string][]string {
	d.mux.RLock()
	defer d.mux.RUnlock()
	ret := map[string][]string{}
	for key, paths := range d.byRoute {
		for _, path := range paths {
			ret[path] = append(ret[path], key)
		}
	}
	for path := range ret {
		sort.Strings(ret[path])
	}
	return ret
}
