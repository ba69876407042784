// Package watcher keeps a generated document live while the source tree changes.
package watcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/composer"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/document"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"github.com/wadakatu/laravel-spectrum-sub013/logger"
	"github.com/wadakatu/laravel-spectrum-sub013/scheduler"
	"golang.org/x/time/rate"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// ChangeEvent tells subscribers which routes were recomputed after a path changed.
type ChangeEvent struct {
	Path              string   `json:"path" yaml:"path"`
	AffectedRouteKeys []string `json:"affectedRouteKeys" yaml:"affectedRouteKeys"`
	Batch             string   `json:"batch" yaml:"batch"` // shared by events of one burst
}

// Source is the incremental analysis backend, typically a pipeline.Generator.
type Source interface {
	scheduler.Analyzer
	// Invalidate drops cached facts of path.
	Invalidate(path string)
	// Dependencies returns source path to dependent route keys, as of the last analysis.
	Dependencies() map[string][]string
	// LoadRoutes reads the route table again; called when a route file changed.
	LoadRoutes(ctx context.Context) ([]*graph.RouteFact, error)
}

// Notifier emits changed project relative paths.
type Notifier interface {
	Events() <-chan string
	Errors() <-chan error
	Close() error
}

// Option configures a Watcher.
type Option func(w *Watcher)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(w *Watcher) {
		w.logger = log
	}
}

// WithDebounce sets the minimum interval between two recomputations.
func WithDebounce(interval time.Duration) Option {
	return func(w *Watcher) {
		if interval > 0 {
			w.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// Watcher owns the last good fragments and document of a watch session.
type Watcher struct {
	source    Source
	scheduler *scheduler.Scheduler
	options   document.Options
	logger    logger.Logger
	limiter   *rate.Limiter

	mux          sync.Mutex // single writer for recompute, finalize and publish
	routes       map[string]*graph.RouteFact
	routeFiles   map[string]bool
	fragments    map[string]*composer.Fragment
	diagnostics  map[string][]diag.Diagnostic
	dependencies map[string][]string
	document     *document.Document
	generation   uint64

	subMux      sync.Mutex
	subscribers map[int]chan ChangeEvent
	nextID      int
	dropped     atomic.Uint64
}

// New creates a watcher; call Prime before Run.
func New(source Source, sched *scheduler.Scheduler, options document.Options, opts ...Option) *Watcher {
	ret := &Watcher{
		source:      source,
		scheduler:   sched,
		options:     options,
		logger:      logger.Nop(),
		limiter:     rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		routes:      map[string]*graph.RouteFact{},
		routeFiles:  map[string]bool{},
		fragments:   map[string]*composer.Fragment{},
		diagnostics: map[string][]diag.Diagnostic{},
		subscribers: map[int]chan ChangeEvent{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Prime runs the initial full pass and builds the path to route key mapping.
// Pass-level failures are returned and leave the watcher without a document.
func (w *Watcher) Prime(ctx context.Context, routes []*graph.RouteFact) (*document.Document, error) {
	w.mux.Lock()
	defer w.mux.Unlock()

	aggregator, err := document.NewAggregator(w.options)
	if err != nil {
		return nil, err
	}
	report, err := w.scheduler.Run(ctx, routes, w.source, aggregator)
	if err != nil {
		return nil, err
	}
	doc, err := aggregator.Finalize()
	if err != nil {
		return nil, err
	}
	for _, route := range routes {
		w.routes[route.Key()] = route
		if route.File != "" {
			w.routeFiles[route.File] = true
		}
	}
	for key, fragment := range report.Fragments {
		w.fragments[key] = fragment
	}
	w.diagnostics = groupByRoute(report.Diagnostics)
	w.dependencies = w.source.Dependencies()
	w.document = doc
	w.generation++
	return doc, nil
}

// Document returns the current live document.
func (w *Watcher) Document() *document.Document {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.document
}

// Generation counts successful finalizations.
func (w *Watcher) Generation() uint64 {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.generation
}

// Diagnostics returns the diagnostics of the latest analysis of every route, sorted.
func (w *Watcher) Diagnostics() []diag.Diagnostic {
	w.mux.Lock()
	defer w.mux.Unlock()
	var ret []diag.Diagnostic
	for _, items := range w.diagnostics {
		ret = append(ret, items...)
	}
	diag.Sort(ret)
	return ret
}

// Affected returns the sorted route keys depending on path.
func (w *Watcher) Affected(path string) []string {
	w.mux.Lock()
	defer w.mux.Unlock()
	return append([]string(nil), w.dependencies[path]...)
}

// Subscribe registers a subscriber. Events are delivered in emission order; when the
// buffer is full the event is dropped for that subscriber. The returned function
// unsubscribes and closes the channel.
func (w *Watcher) Subscribe(buffer int) (<-chan ChangeEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan ChangeEvent, buffer)
	w.subMux.Lock()
	id := w.nextID
	w.nextID++
	w.subscribers[id] = ch
	w.subMux.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.subMux.Lock()
			delete(w.subscribers, id)
			w.subMux.Unlock()
			close(ch)
		})
	}
}

// Dropped returns the number of events lost to full subscriber buffers.
func (w *Watcher) Dropped() uint64 {
	return w.dropped.Load()
}

// Apply recomputes the routes depending on paths, re-finalizes the document and
// publishes the change events. A changed route file reloads the route table: routes
// whose handler changed or that were added are recomputed, removed routes leave the
// document. Each route key is reported once per batch, under the first changed path
// (in sorted order) that affects it. A route that fails keeps its previous fragment;
// if the route table cannot be reloaded or the new document cannot be finalized,
// the previous document stays live and the error is returned.
func (w *Watcher) Apply(ctx context.Context, paths ...string) ([]ChangeEvent, error) {
	w.mux.Lock()
	defer w.mux.Unlock()

	paths = dedupe(paths)
	reload := false
	for _, path := range paths {
		w.source.Invalidate(path)
		reload = reload || w.routeFiles[path]
	}

	routes := w.routes
	var table *tableChange
	if reload {
		fresh, err := w.source.LoadRoutes(ctx)
		if err != nil {
			w.logger.Error().Err(err).Strs("paths", paths).Msg("route table kept at previous generation")
			return nil, fmt.Errorf("failed to reload routes: %w", err)
		}
		if table, err = diffRoutes(w.routes, fresh); err != nil {
			return nil, err
		}
		routes = table.routes
	}

	byPath := make(map[string][]string, len(paths))
	affected := map[string]bool{}
	for _, path := range paths {
		var keys []string
		if w.routeFiles[path] && table != nil {
			keys = table.keysOf(path)
		} else {
			for _, key := range w.dependencies[path] {
				if _, ok := routes[key]; ok {
					keys = append(keys, key)
				}
			}
		}
		byPath[path] = keys
		for _, key := range keys {
			affected[key] = true
		}
	}
	if len(affected) == 0 {
		w.logger.Debug().Strs("paths", paths).Msg("change has no dependent routes")
		return nil, nil
	}

	var recompute []*graph.RouteFact
	for _, key := range sortedKeys(affected) {
		if route, ok := routes[key]; ok {
			recompute = append(recompute, route)
		}
	}

	started := time.Now()
	recomputed := &collector{fragments: map[string]*composer.Fragment{}}
	report, err := w.scheduler.Run(ctx, recompute, w.source, recomputed)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute %s: %w", strings.Join(paths, ", "), err)
	}

	next := make(map[string]*composer.Fragment, len(w.fragments)+len(recomputed.fragments))
	for key, fragment := range w.fragments {
		if _, ok := routes[key]; ok {
			next[key] = fragment
		}
	}
	for key, fragment := range recomputed.fragments {
		next[key] = fragment
	}
	doc, err := w.finalize(next)
	if err != nil {
		w.logger.Error().Err(err).Strs("paths", paths).Msg("document kept at previous generation")
		return nil, err
	}

	grouped := groupByRoute(report.Diagnostics)
	for key := range affected {
		if _, ok := routes[key]; ok {
			w.diagnostics[key] = grouped[key]
			continue
		}
		delete(w.diagnostics, key)
	}
	for _, key := range report.Failed {
		w.logger.Warn().Str("route", key).Msg("recompute failed, previous fragment retained")
	}
	if table != nil {
		for _, route := range routes {
			if route.File != "" {
				w.routeFiles[route.File] = true
			}
		}
	}
	w.routes = routes
	w.fragments = next
	w.dependencies = live(w.source.Dependencies(), routes)
	w.document = doc
	w.generation++

	batch := uuid.NewString()
	reported := map[string]bool{}
	var events []ChangeEvent
	for _, path := range paths {
		var keys []string
		for _, key := range dedupe(byPath[path]) {
			if !reported[key] {
				reported[key] = true
				keys = append(keys, key)
			}
		}
		if len(keys) == 0 {
			continue
		}
		events = append(events, ChangeEvent{Path: path, AffectedRouteKeys: keys, Batch: batch})
	}
	for _, event := range events {
		w.publish(event)
	}
	w.logger.Info().Strs("paths", paths).Int("routes", len(recompute)).Int("failed", len(report.Failed)).
		Dur("elapsed", time.Since(started)).Msg("document regenerated")
	return events, nil
}

// Run consumes notifier events until ctx is done or the notifier closes. Events that
// arrive while a recomputation is held back by the debounce limiter are coalesced
// into the next burst.
func (w *Watcher) Run(ctx context.Context, notifier Notifier) error {
	events := notifier.Events()
	errs := notifier.Errors()
	for {
		var first string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn().Err(err).Msg("notifier error")
			continue
		case path, ok := <-events:
			if !ok {
				return nil
			}
			first = path
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		burst := []string{first}
	drain:
		for {
			select {
			case path, ok := <-events:
				if !ok {
					break drain
				}
				burst = append(burst, path)
			default:
				break drain
			}
		}
		if _, err := w.Apply(ctx, burst...); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn().Err(err).Strs("paths", burst).Msg("regeneration failed")
		}
	}
}

func (w *Watcher) finalize(fragments map[string]*composer.Fragment) (*document.Document, error) {
	aggregator, err := document.NewAggregator(w.options)
	if err != nil {
		return nil, err
	}
	for _, fragment := range fragments {
		if err := aggregator.Add(fragment); err != nil {
			return nil, err
		}
	}
	return aggregator.Finalize()
}

func (w *Watcher) publish(event ChangeEvent) {
	w.subMux.Lock()
	defer w.subMux.Unlock()
	ids := make([]int, 0, len(w.subscribers))
	for id := range w.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		select {
		case w.subscribers[id] <- event:
		default:
			w.dropped.Add(1)
			w.logger.Warn().Int("subscriber", id).Str("path", event.Path).Msg("subscriber buffer full, event dropped")
		}
	}
}

// collector keeps recomputed fragments out of the live set until finalize succeeds.
type collector struct {
	mux       sync.Mutex
	fragments map[string]*composer.Fragment
}

func (c *collector) Add(fragment *composer.Fragment) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.fragments[fragment.RouteKey]; ok {
		return &diag.Error{Kind: diag.DuplicateRoute, RouteKey: fragment.RouteKey, Message: "route key declared more than once"}
	}
	c.fragments[fragment.RouteKey] = fragment
	return nil
}

// tableChange is the difference between the live route table and a reloaded one.
type tableChange struct {
	routes  map[string]*graph.RouteFact
	changed map[string]string // route key to the table file that declares or declared it
}

// diffRoutes reports routes that were added, removed or bound to another handler.
func diffRoutes(current map[string]*graph.RouteFact, fresh []*graph.RouteFact) (*tableChange, error) {
	ret := &tableChange{routes: make(map[string]*graph.RouteFact, len(fresh)), changed: map[string]string{}}
	for _, route := range fresh {
		key := route.Key()
		if _, ok := ret.routes[key]; ok {
			return nil, &diag.Error{Kind: diag.DuplicateRoute, Path: route.File, RouteKey: key, Message: "route key declared more than once"}
		}
		ret.routes[key] = route
		if previous, ok := current[key]; !ok || previous.Handler != route.Handler {
			ret.changed[key] = route.File
		}
	}
	for key, route := range current {
		if _, ok := ret.routes[key]; !ok {
			ret.changed[key] = route.File
		}
	}
	return ret, nil
}

func (c *tableChange) keysOf(file string) []string {
	var ret []string
	for key, declaredIn := range c.changed {
		if declaredIn == file {
			ret = append(ret, key)
		}
	}
	sort.Strings(ret)
	return ret
}

// live drops route keys that are no longer in the route table.
func live(dependencies map[string][]string, routes map[string]*graph.RouteFact) map[string][]string {
	ret := make(map[string][]string, len(dependencies))
	for path, keys := range dependencies {
		var kept []string
		for _, key := range keys {
			if _, ok := routes[key]; ok {
				kept = append(kept, key)
			}
		}
		if len(kept) > 0 {
			ret[path] = kept
		}
	}
	return ret
}

func sortedKeys(set map[string]bool) []string {
	ret := make([]string, 0, len(set))
	for key := range set {
		ret = append(ret, key)
	}
	sort.Strings(ret)
	return ret
}

func groupByRoute(items []diag.Diagnostic) map[string][]diag.Diagnostic {
	ret := map[string][]diag.Diagnostic{}
	for _, item := range items {
		ret[item.RouteKey] = append(ret[item.RouteKey], item)
	}
	return ret
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	ret := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		ret = append(ret, value)
	}
	sort.Strings(ret)
	return ret
}
