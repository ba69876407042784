// Package pipeline wires extraction, resolution, composition and aggregation into
// one generation pass over a Laravel application.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/composer"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/constraint"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/transform"
	"github.com/wadakatu/laravel-spectrum-sub013/config"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/document"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/cache"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/repository"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/route"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/source"
	"github.com/wadakatu/laravel-spectrum-sub013/logger"
	"github.com/wadakatu/laravel-spectrum-sub013/scheduler"
)

// DefaultControllerNamespace qualifies controller names written without a namespace.
const DefaultControllerNamespace = `App\Http\Controllers`

// Result is the outcome of one generation pass.
type Result struct {
	Document    *document.Document // nil when the pass failed
	Diagnostics []diag.Diagnostic
	Routes      int
	Failed      []string
}

// Option configures a Generator.
type Option func(g *Generator)

// WithReader replaces the source reader, e.g. with an afs mem:// rooted reader.
func WithReader(reader source.Reader) Option {
	return func(g *Generator) {
		g.reader = reader
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(g *Generator) {
		g.logger = log
	}
}

// Generator analyses routes of one application. It owns the extraction cache, so a
// Generator used by a watcher re-parses only files whose content changed.
type Generator struct {
	config    *config.Config
	reader    source.Reader
	logger    logger.Logger
	cache     *cache.Cache
	loader    *unitLoader
	routes    *route.Provider
	composer  *composer.Composer
	scheduler *scheduler.Scheduler
	deps      *dependencies
}

// New creates a generator for cfg.
func New(cfg *config.Config, opts ...Option) *Generator {
	ret := &Generator{config: cfg, logger: logger.Nop()}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.reader == nil {
		ret.reader = source.New(cfg.Source.Root)
	}
	ret.cache = cache.New(inspector.NewFactory(), ret.reader)
	ret.loader = &unitLoader{locator: source.NewLocator(ret.autoload()), files: ret.cache}
	ret.routes = route.New(ret.cache, ret.reader)
	ret.composer = composer.New(constraint.NewResolver(ret.loader), transform.NewResolver(ret.loader), composer.WithWrap(cfg.Response.Wrap))
	ret.scheduler = scheduler.New(cfg.Workers, ret.logger)
	ret.deps = &dependencies{byRoute: map[string][]string{}}
	return ret
}

// autoload merges the composer autoload.psr-4 map with the configured one; configured
// prefixes win.
func (g *Generator) autoload() map[string]string {
	ret := map[string]string{}
	project, err := repository.New(g.reader).Detect(context.Background(), g.config.Source.Root)
	if err != nil {
		g.logger.Warn().Err(err).Msg("failed to read " + repository.Manifest)
	} else {
		for prefix, dir := range project.PSR4 {
			ret[prefix] = dir
		}
		g.logger.Debug().Str("project", project.Name).Int("psr4", len(project.PSR4)).Msg("project detected")
	}
	for prefix, dir := range g.config.Source.PSR4 {
		ret[prefix] = dir
	}
	return ret
}

// Options returns the global document sections from the configuration.
func (g *Generator) Options() document.Options {
	ret := document.Options{
		Version:  g.config.OpenAPI.Version,
		Dialect:  g.config.OpenAPI.Dialect,
		Info:     document.Info{Title: g.config.Info.Title, Version: g.config.Info.Version, Description: g.config.Info.Description},
		Security: g.config.Security,
	}
	for _, server := range g.config.Servers {
		ret.Servers = append(ret.Servers, document.Server{URL: server.URL, Description: server.Description})
	}
	return ret
}

// Scheduler returns the worker pool used for analysis.
func (g *Generator) Scheduler() *scheduler.Scheduler {
	return g.scheduler
}

// Cache returns the extraction cache.
func (g *Generator) Cache() *cache.Cache {
	return g.cache
}

// Routes loads the configured route table.
func (g *Generator) Routes(ctx context.Context) (*route.Table, error) {
	return g.routes.Load(ctx, g.config.Source.Prefix, g.config.Source.Routes...)
}

// LoadRoutes reloads the route table, e.g. after a route file changed.
func (g *Generator) LoadRoutes(ctx context.Context) ([]*graph.RouteFact, error) {
	table, err := g.Routes(ctx)
	if err != nil {
		return nil, err
	}
	return table.Routes, nil
}

// Generate runs a full pass. Per-route failures become diagnostics; pass-level
// failures return an error and no document.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	started := time.Now()
	table, err := g.Routes(ctx)
	if err != nil {
		return nil, err
	}
	aggregator, err := document.NewAggregator(g.Options())
	if err != nil {
		return nil, err
	}
	report, err := g.scheduler.Run(ctx, table.Routes, g, aggregator)
	ret := &Result{Routes: len(table.Routes)}
	if report != nil {
		ret.Diagnostics = report.Diagnostics
		ret.Failed = report.Failed
	}
	if err != nil {
		return ret, err
	}
	doc, err := aggregator.Finalize()
	if err != nil {
		return ret, err
	}
	ret.Document = doc
	stats := g.cache.Stats()
	g.logger.Info().Int("routes", ret.Routes).Int("diagnostics", len(ret.Diagnostics)).
		Uint64("cacheHits", stats.Hits).Uint64("cacheMisses", stats.Misses).
		Dur("elapsed", time.Since(started)).Msg("document generated")
	return ret, nil
}

// Invalidate drops the cached facts of path.
func (g *Generator) Invalidate(path string) {
	g.cache.Invalidate(path)
}

// Dependencies returns source path to dependent route keys.
func (g *Generator) Dependencies() map[string][]string {
	return g.deps.inverted()
}

// Analyze resolves the handler of route and composes its fragment. Every source
// path touched on the way, and the route file itself, is recorded as a dependency
// of the route.
func (g *Generator) Analyze(ctx context.Context, r *graph.RouteFact) (*composer.Fragment, []*diag.Error, error) {
	ctx, track := withTracker(ctx)
	if r.File != "" {
		track.touch(r.File)
	}
	defer func() {
		g.deps.set(r.Key(), track.list())
	}()

	input, issues, err := g.resolve(ctx, r)
	if err != nil {
		return nil, issues, err
	}
	fragment, composed := g.composer.Compose(ctx, input)
	return fragment, append(issues, composed...), nil
}

func (g *Generator) resolve(ctx context.Context, r *graph.RouteFact) (composer.Input, []*diag.Error, error) {
	in := composer.Input{Route: r}
	if r.Handler == "" {
		return in, nil, &diag.Error{Kind: diag.UnresolvedHandler, RouteKey: r.Key(), Message: "route has no static handler"}
	}
	class, method := splitHandler(r.Handler)
	controller, err := g.loader.LoadUnit(ctx, class)
	if err != nil {
		if diag.KindOf(err) == diag.UnparsableSyntax {
			return in, nil, err
		}
		return in, nil, &diag.Error{Kind: diag.UnresolvedHandler, RouteKey: r.Key(), Message: "controller " + class, Err: err}
	}
	action := controller.Method(method)
	if action == nil {
		return in, nil, &diag.Error{Kind: diag.UnresolvedHandler, Path: controller.Path, RouteKey: r.Key(), Message: fmt.Sprintf("%s has no method %s", controller.ShortName, method)}
	}

	for _, param := range action.Parameters {
		if !isClassType(param.Type) {
			continue
		}
		unit, err := g.loader.LoadUnit(ctx, param.Type)
		if err != nil {
			if diag.KindOf(err) == diag.UnparsableSyntax {
				return in, nil, err
			}
			continue
		}
		if unit.Has(graph.CapFormRequest) {
			in.Request = unit
			break
		}
	}

	var issues []*diag.Error
	for i := len(action.Returns) - 1; i >= 0; i-- {
		unit, collection, err := g.resourceOf(ctx, action.Returns[i])
		if err != nil {
			return in, nil, err
		}
		if unit != nil {
			in.Resource, in.Collection = unit, collection
			break
		}
	}
	if in.Resource == nil && len(action.Returns) > 0 {
		issues = append(issues, diag.New(diag.UnsupportedConstruct, controller.Path, fmt.Sprintf("%s::%s returns no resource; response schema omitted", controller.ShortName, action.Name)))
	}
	return in, issues, nil
}

// resourceOf recognizes new X(...), X::make(...), X::collection(...), new XCollection(...)
// and method chains on any of them.
func (g *Generator) resourceOf(ctx context.Context, expr graph.Expr) (*graph.Unit, bool, error) {
	switch actual := expr.(type) {
	case *graph.New:
		return g.resourceClass(ctx, actual.Class, false)
	case *graph.Call:
		if actual.Scope != "" {
			switch strings.ToLower(actual.Name) {
			case "collection":
				return g.resourceClass(ctx, actual.Scope, true)
			case "make":
				return g.resourceClass(ctx, actual.Scope, false)
			}
			return nil, false, nil
		}
		if actual.Receiver != nil {
			return g.resourceOf(ctx, actual.Receiver)
		}
	}
	return nil, false, nil
}

func (g *Generator) resourceClass(ctx context.Context, class string, collection bool) (*graph.Unit, bool, error) {
	unit, err := g.loader.LoadUnit(ctx, class)
	if err != nil {
		if diag.KindOf(err) == diag.UnparsableSyntax {
			return nil, false, err
		}
		return nil, false, nil
	}
	switch {
	case unit.Has(graph.CapResourceCollection):
		base := strings.TrimSuffix(unit.Name, "Collection")
		for _, candidate := range []string{base + "Resource", base} {
			wrapped, err := g.loader.LoadUnit(ctx, candidate)
			if err == nil && wrapped.Has(graph.CapJSONResource) {
				return wrapped, true, nil
			}
		}
	case unit.Has(graph.CapJSONResource):
		return unit, collection, nil
	}
	return nil, false, nil
}

// splitHandler splits Controller@method; an invokable controller maps to __invoke.
func splitHandler(handler string) (string, string) {
	class, method := handler, "__invoke"
	if idx := strings.LastIndex(handler, "@"); idx != -1 {
		class, method = handler[:idx], handler[idx+1:]
	}
	class = strings.TrimPrefix(class, `\`)
	if !strings.Contains(class, `\`) {
		class = DefaultControllerNamespace + `\` + class
	}
	return class, method
}

func isClassType(name string) bool {
	name = strings.TrimPrefix(name, "?")
	if name == "" {
		return false
	}
	if strings.Contains(name, `\`) {
		return true
	}
	return unicode.IsUpper([]rune(name)[0])
}
