// Package scheduler fans per-route analysis out over a bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/composer"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"github.com/wadakatu/laravel-spectrum-sub013/logger"
	"golang.org/x/sync/errgroup"
)

// Analyzer computes the fragment of one route. Issues are non-fatal findings; a
// non-nil error fails the route.
type Analyzer interface {
	Analyze(ctx context.Context, route *graph.RouteFact) (*composer.Fragment, []*diag.Error, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, route *graph.RouteFact) (*composer.Fragment, []*diag.Error, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, route *graph.RouteFact) (*composer.Fragment, []*diag.Error, error) {
	return f(ctx, route)
}

// Sink receives completed fragments; document.Aggregator implements it.
type Sink interface {
	Add(fragment *composer.Fragment) error
}

// Report summarizes one pass.
type Report struct {
	Fragments   map[string]*composer.Fragment // published fragments by route key
	Diagnostics []diag.Diagnostic             // sorted by route key
	Failed      []string                      // sorted route keys without a fragment
}

type passError struct {
	key string
	err error
}

// Scheduler runs route analysis with at most Workers tasks in flight.
type Scheduler struct {
	workers int
	logger  logger.Logger
}

// New creates a scheduler; workers <= 0 uses GOMAXPROCS.
func New(workers int, log logger.Logger) *Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{workers: workers, logger: log}
}

// Workers returns the concurrency bound.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Run analyzes every route and publishes successful fragments to sink. A failing
// route becomes a diagnostic and never cancels its siblings. Once ctx is done no
// further task starts and no fragment is published; Run then returns ctx.Err().
// A pass-level sink failure such as DuplicateRoute is returned after all tasks end.
func (s *Scheduler) Run(ctx context.Context, routes []*graph.RouteFact, analyzer Analyzer, sink Sink) (*Report, error) {
	var (
		collector diag.Collector
		mux       sync.Mutex
		published = make(map[string]*composer.Fragment, len(routes))
		failed    []string
		passErrs  []passError
	)
	fail := func(key string) {
		mux.Lock()
		failed = append(failed, key)
		mux.Unlock()
	}

	started := time.Now()
	group := errgroup.Group{}
	group.SetLimit(s.workers)
	for _, route := range routes {
		if ctx.Err() != nil {
			break
		}
		route := route
		group.Go(func() error {
			key := route.Key()
			if ctx.Err() != nil {
				return nil
			}
			begin := time.Now()
			fragment, issues, err := s.analyze(ctx, route, analyzer)
			for _, issue := range issues {
				collector.Add(diag.FromError(key, issue))
			}
			if err == nil && fragment == nil {
				err = diag.New(diag.UnresolvedHandler, route.Handler, "no fragment produced")
			}
			if err != nil {
				collector.Add(diag.FromError(key, err))
				s.logger.Warn().Str("route", key).Err(err).Msg("route analysis failed")
				fail(key)
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			if err := sink.Add(fragment); err != nil {
				collector.Add(diag.FromError(key, err))
				mux.Lock()
				passErrs = append(passErrs, passError{key: key, err: err})
				mux.Unlock()
				fail(key)
				return nil
			}
			mux.Lock()
			if _, ok := published[key]; !ok {
				published[key] = fragment
			}
			mux.Unlock()
			s.logger.Debug().Str("route", key).Dur("elapsed", time.Since(begin)).Msg("route analyzed")
			return nil
		})
	}
	_ = group.Wait()

	sort.Strings(failed)
	report := &Report{Fragments: published, Diagnostics: collector.Items(), Failed: failed}
	s.logger.Info().Int("routes", len(routes)).Int("published", len(published)).Int("failed", len(failed)).
		Dur("elapsed", time.Since(started)).Msg("analysis pass finished")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(passErrs) > 0 {
		sort.Slice(passErrs, func(i, j int) bool {
			return passErrs[i].key < passErrs[j].key
		})
		return report, passErrs[0].err
	}
	return report, nil
}

// analyze isolates a panicking analyzer to its own route.
func (s *Scheduler) analyze(ctx context.Context, route *graph.RouteFact, analyzer Analyzer) (fragment *composer.Fragment, issues []*diag.Error, err error) {
	defer func() {
		if r := recover(); r != nil {
			fragment, err = nil, fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	return analyzer.Analyze(ctx, route)
}
