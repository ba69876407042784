// Package route provides the route table: static PHP route files or YAML tables.
package route

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/source"
	"gopkg.in/yaml.v3"
)

// FileLoader returns the extracted facts of a source file; cache.Cache implements it.
type FileLoader interface {
	Load(ctx context.Context, path string, kind graph.Kind) (*graph.File, error)
}

// Table is the ordered route list of an application.
type Table struct {
	Routes []*graph.RouteFact
	// Files lists the table sources that were read.
	Files []string
}

// Provider loads route tables.
type Provider struct {
	files  FileLoader
	reader source.Reader
}

// New creates a provider; PHP files go through files, YAML tables through reader.
func New(files FileLoader, reader source.Reader) *Provider {
	return &Provider{files: files, reader: reader}
}

// Load reads every table file in order and applies prefix to each path. Route order
// is preserved; duplicates are kept so the aggregator can report them. Each route
// records the table file it came from.
func (p *Provider) Load(ctx context.Context, prefix string, files ...string) (*Table, error) {
	ret := &Table{}
	for _, file := range files {
		var routes []*graph.RouteFact
		var err error
		switch strings.ToLower(path.Ext(file)) {
		case ".yaml", ".yml":
			routes, err = p.loadYAML(ctx, file)
		default:
			routes, err = p.loadPHP(ctx, file)
		}
		if err != nil {
			return nil, err
		}
		for _, route := range routes {
			route.Method = strings.ToUpper(route.Method)
			route.Path = Join(prefix, route.Path)
			route.File = file
		}
		ret.Routes = append(ret.Routes, routes...)
		ret.Files = append(ret.Files, file)
	}
	return ret, nil
}

func (p *Provider) loadPHP(ctx context.Context, file string) ([]*graph.RouteFact, error) {
	aFile, err := p.files.Load(ctx, file, graph.KindRoutes)
	if err != nil {
		return nil, fmt.Errorf("failed to load route file %s: %w", file, err)
	}
	ret := make([]*graph.RouteFact, 0, len(aFile.Routes))
	for _, route := range aFile.Routes {
		clone := *route
		ret = append(ret, &clone)
	}
	return ret, nil
}

type yamlTable struct {
	Routes []*graph.RouteFact `yaml:"routes"`
}

// loadYAML accepts either a top level list or a mapping with a routes list.
func (p *Provider) loadYAML(ctx context.Context, file string) ([]*graph.RouteFact, error) {
	data, err := p.reader.Read(ctx, file)
	if err != nil {
		return nil, err
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, diag.Wrap(diag.UnparsableSyntax, file, err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	var routes []*graph.RouteFact
	switch root.Content[0].Kind {
	case yaml.SequenceNode:
		err = root.Content[0].Decode(&routes)
	default:
		var table yamlTable
		err = root.Content[0].Decode(&table)
		routes = table.Routes
	}
	if err != nil {
		return nil, diag.Wrap(diag.UnparsableSyntax, file, err)
	}
	for i, route := range routes {
		if route == nil || route.Method == "" || route.Path == "" {
			return nil, diag.New(diag.UnparsableSyntax, file, fmt.Sprintf("route %d: method and path are required", i))
		}
	}
	return routes, nil
}

// Join prefixes a route path, normalizing slashes.
func Join(prefix, route string) string {
	prefix = strings.Trim(prefix, "/")
	route = strings.Trim(route, "/")
	switch {
	case prefix == "" && route == "":
		return "/"
	case prefix == "":
		return "/" + route
	case route == "":
		return "/" + prefix
	}
	return "/" + prefix + "/" + route
}
