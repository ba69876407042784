// Package cache provides the extraction cache keyed by (path, content hash).
//
// Entries are inserted once and never mutated, so concurrent readers share them
// without copying. A hit on an unchanged file skips parsing entirely; concurrent
// misses for the same key are collapsed with singleflight.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/wadakatu/laravel-spectrum-sub013/inspector"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/source"
	"golang.org/x/sync/singleflight"
)

type key struct {
	path string
	hash uint64
}

type entry struct {
	file *graph.File
	err  error
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Cache is an explicit, constructed extraction cache; its lifetime is one
// generation run or a whole watch session.
type Cache struct {
	inspector inspector.Inspector
	reader    source.Reader

	mux     sync.RWMutex
	entries map[key]*entry
	latest  map[string]uint64

	group  singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates an empty cache.
func New(insp inspector.Inspector, reader source.Reader) *Cache {
	return &Cache{
		inspector: insp,
		reader:    reader,
		entries:   make(map[key]*entry),
		latest:    make(map[string]uint64),
	}
}

// Load reads path, hashes its content and returns the extracted facts.
// Unparsable files are cached as failures too, so a broken file is parsed once per content.
func (c *Cache) Load(ctx context.Context, path string, kind graph.Kind) (*graph.File, error) {
	src, err := c.reader.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return c.LoadSource(ctx, path, src, kind)
}

// LoadSource returns the facts for already read content.
func (c *Cache) LoadSource(ctx context.Context, path string, src []byte, kind graph.Kind) (*graph.File, error) {
	hash, err := graph.Hash(src)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	k := key{path: path, hash: hash}
	if e, ok := c.lookup(k); ok {
		c.hits.Add(1)
		return e.file, e.err
	}

	value, _, _ := c.group.Do(path+"#"+strconv.FormatUint(hash, 16), func() (any, error) {
		if e, ok := c.lookup(k); ok {
			return e, nil
		}
		c.misses.Add(1)
		file, err := c.inspector.InspectSource(ctx, path, src, kind)
		e := &entry{file: file, err: err}
		if ctx.Err() != nil && err != nil {
			// a cancelled parse is not a property of the content
			return e, nil
		}
		c.store(k, e)
		return e, nil
	})
	e := value.(*entry)
	return e.file, e.err
}

// Cached returns the entry for path at its latest known content, without reading the source.
func (c *Cache) Cached(path string) (*graph.File, bool) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	hash, ok := c.latest[path]
	if !ok {
		return nil, false
	}
	e, ok := c.entries[key{path: path, hash: hash}]
	if !ok || e.err != nil {
		return nil, false
	}
	return e.file, true
}

// Invalidate drops every entry of path.
func (c *Cache) Invalidate(path string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if hash, ok := c.latest[path]; ok {
		delete(c.entries, key{path: path, hash: hash})
		delete(c.latest, path)
	}
}

// Stats returns hit/miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(k key) (*entry, bool) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	e, ok := c.entries[k]
	return e, ok
}

// store inserts once; the superseded content entry of the same path is evicted.
func (c *Cache) store(k key, e *entry) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.entries[k]; ok {
		return
	}
	if previous, ok := c.latest[k.path]; ok && previous != k.hash {
		delete(c.entries, key{path: k.path, hash: previous})
	}
	c.entries[k] = e
	c.latest[k.path] = k.hash
}
