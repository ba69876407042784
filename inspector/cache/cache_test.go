package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/php"
)

type memReader struct {
	mux   sync.Mutex
	files map[string]string
}

func (m *memReader) Read(_ context.Context, path string) ([]byte, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	content, ok := m.files[path]
	if !ok {
		return nil, diag.New(diag.SourceNotFound, path, "no such file")
	}
	return []byte(content), nil
}

func (m *memReader) set(path, content string) {
	m.mux.Lock()
	m.files[path] = content
	m.mux.Unlock()
}

type countingInspector struct {
	calls atomic.Int32
}

func (c *countingInspector) InspectSource(ctx context.Context, path string, src []byte, kind graph.Kind) (*graph.File, error) {
	c.calls.Add(1)
	return php.NewInspector().InspectSource(ctx, path, src, kind)
}

func TestCache_Load_HitSkipsParsing(t *testing.T) {
	ctx := context.Background()
	reader := &memReader{files: map[string]string{"a.php": "<?php class A {}"}}
	insp := &countingInspector{}
	c := New(insp, reader)

	first, err := c.Load(ctx, "a.php", graph.KindResource)
	require.NoError(t, err)
	second, err := c.Load(ctx, "a.php", graph.KindResource)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), insp.calls.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())

	reader.set("a.php", "<?php class B {}")
	third, err := c.Load(ctx, "a.php", graph.KindResource)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, "B", third.Primary().ShortName)
	assert.Equal(t, int32(2), insp.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_Load_CachesFailures(t *testing.T) {
	ctx := context.Background()
	reader := &memReader{files: map[string]string{"bad.php": "<?php class {"}}
	insp := &countingInspector{}
	c := New(insp, reader)

	for i := 0; i < 3; i++ {
		_, err := c.Load(ctx, "bad.php", graph.KindResource)
		assert.ErrorIs(t, err, diag.ErrUnparsableSyntax)
	}
	assert.Equal(t, int32(1), insp.calls.Load())

	_, ok := c.Cached("bad.php")
	assert.False(t, ok)

	_, err := c.Load(ctx, "missing.php", graph.KindResource)
	assert.ErrorIs(t, err, diag.ErrSourceNotFound)
}

func TestCache_Load_Concurrent(t *testing.T) {
	ctx := context.Background()
	reader := &memReader{files: map[string]string{"a.php": "<?php class A {}"}}
	insp := &countingInspector{}
	c := New(insp, reader)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			file, err := c.Load(ctx, "a.php", graph.KindResource)
			assert.NoError(t, err)
			assert.Equal(t, "A", file.Primary().ShortName)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), insp.calls.Load())
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	reader := &memReader{files: map[string]string{"a.php": "<?php class A {}"}}
	c := New(&countingInspector{}, reader)
	_, err := c.Load(ctx, "a.php", graph.KindResource)
	require.NoError(t, err)

	_, ok := c.Cached("a.php")
	assert.True(t, ok)
	c.Invalidate("a.php")
	_, ok = c.Cached("a.php")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
