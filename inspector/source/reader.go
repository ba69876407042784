// Package source provides the source reader collaborator backed by viant/afs.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
)

// Reader returns raw source text for a project relative path.
type Reader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// FS reads sources through an afs.Service rooted at a base URL (local dir, mem://, ...).
type FS struct {
	fs   afs.Service
	root string
}

// New creates a reader rooted at root.
func New(root string) *FS {
	return NewWithService(afs.New(), root)
}

// NewWithService creates a reader using the supplied afs service.
func NewWithService(fs afs.Service, root string) *FS {
	return &FS{fs: fs, root: root}
}

// URL returns the location of path under the reader root.
func (r *FS) URL(path string) string {
	if r.root == "" || strings.Contains(path, "://") || strings.HasPrefix(path, "/") {
		return path
	}
	return url.Join(r.root, path)
}

// Read returns the content of path or a diag.SourceNotFound error.
func (r *FS) Read(ctx context.Context, path string) ([]byte, error) {
	location := r.URL(path)
	exists, err := r.fs.Exists(ctx, location)
	if err != nil {
		return nil, diag.Wrap(diag.SourceNotFound, path, err)
	}
	if !exists {
		return nil, diag.New(diag.SourceNotFound, path, "no such file")
	}
	data, err := r.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	return data, nil
}
