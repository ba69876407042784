// Package repository detects the Laravel project around a source root and reads its
// composer manifest.
package repository

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/source"
)

// Manifest is the composer manifest file name.
const Manifest = "composer.json"

// Project represents information about a detected project
type Project struct {
	Name    string            // composer package name, or the root directory name
	PSR4    map[string]string // namespace prefix -> directory, from autoload.psr-4
	Laravel bool              // requires laravel/framework
}

type manifest struct {
	Name     string            `json:"name"`
	Require  map[string]string `json:"require"`
	Autoload struct {
		PSR4 map[string]json.RawMessage `json:"psr-4"`
	} `json:"autoload"`
}

// Detector reads project information through a source reader
type Detector struct {
	reader source.Reader
}

// New creates a detector
func New(reader source.Reader) *Detector {
	return &Detector{reader: reader}
}

// Detect reads composer.json at the reader root. A missing manifest is not an error:
// the project is returned with no PSR-4 entries and named after root.
func (d *Detector) Detect(ctx context.Context, root string) (*Project, error) {
	ret := &Project{Name: path.Base(filepath.ToSlash(root)), PSR4: map[string]string{}}
	data, err := d.reader.Read(ctx, Manifest)
	if err != nil {
		if diag.KindOf(err) == diag.SourceNotFound {
			return ret, nil
		}
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, diag.Wrap(diag.UnparsableSyntax, Manifest, err)
	}
	if m.Name != "" {
		ret.Name = m.Name
	}
	_, ret.Laravel = m.Require["laravel/framework"]
	for prefix, raw := range m.Autoload.PSR4 {
		ret.PSR4[prefix] = strings.TrimSuffix(firstDir(raw), "/")
	}
	return ret, nil
}

// firstDir accepts both "app/" and ["app/", "lib/"] forms.
func firstDir(raw json.RawMessage) string {
	var dir string
	if json.Unmarshal(raw, &dir) == nil {
		return dir
	}
	var dirs []string
	if json.Unmarshal(raw, &dirs) == nil && len(dirs) > 0 {
		return dirs[0]
	}
	return ""
}

// FindRoot searches up from start for a directory holding composer.json. It returns
// an empty string when the filesystem root is reached with no match.
func FindRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, Manifest)); err == nil && !info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
