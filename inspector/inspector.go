package inspector

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/php"
)

// Inspector provides an interface for extracting structural facts from source code
type Inspector interface {
	// InspectSource parses source text and extracts facts for the given kind hint
	InspectSource(ctx context.Context, path string, src []byte, kind graph.Kind) (*graph.File, error)
}

// Factory creates appropriate inspectors based on language
type Factory struct {
	php *php.Inspector
}

// NewFactory creates a new inspector factory
func NewFactory() *Factory {
	return &Factory{php: php.NewInspector()}
}

// GetInspector returns an appropriate inspector based on file extension
func (f *Factory) GetInspector(filename string) (Inspector, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".php":
		return f.php, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// InspectSource is a convenience method that gets the appropriate inspector and inspects the source
func (f *Factory) InspectSource(ctx context.Context, path string, src []byte, kind graph.Kind) (*graph.File, error) {
	inspector, err := f.GetInspector(path)
	if err != nil {
		return nil, err
	}
	return inspector.InspectSource(ctx, path, src, kind)
}
