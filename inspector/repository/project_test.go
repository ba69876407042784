package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/source"
)

func detector(t *testing.T, manifest string) (*Detector, string) {
	t.Helper()
	fs := afs.New()
	root := "mem://localhost/repository/" + strings.ReplaceAll(t.Name(), "/", "_")
	if manifest != "" {
		require.NoError(t, fs.Upload(context.Background(), root+"/"+Manifest, 0o644, strings.NewReader(manifest)))
	}
	return New(source.NewWithService(fs, root)), root
}

func TestDetector_Detect(t *testing.T) {
	testCases := []struct {
		name     string
		manifest string
		expected *Project
	}{
		{
			name: "laravel",
			manifest: `{
  "name": "acme/shop",
  "require": {"php": "^8.2", "laravel/framework": "^11.0"},
  "autoload": {"psr-4": {"App\\": "app/", "Domain\\": ["src/Domain/", "legacy/"]}}
}`,
			expected: &Project{Name: "acme/shop", Laravel: true, PSR4: map[string]string{`App\`: "app", `Domain\`: "src/Domain"}},
		},
		{
			name:     "library",
			manifest: `{"name": "acme/lib", "autoload": {"psr-4": {"Acme\\Lib\\": "src"}}}`,
			expected: &Project{Name: "acme/lib", PSR4: map[string]string{`Acme\Lib\`: "src"}},
		},
		{
			name:     "missing",
			expected: &Project{Name: "missing", PSR4: map[string]string{}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, root := detector(t, tc.manifest)
			actual, err := d.Detect(context.Background(), root)
			require.NoError(t, err)
			if tc.manifest == "" {
				tc.expected.Name = filepath.Base(root)
			}
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestDetector_Detect_Invalid(t *testing.T) {
	d, root := detector(t, `{"name": `)
	_, err := d.Detect(context.Background(), root)
	require.Error(t, err)
	assert.Equal(t, diag.UnparsableSyntax, diag.KindOf(err))
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "app", "Http", "Controllers")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, Manifest), []byte(`{}`), 0o644))
	expected, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	actual, err := filepath.EvalSymlinks(FindRoot(nested))
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}
