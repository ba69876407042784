package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spectrum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "3.0.3", cfg.OpenAPI.Version)
	assert.Equal(t, []string{"routes/api.php"}, cfg.Source.Routes)
	assert.Equal(t, map[string]string{`App\`: "app"}, cfg.Source.PSR4)
	assert.Equal(t, "data", cfg.Response.Wrap)
	assert.Equal(t, FormatYAML, cfg.Output.Format)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 64, cfg.Watch.Buffer)
	assert.Zero(t, cfg.Workers)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeFile(t, `
openapi:
  version: 3.1.0
info:
  title: Shop
  version: 2.0.0
servers:
  - url: https://shop.example.com
source:
  root: ./shop
  routes: [routes/api.php, routes/admin.php]
  prefix: api
workers: 4
`)
	t.Setenv("SPECTRUM_WORKERS", "8")
	t.Setenv("SPECTRUM_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", cfg.OpenAPI.Version)
	assert.Equal(t, "Shop", cfg.Info.Title)
	assert.Equal(t, []ServerConfig{{URL: "https://shop.example.com"}}, cfg.Servers)
	assert.Equal(t, []string{"routes/api.php", "routes/admin.php"}, cfg.Source.Routes)
	assert.Equal(t, "api", cfg.Source.Prefix)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		message string
	}{
		{name: "unsupported version", content: "openapi:\n  version: 2.0\n", message: "oasversion"},
		{name: "negative workers", content: "workers: -1\n", message: "Workers"},
		{name: "unknown format", content: "output:\n  format: xml\n", message: "Format"},
		{name: "server without url", content: "servers:\n  - description: prod\n", message: "URL"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
