package route

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/cache"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/source"
)

const apiRoutes = `<?php

use App\Http\Controllers\UserController;
use Illuminate\Support\Facades\Route;

Route::get('/users', [UserController::class, 'index']);
Route::post('users', [UserController::class, 'store']);
`

const adminTable = `
routes:
  - method: get
    path: /reports
    handler: App\Http\Controllers\ReportController@index
`

const listTable = `
- method: DELETE
  path: reports/{report}
  handler: App\Http\Controllers\ReportController@destroy
`

func newProvider(t *testing.T, files map[string]string) *Provider {
	t.Helper()
	ctx := context.Background()
	fs := afs.New()
	root := "mem://localhost/route-test/" + strings.ReplaceAll(t.Name(), "/", "_")
	for name, content := range files {
		require.NoError(t, fs.Upload(ctx, root+"/"+name, 0o644, strings.NewReader(content)))
	}
	reader := source.NewWithService(fs, root)
	return New(cache.New(inspector.NewFactory(), reader), reader)
}

func keys(table *Table) []string {
	var ret []string
	for _, route := range table.Routes {
		ret = append(ret, route.Key()+" "+route.Handler)
	}
	return ret
}

func TestProvider_Load(t *testing.T) {
	provider := newProvider(t, map[string]string{
		"routes/api.php":    apiRoutes,
		"routes/admin.yaml": adminTable,
		"routes/list.yml":   listTable,
	})
	table, err := provider.Load(context.Background(), "api", "routes/api.php", "routes/admin.yaml", "routes/list.yml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		`GET /api/users App\Http\Controllers\UserController@index`,
		`POST /api/users App\Http\Controllers\UserController@store`,
		`GET /api/reports App\Http\Controllers\ReportController@index`,
		`DELETE /api/reports/{report} App\Http\Controllers\ReportController@destroy`,
	}, keys(table))
	assert.Equal(t, []string{"routes/api.php", "routes/admin.yaml", "routes/list.yml"}, table.Files)
	assert.Equal(t, "routes/api.php", table.Routes[1].File)
	assert.Equal(t, "routes/admin.yaml", table.Routes[2].File)
	assert.Equal(t, "routes/list.yml", table.Routes[3].File)
}

func TestProvider_Load_Errors(t *testing.T) {
	provider := newProvider(t, map[string]string{
		"routes/bad.yaml":     "routes:\n  - method: GET\n",
		"routes/invalid.yaml": "routes: [",
	})
	testCases := []struct {
		file string
		kind diag.Kind
	}{
		{file: "routes/missing.php", kind: diag.SourceNotFound},
		{file: "routes/bad.yaml", kind: diag.UnparsableSyntax},
		{file: "routes/invalid.yaml", kind: diag.UnparsableSyntax},
	}
	for _, tc := range testCases {
		t.Run(tc.file, func(t *testing.T) {
			_, err := provider.Load(context.Background(), "", tc.file)
			require.Error(t, err)
			assert.Equal(t, tc.kind, diag.KindOf(err))
		})
	}
}

func TestJoin(t *testing.T) {
	testCases := []struct {
		prefix, path, expected string
	}{
		{"", "/users", "/users"},
		{"api", "users", "/api/users"},
		{"/api/", "/users/{user}/", "/api/users/{user}"},
		{"api", "/", "/api"},
		{"", "", "/"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Join(tc.prefix, tc.path))
	}
}
