package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/wadakatu/laravel-spectrum-sub013/config"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/source"
	"github.com/wadakatu/laravel-spectrum-sub013/logger"
	"github.com/wadakatu/laravel-spectrum-sub013/watcher"
	"gopkg.in/yaml.v3"
)

const (
	routesPath       = "routes/api.php"
	controllerPath   = "app/Http/Controllers/UserController.php"
	requestPath      = "app/Http/Requests/StoreUserRequest.php"
	rulePath         = "app/Rules/StrongPassword.php"
	userResourcePath = "app/Http/Resources/UserResource.php"
	postResourcePath = "app/Http/Resources/PostResource.php"
)

var application = map[string]string{
	routesPath: `<?php

use App\Http\Controllers\UserController;
use Illuminate\Support\Facades\Route;

Route::get('/users', [UserController::class, 'index']);
Route::post('/users', [UserController::class, 'store']);
Route::get('/users/{user}', [UserController::class, 'show']);
Route::delete('/users/{user}', [UserController::class, 'destroy']);
`,
	controllerPath: `<?php

namespace App\Http\Controllers;

use App\Http\Requests\StoreUserRequest;
use App\Http\Resources\UserResource;
use App\Models\User;

class UserController extends Controller
{
    public function index()
    {
        return UserResource::collection(User::all());
    }

    public function store(StoreUserRequest $request)
    {
        $user = User::create($request->validated());
        return (new UserResource($user))->response()->setStatusCode(201);
    }

    public function show(User $user)
    {
        return new UserResource($user);
    }
}
`,
	requestPath: `<?php

namespace App\Http\Requests;

use App\Rules\StrongPassword;
use Illuminate\Foundation\Http\FormRequest;

class StoreUserRequest extends FormRequest
{
    public function rules(): array
    {
        return [
            'name' => 'required|string|max:255',
            'email' => ['required', 'email'],
            'password' => ['required', new StrongPassword(min: 16)],
        ];
    }
}
`,
	rulePath: `<?php

namespace App\Rules;

use Closure;
use Illuminate\Contracts\Validation\ValidationRule;

class StrongPassword implements ValidationRule
{
    public function __construct(
        private int $min = 12,
        private bool $requireUppercase = true
    ) {
    }

    public function validate(string $attribute, mixed $value, Closure $fail): void
    {
    }
}
`,
	userResourcePath: `<?php

namespace App\Http\Resources;

use Illuminate\Http\Resources\Json\JsonResource;

class UserResource extends JsonResource
{
    public function toArray($request): array
    {
        return [
            'id' => $this->id,
            'email' => $this->email,
            'posts' => PostResource::collection($this->whenLoaded('posts')),
            'secret' => $this->when($request->user()->isAdmin(), $this->secret),
        ];
    }
}
`,
	postResourcePath: `<?php

namespace App\Http\Resources;

use Illuminate\Http\Resources\Json\JsonResource;

class PostResource extends JsonResource
{
    public function toArray($request): array
    {
        return [
            'id' => $this->id,
            'title' => $this->title,
            'author' => new UserResource($this->whenLoaded('author')),
        ];
    }
}
`,
}

type fixture struct {
	fs   afs.Service
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ret := &fixture{fs: afs.New(), root: "mem://localhost/pipeline/" + strings.ReplaceAll(t.Name(), "/", "_")}
	for path, content := range application {
		ret.write(t, path, content)
	}
	return ret
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, f.fs.Upload(context.Background(), f.root+"/"+path, 0o644, strings.NewReader(content)))
}

func (f *fixture) generator(version string) *Generator {
	cfg := &config.Config{
		OpenAPI:  config.OpenAPIConfig{Version: version},
		Info:     config.InfoConfig{Title: "Demo", Version: "1.0.0"},
		Source:   config.SourceConfig{Root: f.root, Routes: []string{routesPath}, PSR4: map[string]string{`App\`: "app"}},
		Workers:  2,
		Response: config.ResponseConfig{Wrap: "data"},
	}
	return New(cfg, WithReader(source.NewWithService(f.fs, f.root)), WithLogger(logger.Nop()))
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var ret map[string]any
	require.NoError(t, yaml.Unmarshal(data, &ret))
	return ret
}

func dig(t *testing.T, value any, keys ...string) any {
	t.Helper()
	for _, key := range keys {
		m, ok := value.(map[string]any)
		require.True(t, ok, "expected mapping at %s", key)
		value = m[key]
	}
	return value
}

func TestGenerator_Generate(t *testing.T) {
	f := newFixture(t)
	result, err := f.generator("3.0.3").Generate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Document)
	assert.Equal(t, 4, result.Routes)
	assert.Equal(t, []string{"DELETE /users/{user}"}, result.Failed)

	var unresolved []diag.Diagnostic
	for _, d := range result.Diagnostics {
		if d.Kind == diag.UnresolvedHandler {
			unresolved = append(unresolved, d)
		}
	}
	require.Len(t, unresolved, 1)
	assert.Equal(t, "DELETE /users/{user}", unresolved[0].RouteKey)
	assert.Equal(t, diag.SeverityError, unresolved[0].Severity)

	data, err := result.Document.YAML()
	require.NoError(t, err)
	doc := decode(t, data)

	request := dig(t, doc, "paths", "/users", "post", "requestBody", "content", "application/json", "schema")
	assert.Equal(t, []any{"name", "email", "password"}, dig(t, request, "required"))
	assert.Equal(t, 16, dig(t, request, "properties", "password", "minLength"))
	assert.Equal(t, "email", dig(t, request, "properties", "email", "format"))

	created := dig(t, doc, "paths", "/users", "post", "responses")
	assert.Contains(t, created, "201")

	list := dig(t, doc, "paths", "/users", "get", "responses", "200", "content", "application/json", "schema", "properties", "data")
	assert.Equal(t, "array", dig(t, list, "type"))

	user := dig(t, doc, "paths", "/users/{user}", "get", "responses", "200", "content", "application/json", "schema", "properties", "data")
	assert.Equal(t, []any{"id", "email"}, dig(t, user, "required"))
	assert.Contains(t, dig(t, user, "properties"), "posts")
	assert.Contains(t, dig(t, user, "properties"), "secret")
	assert.Contains(t, dig(t, doc, "components", "schemas"), "UserResource")
}

func TestGenerator_Generate_Idempotent(t *testing.T) {
	f := newFixture(t)
	render := func() []byte {
		result, err := f.generator("3.1.0").Generate(context.Background())
		require.NoError(t, err)
		data, err := result.Document.YAML()
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, string(render()), string(render()))
}

func TestGenerator_Dependencies(t *testing.T) {
	f := newFixture(t)
	generator := f.generator("3.0.3")
	_, err := generator.Generate(context.Background())
	require.NoError(t, err)

	deps := generator.Dependencies()
	assert.Equal(t, []string{"GET /users", "GET /users/{user}", "POST /users"}, deps[userResourcePath])
	assert.Equal(t, []string{"POST /users"}, deps[requestPath])
	assert.Equal(t, []string{"POST /users"}, deps[rulePath])
	assert.Equal(t, []string{"DELETE /users/{user}", "GET /users", "GET /users/{user}", "POST /users"}, deps[controllerPath])
	assert.Equal(t, []string{"DELETE /users/{user}", "GET /users", "GET /users/{user}", "POST /users"}, deps[routesPath])
}

func TestGenerator_Generate_DuplicateRoute(t *testing.T) {
	f := newFixture(t)
	f.write(t, routesPath, application[routesPath]+"Route::get('/users', [UserController::class, 'index']);\n")
	result, err := f.generator("3.0.3").Generate(context.Background())
	assert.ErrorIs(t, err, diag.ErrDuplicateRoute)
	require.NotNil(t, result)
	assert.Nil(t, result.Document)
}

func TestSplitHandler(t *testing.T) {
	testCases := []struct {
		handler, class, method string
	}{
		{`App\Http\Controllers\UserController@index`, `App\Http\Controllers\UserController`, "index"},
		{`\App\Http\Controllers\HealthController`, `App\Http\Controllers\HealthController`, "__invoke"},
		{`UserController@show`, `App\Http\Controllers\UserController`, "show"},
	}
	for _, tc := range testCases {
		class, method := splitHandler(tc.handler)
		assert.Equal(t, tc.class, class)
		assert.Equal(t, tc.method, method)
	}
}

func TestGenerator_Watch(t *testing.T) {
	f := newFixture(t)
	generator := f.generator("3.1.0")
	table, err := generator.Routes(context.Background())
	require.NoError(t, err)

	w := watcher.New(generator, generator.Scheduler(), generator.Options())
	_, err = w.Prime(context.Background(), table.Routes)
	require.NoError(t, err)
	events, unsubscribe := w.Subscribe(4)
	defer unsubscribe()

	f.write(t, userResourcePath, strings.Replace(application[userResourcePath], "'email' => $this->email,", "'email' => $this->email,\n            'name' => $this->name,", 1))
	changes, err := w.Apply(context.Background(), userResourcePath)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"GET /users", "GET /users/{user}", "POST /users"}, changes[0].AffectedRouteKeys)
	assert.Equal(t, changes[0], <-events)

	data, err := w.Document().YAML()
	require.NoError(t, err)
	user := dig(t, decode(t, data), "paths", "/users/{user}", "get", "responses", "200", "content", "application/json", "schema", "properties", "data")
	assert.Contains(t, dig(t, user, "properties"), "name")

	f.write(t, userResourcePath, "<?php\nclass UserResource extends JsonResource {\n  public function toArray( {\n")
	_, err = w.Apply(context.Background(), userResourcePath)
	require.NoError(t, err)

	data, err = w.Document().YAML()
	require.NoError(t, err)
	user = dig(t, decode(t, data), "paths", "/users/{user}", "get", "responses", "200", "content", "application/json", "schema", "properties", "data")
	assert.Contains(t, dig(t, user, "properties"), "name", "previous good fragment retained")

	var broken int
	for _, d := range w.Diagnostics() {
		if d.Kind == diag.UnparsableSyntax {
			broken++
		}
	}
	assert.Equal(t, 3, broken)
}

func TestGenerator_Autoload(t *testing.T) {
	f := newFixture(t)
	f.write(t, "composer.json", `{"name": "acme/api", "autoload": {"psr-4": {"App\\": "src/", "Domain\\": "domain/"}}}`)
	generator := f.generator("3.0.3")
	assert.Equal(t, map[string]string{`App\`: "app", `Domain\`: "domain"}, generator.autoload())
}

func TestGenerator_Watch_RouteFile(t *testing.T) {
	f := newFixture(t)
	generator := f.generator("3.0.3")
	table, err := generator.Routes(context.Background())
	require.NoError(t, err)

	w := watcher.New(generator, generator.Scheduler(), generator.Options())
	_, err = w.Prime(context.Background(), table.Routes)
	require.NoError(t, err)
	assert.Equal(t, []string{"DELETE /users/{user}", "GET /users", "GET /users/{user}", "POST /users"}, w.Affected(routesPath))

	routes := strings.Replace(application[routesPath], "[UserController::class, 'show']", "[UserController::class, 'index']", 1)
	routes = strings.Replace(routes, "Route::delete('/users/{user}', [UserController::class, 'destroy']);\n", "", 1)
	f.write(t, routesPath, routes)

	changes, err := w.Apply(context.Background(), routesPath)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, routesPath, changes[0].Path)
	assert.Equal(t, []string{"DELETE /users/{user}", "GET /users/{user}"}, changes[0].AffectedRouteKeys)

	data, err := w.Document().YAML()
	require.NoError(t, err)
	doc := decode(t, data)
	show := dig(t, doc, "paths", "/users/{user}", "get", "responses", "200", "content", "application/json", "schema", "properties", "data")
	assert.Equal(t, "array", dig(t, show, "type"), "handler switched to index")
	assert.NotContains(t, dig(t, doc, "paths", "/users/{user}"), "delete")

	for _, d := range w.Diagnostics() {
		assert.NotEqual(t, "DELETE /users/{user}", d.RouteKey, "removed route keeps no diagnostics")
	}
	assert.Equal(t, []string{"GET /users", "GET /users/{user}", "POST /users"}, w.Affected(routesPath))
}
