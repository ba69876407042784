// Package config loads generator settings from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/wadakatu/laravel-spectrum-sub013/analyzer/schema"
)

// EnvPrefix prefixes environment overrides, e.g. SPECTRUM_OPENAPI_VERSION.
const EnvPrefix = "SPECTRUM_"

// Output formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Config is the complete generator configuration.
type Config struct {
	OpenAPI  OpenAPIConfig         `koanf:"openapi" yaml:"openapi"`
	Info     InfoConfig            `koanf:"info" yaml:"info"`
	Servers  []ServerConfig        `koanf:"servers" yaml:"servers" validate:"dive"`
	Security []map[string][]string `koanf:"security" yaml:"security"`
	Source   SourceConfig          `koanf:"source" yaml:"source"`
	Workers  int                   `koanf:"workers" yaml:"workers" validate:"gte=0"`
	Response ResponseConfig        `koanf:"response" yaml:"response"`
	Output   OutputConfig          `koanf:"output" yaml:"output"`
	Log      LogConfig             `koanf:"log" yaml:"log"`
	Watch    WatchConfig           `koanf:"watch" yaml:"watch"`
}

// OpenAPIConfig selects the target document version.
type OpenAPIConfig struct {
	Version string `koanf:"version" yaml:"version" validate:"required,oasversion"`
	Dialect string `koanf:"dialect" yaml:"dialect"`
}

// InfoConfig is the document info section.
type InfoConfig struct {
	Title       string `koanf:"title" yaml:"title" validate:"required"`
	Version     string `koanf:"version" yaml:"version" validate:"required"`
	Description string `koanf:"description" yaml:"description"`
}

// ServerConfig is one servers entry.
type ServerConfig struct {
	URL         string `koanf:"url" yaml:"url" validate:"required"`
	Description string `koanf:"description" yaml:"description"`
}

// SourceConfig locates the analysed application.
type SourceConfig struct {
	Root   string            `koanf:"root" yaml:"root" validate:"required"`
	Routes []string          `koanf:"routes" yaml:"routes" validate:"required,min=1,dive,required"`
	Prefix string            `koanf:"prefix" yaml:"prefix"`
	PSR4   map[string]string `koanf:"psr4" yaml:"psr4" validate:"required,min=1"`
}

// ResponseConfig shapes resource responses.
type ResponseConfig struct {
	Wrap string `koanf:"wrap" yaml:"wrap"`
}

// OutputConfig controls document emission.
type OutputConfig struct {
	Path   string `koanf:"path" yaml:"path"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=yaml json"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" yaml:"pretty"`
}

// WatchConfig controls live regeneration.
type WatchConfig struct {
	Debounce   time.Duration `koanf:"debounce" yaml:"debounce" validate:"gte=0"`
	Buffer     int           `koanf:"buffer" yaml:"buffer" validate:"gte=0"`
	Extensions []string      `koanf:"extensions" yaml:"extensions"`
}

func defaults() map[string]any {
	return map[string]any{
		"openapi.version":  "3.0.3",
		"info.title":       "API",
		"info.version":     "1.0.0",
		"source.root":      ".",
		"source.routes":    []string{"routes/api.php"},
		"source.psr4":      map[string]any{`App\`: "app"},
		"workers":          0,
		"response.wrap":    "data",
		"output.format":    FormatYAML,
		"log.level":        "info",
		"log.pretty":       false,
		"watch.debounce":   "200ms",
		"watch.buffer":     64,
		"watch.extensions": []string{".php", ".yaml", ".yml"},
	}
}

// Load reads the configuration. Priority, lowest first: defaults, the YAML file at
// path (skipped when path is empty), SPECTRUM_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", ".")
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct constraints and the target version.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("oasversion", validateVersion); err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			messages := make([]string, 0, len(fieldErrors))
			for _, fieldError := range fieldErrors {
				messages = append(messages, fmt.Sprintf("%s failed %q (value %v)", fieldError.Namespace(), fieldError.Tag(), fieldError.Value()))
			}
			return errors.New(strings.Join(messages, "; "))
		}
		return err
	}
	return nil
}

func validateVersion(fl validator.FieldLevel) bool {
	_, err := schema.FamilyOf(fl.Field().String())
	return err == nil
}
