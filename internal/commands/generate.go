package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/logger"
	"github.com/wadakatu/laravel-spectrum-sub013/pipeline"
)

// GenerateOptions holds options for the generate command
type GenerateOptions struct {
	CommonOptions
	Strict bool
}

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an OpenAPI document from a Laravel application",
		Long: `Reads the configured route files, resolves every handler and writes one
OpenAPI document. Routes that cannot be analysed are reported as diagnostics
and left out of the document.`,
		Example: `  # Generate for the current directory
  spectrum generate

  # Generate OpenAPI 3.1 JSON into a file
  spectrum generate --openapi 3.1.0 -f json -o docs/openapi.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Fail when any route reports an error diagnostic")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Pretty)
	generator := pipeline.New(cfg, pipeline.WithLogger(log))

	result, err := generator.Generate(cmd.Context())
	if result != nil {
		printDiagnostics(cmd.ErrOrStderr(), result.Diagnostics)
	}
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	if err := writeDocument(cmd.OutOrStdout(), result.Document, cfg); err != nil {
		return err
	}
	if opts.Strict && hasErrors(result.Diagnostics) {
		return fmt.Errorf("%d route(s) failed analysis", len(result.Failed))
	}
	return nil
}

func hasErrors(items []diag.Diagnostic) bool {
	for _, item := range items {
		if item.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}
