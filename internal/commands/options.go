// Package commands implements the spectrum command line.
package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wadakatu/laravel-spectrum-sub013/config"
	"github.com/wadakatu/laravel-spectrum-sub013/diag"
	"github.com/wadakatu/laravel-spectrum-sub013/document"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/repository"
)

// CommonOptions holds flags shared by generate and watch.
type CommonOptions struct {
	ConfigFile string
	Root       string
	OutputFile string
	Format     string
	Version    string
}

func (o *CommonOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.ConfigFile, "config", "c", "", "Configuration file (YAML)")
	cmd.Flags().StringVarP(&o.Root, "root", "r", "", "Application root directory")
	cmd.Flags().StringVarP(&o.OutputFile, "output", "o", "", "Output file path (stdout when empty)")
	cmd.Flags().StringVarP(&o.Format, "format", "f", "", "Output format (yaml|json)")
	cmd.Flags().StringVar(&o.Version, "openapi", "", "Target OpenAPI version, e.g. 3.0.3 or 3.1.0")
}

// load reads the configuration and applies flag overrides on top of it.
func (o *CommonOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}
	switch {
	case o.Root != "":
		cfg.Source.Root = o.Root
	case cfg.Source.Root == ".":
		if root := repository.FindRoot("."); root != "" {
			cfg.Source.Root = root
		}
	}
	if o.OutputFile != "" {
		cfg.Output.Path = o.OutputFile
	}
	if o.Format != "" {
		cfg.Output.Format = o.Format
	}
	if o.Version != "" {
		cfg.OpenAPI.Version = o.Version
	}
	if cfg.Output.Format == "yml" {
		cfg.Output.Format = config.FormatYAML
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

func render(doc *document.Document, format string) ([]byte, error) {
	if format == config.FormatJSON {
		return doc.JSON()
	}
	return doc.YAML()
}

// writeDocument writes doc to path, or to stdout when path is empty.
func writeDocument(stdout io.Writer, doc *document.Document, cfg *config.Config) error {
	data, err := render(doc, cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	if cfg.Output.Path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Output.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := cfg.Output.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return os.Rename(tmp, cfg.Output.Path)
}

func printDiagnostics(w io.Writer, items []diag.Diagnostic) {
	for _, item := range items {
		fmt.Fprintln(w, item.String())
	}
}
