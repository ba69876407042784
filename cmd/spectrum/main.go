package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wadakatu/laravel-spectrum-sub013/internal/commands"
)

var version = "dev" // set at build time

func main() {
	rootCmd := &cobra.Command{
		Use:   "spectrum",
		Short: "Generate OpenAPI documents for Laravel applications",
		Long: `Static analysis based OpenAPI generator for Laravel applications.

Routes, form request rules, custom validation rules and API resources are read
without executing any PHP; the result is an OpenAPI 3.0 or 3.1 document.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		commands.NewGenerateCommand(),
		commands.NewWatchCommand(),
		commands.NewVersionCommand(version),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
