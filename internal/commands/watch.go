package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wadakatu/laravel-spectrum-sub013/logger"
	"github.com/wadakatu/laravel-spectrum-sub013/pipeline"
	"github.com/wadakatu/laravel-spectrum-sub013/watcher"
)

// WatchOptions holds options for the watch command
type WatchOptions struct {
	CommonOptions
}

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the document whenever a source file changes",
		Long: `Runs a full pass, then watches the application root and recomputes only the
routes that depend on a changed file. The output is rewritten after every change;
a file with syntax errors keeps the last good result for the affected routes.`,
		Example: `  spectrum watch -o docs/openapi.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Pretty)
	generator := pipeline.New(cfg, pipeline.WithLogger(log))
	table, err := generator.Routes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load routes: %w", err)
	}

	w := watcher.New(generator, generator.Scheduler(), generator.Options(),
		watcher.WithLogger(log), watcher.WithDebounce(cfg.Watch.Debounce))
	doc, err := w.Prime(ctx, table.Routes)
	printDiagnostics(cmd.ErrOrStderr(), w.Diagnostics())
	if err != nil {
		return fmt.Errorf("initial generation failed: %w", err)
	}
	if err := writeDocument(cmd.OutOrStdout(), doc, cfg); err != nil {
		return err
	}

	notifier, err := watcher.NewFSNotifier(cfg.Source.Root, cfg.Watch.Extensions, log)
	if err != nil {
		return err
	}
	defer notifier.Close()

	events, unsubscribe := w.Subscribe(cfg.Watch.Buffer)
	defer unsubscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		relay(events, func() error { return writeDocument(cmd.OutOrStdout(), w.Document(), cfg) }, log)
	}()

	log.Info().Str("root", cfg.Source.Root).Int("routes", len(table.Routes)).Msg("watching for changes")
	err = w.Run(ctx, notifier)
	unsubscribe()
	<-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// relay logs every event and writes the document once per batch. Events of one
// batch are published together after the document is final.
func relay(events <-chan watcher.ChangeEvent, write func() error, log logger.Logger) {
	last := ""
	for event := range events {
		log.Info().Str("path", event.Path).Strs("routes", event.AffectedRouteKeys).Str("batch", event.Batch).Msg("document updated")
		if event.Batch == last {
			continue
		}
		last = event.Batch
		if err := write(); err != nil {
			log.Error().Err(err).Msg("failed to write document")
		}
	}
}
