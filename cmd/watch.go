package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/jampass/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Compile the site, then recompile on every change",
	Long: `Compile the site, then watch the project root and recompile what each
change affects: an edited page, every page linking an edited component or
asset, or everything after a .env or data file edit. Changes arriving within
the debounce window are handled as one batch.

Examples:
  jampass watch                  # Watch with the default 300ms debounce
  jampass watch --debounce 50    # React faster to single edits`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		bindings := map[string]string{"debounce": "watch.debounce_ms"}
		for flag, key := range buildFlagBindings {
			bindings[flag] = key
		}
		return SetViperBindings(cmd.Flags(), bindings)
	},
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addBuildFlags(watchCmd)
	watchCmd.Flags().IntP("debounce", "d", 300, "Debounce window in milliseconds")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, builder, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder.Memory().SetWatchMode(true)

	report, err := builder.Build(ctx)
	if report != nil {
		printReport(out, report)
	}
	if err != nil {
		logger.Error(ctx, err, "Initial build failed")
	}

	fileWatcher, err := watcher.NewFileWatcher(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.SourceFilter)
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.ExcludeDirFilter(cfg.OutputDir()))

	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		report, err := builder.Rebuild(ctx, events)
		if report != nil {
			printReport(out, report)
		}
		return err
	})

	if err := fileWatcher.AddRecursive(cfg.Build.Root, builder.SkipWatch); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Build.Root, err)
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintf(out, "Watching %s for changes (press Ctrl+C to stop)\n", cfg.Build.Root)
	<-ctx.Done()
	fmt.Fprintln(out, "Stopping watcher")

	return nil
}
