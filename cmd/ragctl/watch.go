package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <pdf>",
	Short: "Rebuild the index whenever the PDF changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 750*time.Millisecond, "Quiet period before rebuilding after a change")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}

	rebuild := func(ctx context.Context) error {
		src, err := readPDF(path)
		if err != nil {
			return err
		}
		stats, err := p.Builder.Build(ctx, src)
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), path, stats)
		return nil
	}

	if err := rebuild(ctx); err != nil {
		slog.Error("watch_rebuild_failed", "path", path, "error", err.Error())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", path)
	return watchFile(ctx, path, watchDebounce, rebuild)
}

// watchFile calls onChange after path was written or created in
// place and then stayed quiet for debounce. The parent directory is watched
// because editors often replace the file instead of writing it.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func(context.Context) error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := onChange(ctx); err != nil {
				slog.Error("watch_rebuild_failed", "path", abs, "error", err.Error())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", "path", abs, "error", err.Error())
		}
	}
}
